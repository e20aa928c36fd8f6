// Package server exposes the report pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/defilens/defilens/internal/app"
)

// Server serves reports as JSON plus health and metrics endpoints.
type Server struct {
	app    *app.App
	router *mux.Router
	cron   *cron.Cron
	listen string
}

type errorResponse struct {
	Error       string   `json:"error"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// New builds the router and the catalog refresh schedule.
func New(a *app.App, listen, refreshSpec string) (*Server, error) {
	s := &Server{
		app:    a,
		router: mux.NewRouter(),
		cron:   cron.New(),
		listen: listen,
	}

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", a.Metrics().Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/report/{protocol}", s.handleReport).Methods(http.MethodGet)

	if refreshSpec != "" {
		if _, err := s.cron.AddFunc(refreshSpec, s.refreshCatalog); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then drains connections.
func (s *Server) Run(ctx context.Context) error {
	s.cron.Start()
	defer s.cron.Stop()

	srv := &http.Server{
		Addr:         s.listen,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("listen", s.listen).Msg("http server started")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) refreshCatalog() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := s.app.RefreshCatalog(ctx); err != nil {
		log.Warn().Err(err).Msg("catalog refresh failed")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	protocol := mux.Vars(r)["protocol"]

	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "days must be a positive integer"})
			return
		}
		days = parsed
	}

	rep, err := s.app.Report(r.Context(), protocol, days)
	if err != nil {
		var notFound *app.NotFoundError
		switch {
		case errors.As(err, &notFound):
			writeJSON(w, http.StatusNotFound, errorResponse{
				Error:       "protocol not recognized",
				Suggestions: notFound.Suggestions,
			})
		case errors.Is(err, app.ErrUnavailable):
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{
				Error: "data temporarily unavailable, try again",
			})
		default:
			log.Error().Err(err).Str("protocol", protocol).Msg("report failed")
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "report generation failed"})
		}
		return
	}

	writeJSON(w, http.StatusOK, rep)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encoding response failed")
	}
}

// Package app wires the pipeline: resolve, fetch, score, assemble.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/defilens/defilens/internal/cache"
	"github.com/defilens/defilens/internal/config"
	"github.com/defilens/defilens/internal/fetcher"
	"github.com/defilens/defilens/internal/llama"
	"github.com/defilens/defilens/internal/metrics"
	"github.com/defilens/defilens/internal/report"
	"github.com/defilens/defilens/internal/research"
	"github.com/defilens/defilens/internal/resolver"
	"github.com/defilens/defilens/internal/score"
)

// ErrUnavailable is returned when upstream data could not be fetched
// within the retry budget. Callers should suggest trying again later.
var ErrUnavailable = llama.ErrUnavailable

// NotFoundError means the query resolved to no protocol above the
// similarity threshold.
type NotFoundError struct {
	Query       string
	Suggestions []string
}

func (e *NotFoundError) Error() string {
	if len(e.Suggestions) > 0 {
		return fmt.Sprintf("protocol %q not found, did you mean: %s?", e.Query, strings.Join(e.Suggestions, ", "))
	}
	return fmt.Sprintf("protocol %q not found", e.Query)
}

// App owns the pipeline components for the process lifetime. The
// cache is constructed once here and injected into the fetcher, never
// shared through package state.
type App struct {
	cfg      *config.Config
	cache    cache.Cache
	fetcher  *fetcher.Fetcher
	resolver *resolver.Resolver
	engine   *score.Engine
	research research.Source
	metrics  *metrics.Metrics
}

// New builds the pipeline from configuration.
func New(cfg *config.Config) (*App, error) {
	m := metrics.New()

	var c cache.Cache
	switch cfg.Cache.Backend {
	case "redis":
		c = cache.NewRedis(cfg.Cache.RedisAddr)
	default:
		c = cache.NewMemory(cfg.Cache.MaxEntries)
	}

	client := llama.New(llama.Config{
		BaseURL:     cfg.Client.BaseURL,
		Timeout:     cfg.Client.Timeout(),
		RateLimit:   cfg.Client.RateLimitRPS,
		Burst:       cfg.Client.Burst,
		MaxRetries:  cfg.Client.MaxRetries,
		BackoffBase: cfg.Client.BackoffBase(),
		BackoffMax:  cfg.Client.BackoffMax(),
		UserAgent:   cfg.Client.UserAgent,
	}, m)

	f := fetcher.New(client, c, fetcher.TTLConfig{
		Detail:  cfg.Cache.DetailTTL(),
		Hacks:   cfg.Cache.HacksTTL(),
		Catalog: cfg.Cache.CatalogTTL(),
	}, m)

	eng, err := score.NewEngine(cfg.Scoring)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:     cfg,
		cache:   c,
		fetcher: f,
		resolver: resolver.New(f, resolver.Config{
			SimilarityThreshold: cfg.Resolver.SimilarityThreshold,
			SuggestionCutoff:    cfg.Resolver.SuggestionCutoff,
			MaxSuggestions:      cfg.Resolver.MaxSuggestions,
		}),
		engine:   eng,
		research: research.Unavailable{},
		metrics:  m,
	}, nil
}

// Metrics exposes the registry for the HTTP server.
func (a *App) Metrics() *metrics.Metrics { return a.metrics }

// DefaultDays is the configured TVL window fallback.
func (a *App) DefaultDays() int { return a.cfg.DefaultDays }

// Close releases cache resources.
func (a *App) Close() { a.cache.Stop() }

// RefreshCatalog re-warms the resolver catalog. The cron schedule in
// serve mode calls this so interactive requests rarely pay the
// catalog fetch.
func (a *App) RefreshCatalog(ctx context.Context) error {
	_, err := a.fetcher.Protocols(ctx)
	return err
}

// Report runs the full pipeline for one query. days <= 0 selects the
// configured default window.
func (a *App) Report(ctx context.Context, query string, days int) (*report.Report, error) {
	start := time.Now()
	if days <= 0 {
		days = a.cfg.DefaultDays
	}

	ref := a.resolver.Resolve(ctx, query)
	if !ref.Found() {
		a.metrics.ObserveReport(time.Since(start).Seconds(), "not_found")
		return nil, &NotFoundError{Query: query, Suggestions: ref.Suggestions}
	}

	snap, err := a.fetcher.Fetch(ctx, ref, days)
	if err != nil {
		outcome := "error"
		if errors.Is(err, llama.ErrUnavailable) {
			outcome = "unavailable"
		}
		a.metrics.ObserveReport(time.Since(start).Seconds(), outcome)
		return nil, err
	}

	signals, err := a.research.Signals(ctx, ref.Name)
	if err != nil {
		// Absent research degrades to a scoring limitation.
		signals = nil
	}

	result := a.engine.Score(snap, signals)
	rep := report.Assemble(ref, snap, result, time.Now().UTC())

	a.metrics.ObserveReport(time.Since(start).Seconds(), "ok")
	log.Info().
		Str("slug", ref.Slug).
		Str("match", string(ref.MatchKind)).
		Int("days", days).
		Float64("score", result.Overall).
		Str("verdict", string(result.Verdict)).
		Msg("report generated")

	return rep, nil
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/defilens/defilens/internal/app"
	"github.com/defilens/defilens/internal/config"
	"github.com/defilens/defilens/internal/report"
	"github.com/defilens/defilens/internal/server"
)

const (
	appName = "defilens"
	version = "v1.0.0"
)

var configPath string

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Due-diligence reports on DeFi protocols",
		Version: version,
		Long: `DefiLens generates structured due-diligence reports on DeFi protocols
from live DeFiLlama data: TVL trend, chain spread, funding history, and
security incidents, combined into an explainable 0-10 risk score.`,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")

	reportCmd := &cobra.Command{
		Use:   "report <protocol>",
		Short: "Generate a report for one protocol",
		Long:  "Resolve a protocol name (typos and aliases tolerated), fetch its metrics, and print a scored report.",
		Args:  cobra.ExactArgs(1),
		RunE:  runReport,
	}
	reportCmd.Flags().Int("days", 0, "Days of TVL history (default from config: 30)")
	reportCmd.Flags().Bool("json", false, "Output raw JSON instead of markdown")
	reportCmd.Flags().String("out", "", "Directory to also write the report file into")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve reports over HTTP",
		Long:  "Expose /v1/report/{protocol}, /healthz, and /metrics, with periodic catalog refresh.",
		RunE:  runServe,
	}
	serveCmd.Flags().String("listen", "", "Listen address (default from config: :8780)")

	rootCmd.AddCommand(reportCmd, serveCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runReport(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	days, _ := cmd.Flags().GetInt("days")
	rawJSON, _ := cmd.Flags().GetBool("json")
	outDir, _ := cmd.Flags().GetString("out")

	rep, err := a.Report(cmd.Context(), args[0], days)
	if err != nil {
		var notFound *app.NotFoundError
		switch {
		case errors.As(err, &notFound):
			return fmt.Errorf("protocol not recognized: %s", notFound.Error())
		case errors.Is(err, app.ErrUnavailable):
			return fmt.Errorf("data temporarily unavailable, try again: %w", err)
		default:
			return err
		}
	}

	var rendered []byte
	ext := "md"
	if rawJSON {
		ext = "json"
		rendered, err = json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return err
		}
	} else {
		rendered = []byte(report.RenderMarkdown(rep))
	}

	fmt.Println(string(rendered))

	if outDir != "" {
		name := report.Filename(rep.Metadata.Slug, rep.GeneratedAt, ext)
		path := filepath.Join(outDir, name)
		if err := os.WriteFile(path, rendered, 0o644); err != nil {
			return fmt.Errorf("writing report file: %w", err)
		}
		log.Info().Str("path", path).Msg("report written")
	}

	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.Server.Listen = listen
	}

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	srv, err := server.New(a, cfg.Server.Listen, cfg.Server.CatalogRefreshSpec)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

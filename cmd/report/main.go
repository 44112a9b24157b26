package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"backtest-lab/internal/config"
	"backtest-lab/internal/logging"
	"backtest-lab/internal/reporting"
	pgstore "backtest-lab/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	runID := flag.String("run-id", "", "Run ID to report on (required)")
	format := flag.String("format", "markdown", "Output format: markdown, csv")
	outPath := flag.String("out", "", "Output file (default: stdout)")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	if *runID == "" {
		logger.Fatal().Msg("--run-id is required")
	}

	ctx := context.Background()

	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect to postgres")
	}
	defer pool.Close()

	generator := reporting.NewGenerator(pgstore.NewReportStore(pool))
	summary, err := generator.Generate(ctx, *runID)
	if err != nil {
		logger.Fatal().Err(err).Str("run_id", *runID).Msg("generate summary")
	}

	var rendered string
	switch *format {
	case "markdown":
		rendered = reporting.RenderMarkdown(summary)
	case "csv":
		rendered = reporting.RenderCSV(summary)
	default:
		logger.Fatal().Str("format", *format).Msg("unknown format")
	}

	if *outPath == "" {
		fmt.Print(rendered)
		return
	}

	if err := os.WriteFile(*outPath, []byte(rendered), 0o644); err != nil {
		logger.Fatal().Err(err).Msg("write output")
	}
	logger.Info().Str("path", *outPath).Msg("report written")
}

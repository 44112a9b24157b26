package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"backtest-lab/internal/config"
	"backtest-lab/internal/feed"
	"backtest-lab/internal/logging"
	"backtest-lab/internal/observability"
	"backtest-lab/internal/storage"
	chstore "backtest-lab/internal/storage/clickhouse"
	"backtest-lab/internal/storage/memory"
	"backtest-lab/internal/storage/migrations"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	symbolsFlag := flag.String("symbols", "", "Comma-separated symbols to subscribe (required unless --bars-file)")
	barsFile := flag.String("bars-file", "", "Bulk-load a JSON bars file instead of streaming")
	batchSize := flag.Int("batch-size", 500, "Bars per insert batch")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Warn().Str("signal", sig.String()).Msg("shutting down")
		cancel()
	}()

	tolerance := storage.GapTolerance{
		IntervalMs: cfg.Series.IntervalMs,
		Intervals:  cfg.Series.GapIntervals,
	}

	var barStore storage.BarSeriesStore
	switch cfg.Storage.Backend {
	case "memory":
		barStore = memory.NewBarSeriesStore(tolerance)
		logger.Warn().Msg("memory backend selected: ingested bars are lost on exit")

	case "db":
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickhouseDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("clickhouse migrations")
		}
		defer conn.Close()
		barStore = chstore.NewBarSeriesStore(conn, tolerance)

	default:
		logger.Fatal().Str("backend", cfg.Storage.Backend).Msg("unknown storage backend")
	}

	// Bulk-load mode
	if *barsFile != "" {
		bars, err := feed.LoadBarsFile(*barsFile)
		if err != nil {
			logger.Fatal().Err(err).Msg("load bars file")
		}
		if err := barStore.InsertBars(ctx, bars); err != nil {
			logger.Fatal().Err(err).Msg("insert bars")
		}
		observability.RecordBarsStored(len(bars))
		logger.Info().Int("bars", len(bars)).Msg("bars loaded")
		return
	}

	var symbols []string
	for _, s := range strings.Split(*symbolsFlag, ",") {
		if s = strings.TrimSpace(s); s != "" {
			symbols = append(symbols, s)
		}
	}
	if len(symbols) == 0 {
		logger.Fatal().Msg("--symbols is required for streaming ingestion")
	}

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler())
		server := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		logger.Info().Str("addr", cfg.Metrics.Addr).Msg("metrics endpoint up")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()

	client, err := feed.NewClient(ctx, cfg.Feed.Endpoint, nil, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("endpoint", cfg.Feed.Endpoint).Msg("connect to feed")
	}
	defer client.Close()

	if err := client.Subscribe(ctx, symbols); err != nil {
		logger.Fatal().Err(err).Msg("subscribe")
	}
	logger.Info().Strs("symbols", symbols).Msg("subscribed to bar feed")

	ingester := feed.NewIngester(barStore, &feed.IngesterConfig{
		BatchSize:     *batchSize,
		FlushInterval: 5 * time.Second,
	}, logger)

	if err := ingester.Run(ctx, client.Bars()); err != nil && err != context.Canceled {
		logger.Fatal().Err(err).Msg("ingestion failed")
	}
	logger.Info().Msg("ingestion stopped")
}

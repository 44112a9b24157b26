package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"backtest-lab/internal/config"
	"backtest-lab/internal/domain"
	"backtest-lab/internal/feed"
	"backtest-lab/internal/logging"
	"backtest-lab/internal/orchestrator"
	"backtest-lab/internal/simulation"
	"backtest-lab/internal/storage"
	chstore "backtest-lab/internal/storage/clickhouse"
	"backtest-lab/internal/storage/memory"
	"backtest-lab/internal/storage/migrations"
	pgstore "backtest-lab/internal/storage/postgres"
	"backtest-lab/internal/validation"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	symbolsFlag := flag.String("symbols", "", "Comma-separated symbols (default: all stored)")
	startMs := flag.Int64("start-ms", 0, "Range start (unix ms, required)")
	endMs := flag.Int64("end-ms", 0, "Range end (unix ms, required)")
	barsFile := flag.String("bars-file", "", "JSON bars file to preload (memory backend)")
	minLiquidity := flag.Float64("min-liquidity", 0.5, "Opportunity fires when the window's last bar liquidity >= this")
	samplerName := flag.String("sampler", "replay", "Outcome sampler: replay, seeded")
	seed := flag.Int64("seed", 1, "Seed for the seeded sampler")
	winProb := flag.Float64("win-prob", 0.5, "Win probability for the seeded sampler")
	concurrency := flag.Int("concurrency", 4, "Symbols processed in parallel")
	outputJSON := flag.Bool("json", false, "Output run result as JSON")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	if *startMs <= 0 || *endMs <= 0 || *endMs < *startMs {
		logger.Fatal().Msg("--start-ms and --end-ms are required and must form a valid range")
	}

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

	// Build stores
	var barStore storage.BarSeriesStore
	var tradeStore storage.TradeLogStore
	var reportStore storage.ReportStore

	switch cfg.Storage.Backend {
	case "memory":
		memBars := memory.NewBarSeriesStore(tolerance)
		if *barsFile != "" {
			bars, err := feed.LoadBarsFile(*barsFile)
			if err != nil {
				logger.Fatal().Err(err).Msg("load bars file")
			}
			if err := memBars.InsertBars(ctx, bars); err != nil {
				logger.Fatal().Err(err).Msg("preload bars")
			}
			logger.Info().Int("bars", len(bars)).Msg("bars preloaded")
		}
		barStore = memBars
		tradeStore = memory.NewTradeLogStore()
		reportStore = memory.NewReportStore()

	case "db":
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect to postgres")
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("postgres migrations")
		}

		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickhouseDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("clickhouse migrations")
		}
		defer conn.Close()

		barStore = chstore.NewBarSeriesStore(conn, tolerance)
		tradeStore = pgstore.NewTradeLogStore(pool)
		reportStore = pgstore.NewReportStore(pool)

	default:
		logger.Fatal().Str("backend", cfg.Storage.Backend).Msg("unknown storage backend")
	}

	// Resolve symbols
	var symbols []string
	if *symbolsFlag != "" {
		for _, s := range strings.Split(*symbolsFlag, ",") {
			if s = strings.TrimSpace(s); s != "" {
				symbols = append(symbols, s)
			}
		}
	} else {
		symbols, err = barStore.Symbols(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("list symbols")
		}
	}
	if len(symbols) == 0 {
		logger.Fatal().Msg("no symbols to backtest")
	}

	// Strategy collaborators
	predicate := liquidityPredicate(*minLiquidity)

	var sampler simulation.OutcomeSampler
	switch *samplerName {
	case "replay":
		sampler = simulation.NewReplaySampler()
	case "seeded":
		sampler = simulation.NewSeededSampler(*seed, *winProb)
	default:
		logger.Fatal().Str("sampler", *samplerName).Msg("unknown sampler")
	}

	orch := orchestrator.New(orchestrator.Options{
		BarSeriesStore: barStore,
		TradeLogStore:  tradeStore,
		ReportStore:    reportStore,
		Validation: validation.Config{
			MaxGapIntervals:  cfg.Validation.MaxGapIntervals,
			MaxJumpPct:       cfg.Validation.MaxJumpPct,
			MinCompatibility: cfg.Validation.MinCompatibility,
		},
		Simulation: simulation.Config{
			WindowSize:       cfg.Simulation.WindowSize,
			ExitHorizon:      cfg.Simulation.ExitHorizon,
			PositionFraction: cfg.Simulation.PositionFraction,
			InitialCapital:   cfg.Simulation.InitialCapital,
			StopLossPct:      cfg.Simulation.StopLossPct,
		},
		Thresholds:  cfg.Thresholds,
		Predicate:   predicate,
		Sampler:     sampler,
		Concurrency: *concurrency,
		Logger:      logger,
	})

	result, err := orch.Run(ctx, symbols, *startMs, *endMs)
	if err != nil {
		logger.Fatal().Err(err).Msg("run failed")
	}

	if *outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			logger.Fatal().Err(err).Msg("encode result")
		}
		return
	}

	fmt.Printf("Run:        %s\n", result.RunID)
	fmt.Printf("Symbols:    %d (blocked: %d)\n", result.SymbolsTotal, result.SymbolsBlocked)
	fmt.Printf("Qualified:  %d\n", result.Qualified)
	fmt.Printf("Trades:     %d\n", result.TradesCreated)
	for _, e := range result.Errors {
		fmt.Printf("Error:      %s\n", e)
	}
	if len(result.Errors) > 0 {
		os.Exit(1)
	}
}

// liquidityPredicate fires when the window's last bar carries at least the
// given liquidity score.
func liquidityPredicate(minLiquidity float64) simulation.OpportunityPredicate {
	return func(window []*domain.Bar) (bool, error) {
		if len(window) == 0 {
			return false, nil
		}
		return window[len(window)-1].LiquidityScore >= minLiquidity, nil
	}
}

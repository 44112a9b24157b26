package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"backtest-lab/internal/config"
	"backtest-lab/internal/feed"
	"backtest-lab/internal/logging"
	"backtest-lab/internal/storage"
	chstore "backtest-lab/internal/storage/clickhouse"
	"backtest-lab/internal/storage/memory"
	"backtest-lab/internal/validation"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	symbol := flag.String("symbol", "", "Symbol to validate (required)")
	startMs := flag.Int64("start-ms", 0, "Range start (unix ms, required)")
	endMs := flag.Int64("end-ms", 0, "Range end (unix ms, required)")
	barsFile := flag.String("bars-file", "", "JSON bars file to preload (memory backend)")
	outputJSON := flag.Bool("json", false, "Output scores as JSON")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	if *symbol == "" {
		logger.Fatal().Msg("--symbol is required")
	}
	if *startMs <= 0 || *endMs <= 0 || *endMs < *startMs {
		logger.Fatal().Msg("--start-ms and --end-ms are required and must form a valid range")
	}

	ctx := context.Background()

	tolerance := storage.GapTolerance{
		IntervalMs: cfg.Series.IntervalMs,
		Intervals:  cfg.Series.GapIntervals,
	}

	var barStore storage.BarSeriesStore
	switch cfg.Storage.Backend {
	case "memory":
		memBars := memory.NewBarSeriesStore(tolerance)
		if *barsFile == "" {
			logger.Fatal().Msg("--bars-file is required with the memory backend")
		}
		bars, err := feed.LoadBarsFile(*barsFile)
		if err != nil {
			logger.Fatal().Err(err).Msg("load bars file")
		}
		if err := memBars.InsertBars(ctx, bars); err != nil {
			logger.Fatal().Err(err).Msg("preload bars")
		}
		barStore = memBars

	case "db":
		conn, err := chstore.NewConn(ctx, cfg.Storage.ClickhouseDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect to clickhouse")
		}
		defer conn.Close()
		barStore = chstore.NewBarSeriesStore(conn, tolerance)

	default:
		logger.Fatal().Str("backend", cfg.Storage.Backend).Msg("unknown storage backend")
	}

	series, err := barStore.Load(ctx, *symbol, *startMs, *endMs)
	if err != nil {
		logger.Fatal().Err(err).Msg("load series")
	}

	suite := validation.NewSuite(validation.Config{
		MaxGapIntervals:  cfg.Validation.MaxGapIntervals,
		MaxJumpPct:       cfg.Validation.MaxJumpPct,
		MinCompatibility: cfg.Validation.MinCompatibility,
	})

	scores := struct {
		Symbol          string  `json:"symbol"`
		Bars            int     `json:"bars"`
		Completeness    float64 `json:"completeness"`
		Continuity      float64 `json:"continuity"`
		Integrity       float64 `json:"integrity"`
		PriceContinuity float64 `json:"price_continuity"`
		Overall         float64 `json:"overall"`
		Blocked         bool    `json:"blocked"`
	}{
		Symbol:          *symbol,
		Bars:            series.Len(),
		Completeness:    suite.Completeness(series, suite.ExpectedPoints(series)),
		Continuity:      suite.Continuity(series),
		Integrity:       suite.Integrity(series),
		PriceContinuity: suite.PriceContinuity(series),
	}
	scores.Overall, scores.Blocked = suite.Blocks(series)

	if *outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(scores); err != nil {
			logger.Fatal().Err(err).Msg("encode scores")
		}
		return
	}

	fmt.Printf("Symbol:           %s (%d bars)\n", scores.Symbol, scores.Bars)
	fmt.Printf("Completeness:     %.4f\n", scores.Completeness)
	fmt.Printf("Continuity:       %.4f\n", scores.Continuity)
	fmt.Printf("Integrity:        %.4f\n", scores.Integrity)
	fmt.Printf("Price continuity: %.4f\n", scores.PriceContinuity)
	fmt.Printf("Overall:          %.4f\n", scores.Overall)
	if scores.Blocked {
		fmt.Printf("Status:           BLOCKED (floor %.2f)\n", cfg.Validation.MinCompatibility)
		os.Exit(1)
	}
	fmt.Println("Status:           OK")
}

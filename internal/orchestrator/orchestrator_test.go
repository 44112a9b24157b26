package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/simulation"
	"backtest-lab/internal/storage"
	"backtest-lab/internal/storage/memory"
	"backtest-lab/internal/validation"
)

const intervalMs = 60_000

func risingBar(symbol string, i int) *domain.Bar {
	base := 100.0 + float64(i)
	return &domain.Bar{
		TimestampMs:    int64(i) * intervalMs,
		Symbol:         symbol,
		Open:           base,
		High:           base + 1.5,
		Low:            base - 0.5,
		Close:          base + 1,
		Volume:         1000,
		LiquidityScore: 0.9,
	}
}

func sparseBar(symbol string, i int) *domain.Bar {
	// Every bar sits 10 intervals after the previous one, well past the
	// validation gap tolerance.
	return &domain.Bar{
		TimestampMs:    int64(i) * 10 * intervalMs,
		Symbol:         symbol,
		Open:           100,
		High:           101,
		Low:            99,
		Close:          100,
		Volume:         1000,
		LiquidityScore: 0.9,
	}
}

type stores struct {
	bars    *memory.BarSeriesStore
	trades  *memory.TradeLogStore
	reports *memory.ReportStore
}

func newStores(t *testing.T) stores {
	t.Helper()
	return stores{
		// Loose load tolerance so gap handling is exercised by validation,
		// not by the store.
		bars:    memory.NewBarSeriesStore(storage.GapTolerance{IntervalMs: intervalMs, Intervals: 100}),
		trades:  memory.NewTradeLogStore(),
		reports: memory.NewReportStore(),
	}
}

func seedBars(t *testing.T, s stores, symbol string, n int, build func(string, int) *domain.Bar) {
	t.Helper()
	bars := make([]*domain.Bar, 0, n)
	for i := 0; i < n; i++ {
		bars = append(bars, build(symbol, i))
	}
	if err := s.bars.InsertBars(context.Background(), bars); err != nil {
		t.Fatalf("seed %s: %v", symbol, err)
	}
}

func testOptions(s stores) Options {
	return Options{
		BarSeriesStore: s.bars,
		TradeLogStore:  s.trades,
		ReportStore:    s.reports,
		Validation:     validation.DefaultConfig(),
		Simulation: simulation.Config{
			WindowSize:       5,
			ExitHorizon:      3,
			PositionFraction: 0.01,
			InitialCapital:   100_000,
		},
		Thresholds:  domain.DefaultThresholds(),
		Predicate:   func(window []*domain.Bar) (bool, error) { return true, nil },
		Sampler:     simulation.NewReplaySampler(),
		Concurrency: 4,
		Logger:      zerolog.Nop(),
	}
}

func fixedClock() func() time.Time {
	fixed := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return fixed }
}

func TestOrchestrator_Run(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	seedBars(t, s, "GOOD", 30, risingBar)
	seedBars(t, s, "SPARSE", 10, sparseBar)

	o := New(testOptions(s)).WithClock(fixedClock())

	result, err := o.Run(ctx, []string{"GOOD", "SPARSE", "MISSING"}, 0, 30*10*intervalMs)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.RunID == "" {
		t.Error("empty run id")
	}
	if result.SymbolsTotal != 3 {
		t.Errorf("symbols total = %d, want 3", result.SymbolsTotal)
	}
	if result.SymbolsBlocked != 1 {
		t.Errorf("symbols blocked = %d, want 1", result.SymbolsBlocked)
	}
	// SPARSE blocks on validation, MISSING fails the load.
	if len(result.Errors) != 2 {
		t.Errorf("errors = %v, want 2 entries", result.Errors)
	}

	// 30 bars with window 5 give 26 window positions; an always-firing
	// predicate opens a trade at each.
	if result.TradesCreated != 26 {
		t.Errorf("trades created = %d, want 26", result.TradesCreated)
	}
	if len(result.Reports) != 1 {
		t.Fatalf("got %d reports, want 1", len(result.Reports))
	}

	report := result.Reports[0]
	if report.Symbol != "GOOD" || report.RunID != result.RunID {
		t.Errorf("report identity = %s/%s", report.RunID, report.Symbol)
	}
	// A rising series under replay sampling wins every trade except the
	// final window, whose exit clamps to the entry bar.
	if report.SuccessfulTrades != 25 || report.FailedTrades != 1 {
		t.Errorf("wins/losses = %d/%d, want 25/1", report.SuccessfulTrades, report.FailedTrades)
	}
	if report.DataQualityScore != 1.0 || report.CompatibilityScore != 1.0 {
		t.Errorf("quality scores = %f/%f, want 1.0/1.0", report.DataQualityScore, report.CompatibilityScore)
	}
	if result.Qualified != 1 {
		t.Errorf("qualified = %d, want 1", result.Qualified)
	}
}

func TestOrchestrator_PersistsTradesAndReports(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	seedBars(t, s, "GOOD", 30, risingBar)

	o := New(testOptions(s)).WithClock(fixedClock())

	result, err := o.Run(ctx, []string{"GOOD"}, 0, 30*intervalMs)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	trades, err := s.trades.GetByRunSymbol(ctx, result.RunID, "GOOD")
	if err != nil {
		t.Fatalf("GetByRunSymbol failed: %v", err)
	}
	if len(trades) != result.TradesCreated {
		t.Errorf("persisted %d trades, want %d", len(trades), result.TradesCreated)
	}
	for _, trade := range trades {
		if trade.Outcome != domain.OutcomeWin && trade.Outcome != domain.OutcomeLoss {
			t.Errorf("trade %s left open: outcome %s", trade.TradeID, trade.Outcome)
		}
	}

	report, qual, err := s.reports.GetByRunSymbol(ctx, result.RunID, "GOOD")
	if err != nil {
		t.Fatalf("report lookup failed: %v", err)
	}
	if report.TotalTrades != result.TradesCreated {
		t.Errorf("persisted report trades = %d, want %d", report.TotalTrades, result.TradesCreated)
	}
	if qual == nil || len(qual.Criteria) != 6 {
		t.Fatalf("qualification = %+v, want 6 criteria", qual)
	}
}

func TestOrchestrator_DeterministicRunID(t *testing.T) {
	ctx := context.Background()
	clock := fixedClock()

	var runIDs []string
	for i := 0; i < 2; i++ {
		s := newStores(t)
		seedBars(t, s, "GOOD", 30, risingBar)
		o := New(testOptions(s)).WithClock(clock)

		result, err := o.Run(ctx, []string{"GOOD"}, 0, 30*intervalMs)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		runIDs = append(runIDs, result.RunID)
	}

	if runIDs[0] != runIDs[1] {
		t.Errorf("run ids differ across identical runs: %s vs %s", runIDs[0], runIDs[1])
	}
}

func TestOrchestrator_SymbolErrorIsolation(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	seedBars(t, s, "GOOD", 30, risingBar)
	seedBars(t, s, "BAD", 30, risingBar)

	opts := testOptions(s)
	opts.Predicate = func(window []*domain.Bar) (bool, error) {
		if window[0].Symbol == "BAD" {
			return false, fmt.Errorf("strategy offline")
		}
		return true, nil
	}

	o := New(opts).WithClock(fixedClock())

	result, err := o.Run(ctx, []string{"GOOD", "BAD"}, 0, 30*intervalMs)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "BAD") {
		t.Errorf("errors = %v, want single BAD entry", result.Errors)
	}
	if len(result.Reports) != 1 || result.Reports[0].Symbol != "GOOD" {
		t.Errorf("reports = %v, want GOOD only", result.Reports)
	}
	if result.TradesCreated != 26 {
		t.Errorf("trades created = %d, want 26 from GOOD", result.TradesCreated)
	}
}

func TestOrchestrator_NoSymbols(t *testing.T) {
	o := New(testOptions(newStores(t)))
	if _, err := o.Run(context.Background(), nil, 0, 1000); err == nil {
		t.Error("empty symbol list accepted")
	}
}

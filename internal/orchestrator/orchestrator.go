// Package orchestrator provides E2E backtest orchestration.
// It coordinates: series load → validation → simulation → qualification → persistence
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/idhash"
	"backtest-lab/internal/observability"
	"backtest-lab/internal/qualification"
	"backtest-lab/internal/simulation"
	"backtest-lab/internal/storage"
	"backtest-lab/internal/validation"
)

// Orchestrator coordinates one backtest run across symbols.
// Symbols are processed on independent goroutines with fully isolated
// capital state; results are merged only after all workers join.
type Orchestrator struct {
	barStore    storage.BarSeriesStore
	tradeStore  storage.TradeLogStore
	reportStore storage.ReportStore

	validationCfg validation.Config
	simulationCfg simulation.Config
	thresholds    domain.Thresholds

	predicate simulation.OpportunityPredicate
	sampler   simulation.OutcomeSampler

	concurrency int
	logger      zerolog.Logger
	now         func() time.Time
}

// Options for creating Orchestrator.
type Options struct {
	// Required stores
	BarSeriesStore storage.BarSeriesStore
	TradeLogStore  storage.TradeLogStore
	ReportStore    storage.ReportStore

	// Stage configs
	Validation validation.Config
	Simulation simulation.Config
	Thresholds domain.Thresholds

	// Injected strategy collaborators
	Predicate simulation.OpportunityPredicate
	Sampler   simulation.OutcomeSampler

	// Concurrency is the number of symbols processed in parallel.
	// Values below 1 mean sequential.
	Concurrency int

	Logger zerolog.Logger
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Orchestrator{
		barStore:      opts.BarSeriesStore,
		tradeStore:    opts.TradeLogStore,
		reportStore:   opts.ReportStore,
		validationCfg: opts.Validation,
		simulationCfg: opts.Simulation,
		thresholds:    opts.Thresholds,
		predicate:     opts.Predicate,
		sampler:       opts.Sampler,
		concurrency:   concurrency,
		logger:        opts.Logger.With().Str("component", "orchestrator").Logger(),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic run IDs.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// RunResult contains the merged outcome of one run.
type RunResult struct {
	RunID          string
	SymbolsTotal   int
	SymbolsBlocked int
	Qualified      int
	TradesCreated  int
	Reports        []*domain.Report
	Errors         []string
}

// symbolResult is the per-worker outcome before merging.
type symbolResult struct {
	symbol    string
	report    *domain.Report
	qualified bool
	blocked   bool
	trades    int
	err       error
}

// Run executes the full pipeline for every symbol over [startMs, endMs].
// A symbol that fails validation or simulation never stops the others;
// its error is carried into the merged result.
func (o *Orchestrator) Run(ctx context.Context, symbols []string, startMs, endMs int64) (*RunResult, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols to run")
	}

	sorted := append([]string(nil), symbols...)
	sort.Strings(sorted)

	runID := idhash.ComputeRunID(sorted, startMs, endMs, o.now().UnixMilli())
	logger := o.logger.With().Str("run_id", runID).Logger()
	logger.Info().Int("symbols", len(sorted)).Int64("start_ms", startMs).Int64("end_ms", endMs).Msg("run started")

	results := make([]symbolResult, len(sorted))

	var wg sync.WaitGroup
	sem := make(chan struct{}, o.concurrency)
	for i, symbol := range sorted {
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = o.runSymbol(ctx, logger, runID, symbol, startMs, endMs)
		}(i, symbol)
	}
	wg.Wait()

	// Merge after join: workers never touch shared aggregates.
	result := &RunResult{
		RunID:        runID,
		SymbolsTotal: len(sorted),
	}
	for _, r := range results {
		if r.err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", r.symbol, r.err))
		}
		if r.blocked {
			result.SymbolsBlocked++
		}
		if r.qualified {
			result.Qualified++
		}
		result.TradesCreated += r.trades
		if r.report != nil {
			result.Reports = append(result.Reports, r.report)
		}
	}

	logger.Info().
		Int("qualified", result.Qualified).
		Int("blocked", result.SymbolsBlocked).
		Int("trades", result.TradesCreated).
		Int("errors", len(result.Errors)).
		Msg("run finished")

	return result, nil
}

// runSymbol executes load → validate → simulate → qualify → persist for one symbol.
func (o *Orchestrator) runSymbol(ctx context.Context, logger zerolog.Logger, runID, symbol string, startMs, endMs int64) symbolResult {
	res := symbolResult{symbol: symbol}
	log := logger.With().Str("symbol", symbol).Logger()
	started := time.Now()

	series, err := o.barStore.Load(ctx, symbol, startMs, endMs)
	if err != nil {
		observability.DefaultMetrics.SimulationRuns.WithLabelValues("load_failed").Inc()
		log.Error().Err(err).Msg("series load failed")
		res.err = fmt.Errorf("load series: %w", err)
		return res
	}

	// Validation gate: a series below the compatibility floor never reaches
	// the simulation loop.
	suite := validation.NewSuite(o.validationCfg)
	score, blocked := suite.Blocks(series)
	observability.DefaultMetrics.ValidationRuns.Inc()
	observability.DefaultMetrics.ValidationScore.Observe(score)
	if blocked {
		observability.DefaultMetrics.ValidationBlocked.Inc()
		observability.DefaultMetrics.SimulationRuns.WithLabelValues("blocked").Inc()
		log.Warn().Float64("score", score).Float64("floor", o.validationCfg.MinCompatibility).Msg("series blocked by validation")
		res.blocked = true
		res.err = fmt.Errorf("validation score %.4f below floor %.4f", score, o.validationCfg.MinCompatibility)
		return res
	}

	loop := simulation.NewLoop(o.simulationCfg, o.predicate, o.sampler)
	report, trades, err := loop.Run(ctx, runID, series)
	if err != nil {
		observability.DefaultMetrics.SimulationAborts.Inc()
		observability.DefaultMetrics.SimulationRuns.WithLabelValues("aborted").Inc()

		// An abort still carries the partial report for diagnostics.
		var abort *simulation.AbortError
		if errors.As(err, &abort) && abort.Partial != nil {
			log.Error().Err(err).Int("partial_trades", abort.Partial.TotalTrades).Msg("simulation aborted")
		} else {
			log.Error().Err(err).Msg("simulation aborted")
		}
		res.err = err
		return res
	}

	observability.DefaultMetrics.SimulationRuns.WithLabelValues("completed").Inc()
	observability.DefaultMetrics.SimulationLatency.Observe(time.Since(started).Seconds())
	for range trades {
		observability.RecordTradeSimulated()
	}

	// Quality scores ride on the report so the gate sees one flat view.
	report.DataQualityScore = suite.OverallScore(series)
	report.CompatibilityScore = score

	gate := qualification.NewGate()
	qual := gate.Evaluate(report, o.thresholds)
	observability.RecordGateEvaluation(qual.Passed)
	for _, name := range qual.FailingNames() {
		observability.DefaultMetrics.CriteriaFailed.WithLabelValues(name).Inc()
	}

	if err := o.persist(ctx, report, qual, trades); err != nil {
		log.Error().Err(err).Msg("persistence failed")
		res.report = report
		res.err = err
		return res
	}

	log.Info().
		Int("trades", len(trades)).
		Float64("win_rate", report.WinRate).
		Float64("max_drawdown", report.MaxDrawdown).
		Bool("qualified", qual.Passed).
		Strs("failing", qual.FailingNames()).
		Msg("symbol finished")

	res.report = report
	res.qualified = qual.Passed
	res.trades = len(trades)
	return res
}

// persist writes trades and the report in that order; a duplicate trade log
// means the run ID collided, which is surfaced rather than merged.
func (o *Orchestrator) persist(ctx context.Context, report *domain.Report, qual *domain.QualificationResult, trades []*domain.SimulatedTrade) error {
	if len(trades) > 0 {
		if err := o.tradeStore.InsertBulk(ctx, trades); err != nil {
			return fmt.Errorf("insert trades: %w", err)
		}
	}
	if err := o.reportStore.Insert(ctx, report, qual); err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// Package simulation deterministically replays a bar series and produces
// a stream of simulated trades. The opportunity predicate (the "strategy")
// and the outcome sampler are injected by the caller; the loop itself owns
// only the window walk, trade lifecycle and capital accounting.
package simulation

import (
	"context"
	"fmt"
	"math"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/idhash"
	"backtest-lab/internal/metrics"
)

// OpportunityPredicate decides whether a window of bars presents a trade
// opportunity. Pluggable and externally supplied: callers inject it.
type OpportunityPredicate func(window []*domain.Bar) (bool, error)

// Config holds simulation loop parameters.
type Config struct {
	// WindowSize is the width of the sliding window in bars.
	WindowSize int

	// ExitHorizon is the number of bars after entry at which a trade closes,
	// unless a stop fires first. Defaults to WindowSize.
	ExitHorizon int

	// PositionFraction is the capital fraction committed per trade.
	PositionFraction float64

	// InitialCapital is the starting balance for the capital state.
	InitialCapital float64

	// StopLossPct closes a trade early when a bar's low drops this fraction
	// below the entry price. Zero disables the stop.
	StopLossPct float64
}

// DefaultConfig returns the stock simulation parameters.
func DefaultConfig() Config {
	return Config{
		WindowSize:       100,
		ExitHorizon:      100,
		PositionFraction: 0.01,
		InitialCapital:   100_000,
	}
}

// AbortError is returned when the injected predicate or sampler fails, or
// when the context is cancelled between windows. It carries the last good
// partial report: the loop never silently continues past a failure.
type AbortError struct {
	Symbol  string
	Partial *domain.Report
	Err     error
}

// Error implements error.
func (e *AbortError) Error() string {
	return fmt.Sprintf("simulation aborted for %s after %d trades: %v", e.Symbol, e.Partial.TotalTrades, e.Err)
}

// Unwrap returns the underlying cause.
func (e *AbortError) Unwrap() error {
	return e.Err
}

// Loop walks a series in fixed-size sliding windows.
type Loop struct {
	cfg       Config
	predicate OpportunityPredicate
	sampler   OutcomeSampler
}

// NewLoop creates a simulation loop with injected collaborators.
func NewLoop(cfg Config, predicate OpportunityPredicate, sampler OutcomeSampler) *Loop {
	def := DefaultConfig()
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = def.WindowSize
	}
	if cfg.ExitHorizon <= 0 {
		cfg.ExitHorizon = cfg.WindowSize
	}
	if cfg.PositionFraction <= 0 {
		cfg.PositionFraction = def.PositionFraction
	}
	if cfg.InitialCapital <= 0 {
		cfg.InitialCapital = def.InitialCapital
	}
	return &Loop{cfg: cfg, predicate: predicate, sampler: sampler}
}

// Run replays the series one bar at a time. At each window position the
// predicate is consulted; when it fires, a trade opens at the window's last
// bar close and closes at the exit horizon (or earlier on the stop). Each
// trade goes Open -> Closed-Win | Closed-Loss in a single window cycle, so
// the capital state is never left torn: cancellation takes effect only
// between windows.
func (l *Loop) Run(ctx context.Context, runID string, series *domain.Series) (*domain.Report, []*domain.SimulatedTrade, error) {
	agg := metrics.NewAggregator(runID, series.Symbol, l.cfg.InitialCapital)

	bars := series.Bars
	for i := 0; i+l.cfg.WindowSize <= len(bars); i++ {
		if err := ctx.Err(); err != nil {
			return nil, agg.Trades(), &AbortError{Symbol: series.Symbol, Partial: agg.Report(), Err: err}
		}

		window := bars[i : i+l.cfg.WindowSize]
		fired, err := l.predicate(window)
		if err != nil {
			return nil, agg.Trades(), &AbortError{Symbol: series.Symbol, Partial: agg.Report(), Err: fmt.Errorf("opportunity predicate: %w", err)}
		}
		if !fired {
			continue
		}

		trade, holdBars := l.openTrade(runID, bars, i)

		win, err := l.sampler.Sample(ctx, trade, holdBars)
		if err != nil {
			return nil, agg.Trades(), &AbortError{Symbol: series.Symbol, Partial: agg.Report(), Err: fmt.Errorf("outcome sampler: %w", err)}
		}
		l.closeTrade(trade, win, agg.Capital().Current)

		agg.AddTrade(trade)
	}

	return agg.Report(), agg.Trades(), nil
}

// openTrade builds a trade from the window ending at position i, resolving
// its exit bar from the horizon and the optional stop. Returns the trade
// and the bars spanning entry to exit inclusive.
func (l *Loop) openTrade(runID string, bars []*domain.Bar, i int) (*domain.SimulatedTrade, []*domain.Bar) {
	entryIdx := i + l.cfg.WindowSize - 1
	entryBar := bars[entryIdx]

	exitIdx := entryIdx + l.cfg.ExitHorizon
	exitReason := domain.ExitReasonHorizon
	if exitIdx >= len(bars) {
		exitIdx = len(bars) - 1
		exitReason = domain.ExitReasonSeriesEnd
	}

	if l.cfg.StopLossPct > 0 {
		stopPrice := entryBar.Close * (1 - l.cfg.StopLossPct)
		for j := entryIdx + 1; j <= exitIdx; j++ {
			if bars[j].Low <= stopPrice {
				exitIdx = j
				exitReason = domain.ExitReasonStopLoss
				break
			}
		}
	}

	exitBar := bars[exitIdx]
	trade := &domain.SimulatedTrade{
		TradeID:     idhash.ComputeTradeID(runID, entryBar.Symbol, entryBar.TimestampMs, i),
		RunID:       runID,
		Symbol:      entryBar.Symbol,
		EntryTimeMs: entryBar.TimestampMs,
		EntryPrice:  entryBar.Close,
		ExitTimeMs:  exitBar.TimestampMs,
		ExitPrice:   exitBar.Close,
		ExitReason:  exitReason,
		Size:        l.cfg.PositionFraction,
		Direction:   domain.DirectionLong,
	}
	return trade, bars[entryIdx : exitIdx+1]
}

// closeTrade assigns the terminal state:
// pnl = capital_fraction × price_change_pct × (+1 win / −1 loss).
func (l *Loop) closeTrade(trade *domain.SimulatedTrade, win bool, capitalBefore float64) {
	changePct := 0.0
	if trade.EntryPrice > 0 {
		changePct = math.Abs(trade.ExitPrice-trade.EntryPrice) / trade.EntryPrice
	}
	magnitude := capitalBefore * l.cfg.PositionFraction * changePct

	if win {
		trade.Outcome = domain.OutcomeWin
		trade.PnL = magnitude
	} else {
		trade.Outcome = domain.OutcomeLoss
		trade.PnL = -magnitude
	}
}

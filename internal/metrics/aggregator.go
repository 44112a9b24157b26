// Package metrics folds closed simulated trades into a cumulative report.
// Division-by-zero branches are explicit sentinel values, documented per
// metric in compute.go, so downstream threshold comparisons stay well-defined.
package metrics

import (
	"backtest-lab/internal/domain"
)

// Aggregator accumulates trade outcomes into running totals and derives
// win rate, drawdown, Sharpe/Sortino, profit factor and recovery factor.
// Not safe for concurrent use: one aggregator per simulated symbol.
type Aggregator struct {
	runID  string
	symbol string

	initialCapital float64
	capital        domain.CapitalState

	totalTrades int
	wins        int
	losses      int
	totalProfit float64
	totalLoss   float64

	// maxDrawdown is monotonically non-decreasing: once recorded it never
	// shrinks, even if capital later recovers past the old peak.
	maxDrawdown float64

	// returns holds per-trade returns (pnl over capital before the trade),
	// the samples for Sharpe/Sortino.
	returns []float64

	trades []*domain.SimulatedTrade
}

// NewAggregator starts an empty aggregation at the initial capital.
func NewAggregator(runID, symbol string, initialCapital float64) *Aggregator {
	return &Aggregator{
		runID:          runID,
		symbol:         symbol,
		initialCapital: initialCapital,
		capital:        domain.NewCapitalState(initialCapital),
	}
}

// AddTrade folds one closed trade into the running totals and updates
// the capital state. Trades must arrive in time order.
func (a *Aggregator) AddTrade(t *domain.SimulatedTrade) {
	a.totalTrades++
	if t.Outcome == domain.OutcomeWin {
		a.wins++
		a.totalProfit += t.PnL
	} else {
		a.losses++
		a.totalLoss += -t.PnL
	}

	before := a.capital.Current
	a.capital.Apply(t.PnL)
	if before > 0 {
		a.returns = append(a.returns, t.PnL/before)
	}

	if dd := a.capital.Drawdown(); dd > a.maxDrawdown {
		a.maxDrawdown = dd
	}

	a.trades = append(a.trades, t)
}

// Capital returns the current capital state.
func (a *Aggregator) Capital() domain.CapitalState {
	return a.capital
}

// MaxDrawdown returns the worst peak-to-trough fraction recorded so far.
func (a *Aggregator) MaxDrawdown() float64 {
	return a.maxDrawdown
}

// Trades returns the trade log accumulated so far.
func (a *Aggregator) Trades() []*domain.SimulatedTrade {
	return a.trades
}

// Report derives the cumulative report snapshot. Safe to call mid-run:
// the simulation loop uses it to preserve the last good partial report
// when an injected collaborator fails.
func (a *Aggregator) Report() *domain.Report {
	netProfit := a.totalProfit - a.totalLoss

	report := &domain.Report{
		RunID:  a.runID,
		Symbol: a.symbol,

		TotalTrades:      a.totalTrades,
		SuccessfulTrades: a.wins,
		FailedTrades:     a.losses,
		WinRate:          WinRate(a.wins, a.totalTrades),

		InitialCapital: a.initialCapital,
		FinalCapital:   a.capital.Current,
		TotalProfit:    a.totalProfit,
		TotalLoss:      a.totalLoss,
		NetProfit:      netProfit,

		MaxDrawdown:    a.maxDrawdown,
		SharpeRatio:    SharpeRatio(a.returns),
		SortinoRatio:   SortinoRatio(a.returns),
		ProfitFactor:   ProfitFactor(a.totalProfit, a.totalLoss),
		RecoveryFactor: RecoveryFactor(netProfit, a.initialCapital, a.maxDrawdown),
	}

	if n := len(a.trades); n > 0 {
		report.StartTimeMs = a.trades[0].EntryTimeMs
		report.EndTimeMs = a.trades[n-1].ExitTimeMs
	}

	return report
}

package domain

// SimulatedTrade represents one trade produced by the simulation loop.
// Created when the opportunity predicate fires, written once at exit,
// immutable after close. Owned by the trade log.
type SimulatedTrade struct {
	TradeID string // deterministic hash
	RunID   string // backtest run the trade belongs to
	Symbol  string

	// Entry
	EntryTimeMs int64   // close timestamp of the window's last bar
	EntryPrice  float64 // close of the window's last bar

	// Exit
	ExitTimeMs int64
	ExitPrice  float64
	ExitReason string // reason code

	Size      float64 // capital fraction committed
	Direction string  // LONG | SHORT

	// Outcome
	Outcome string  // WIN | LOSS
	PnL     float64 // signed capital delta
}

// Trade direction constants.
const (
	DirectionLong  = "LONG"
	DirectionShort = "SHORT"
)

// Outcome constants. Trades move Open -> Closed-Win | Closed-Loss with no
// intermediate states; the constants name the two terminal states.
const (
	OutcomeWin  = "WIN"
	OutcomeLoss = "LOSS"
)

// Exit reason codes.
const (
	ExitReasonHorizon   = "HORIZON"
	ExitReasonStopLoss  = "STOP_LOSS"
	ExitReasonSeriesEnd = "SERIES_END"
)

// CapitalState tracks running capital during a simulation.
// Single mutable value, updated sequentially as trades close —
// never shared between concurrently simulating symbols.
type CapitalState struct {
	Current float64
	Peak    float64
	Trough  float64
}

// NewCapitalState starts capital tracking at the initial balance.
func NewCapitalState(initial float64) CapitalState {
	return CapitalState{Current: initial, Peak: initial, Trough: initial}
}

// Apply adds a closed trade's PnL and updates peak/trough.
func (c *CapitalState) Apply(pnl float64) {
	c.Current += pnl
	if c.Current > c.Peak {
		c.Peak = c.Current
	}
	if c.Current < c.Trough {
		c.Trough = c.Current
	}
}

// Drawdown returns the current peak-to-trough decline as a fraction of peak.
func (c *CapitalState) Drawdown() float64 {
	if c.Peak <= 0 {
		return 0
	}
	return (c.Peak - c.Current) / c.Peak
}

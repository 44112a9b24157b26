package domain

import (
	"errors"
	"fmt"
)

// Bar represents one OHLCV snapshot for a symbol over a fixed interval.
// Corresponds to the bars table in ClickHouse. Bars are immutable after load.
type Bar struct {
	TimestampMs    int64   // Unix timestamp in milliseconds (interval open)
	Symbol         string  // instrument identifier
	Open           float64 // first traded price in the interval
	High           float64 // highest traded price in the interval
	Low            float64 // lowest traded price in the interval
	Close          float64 // last traded price in the interval
	Volume         float64 // traded volume in the interval
	LiquidityScore float64 // venue liquidity score, 0..1
}

// Bar validation errors.
var (
	ErrBarHighLow   = errors.New("bar high below max(open, close) or low above min(open, close)")
	ErrBarPrice     = errors.New("bar has non-positive price")
	ErrBarVolume    = errors.New("bar has negative volume")
	ErrBarLiquidity = errors.New("bar liquidity score outside [0, 1]")
)

// Validate checks the OHLC invariants.
// A bar failing Validate is counted as a defect by the validation suite
// and rejected by stores at insert time.
func (b *Bar) Validate() error {
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return ErrBarPrice
	}
	if b.High < max(b.Open, b.Close) || b.Low > min(b.Open, b.Close) {
		return ErrBarHighLow
	}
	if b.Volume < 0 {
		return ErrBarVolume
	}
	if b.LiquidityScore < 0 || b.LiquidityScore > 1 {
		return ErrBarLiquidity
	}
	return nil
}

// Series is an ordered, time-ascending sequence of bars for one symbol.
// Owned exclusively by the bar series store; duplicate timestamps are not allowed.
type Series struct {
	Symbol     string
	IntervalMs int64 // expected bar interval in milliseconds
	Bars       []*Bar
}

// NewSeries builds a Series and enforces the ordering invariant:
// bars strictly time-ascending, no duplicate timestamps, all for Symbol.
func NewSeries(symbol string, intervalMs int64, bars []*Bar) (*Series, error) {
	for i, b := range bars {
		if b.Symbol != symbol {
			return nil, fmt.Errorf("bar %d: symbol %q does not match series symbol %q", i, b.Symbol, symbol)
		}
		if i > 0 && b.TimestampMs <= bars[i-1].TimestampMs {
			return nil, fmt.Errorf("bar %d: timestamp %d not strictly after previous %d", i, b.TimestampMs, bars[i-1].TimestampMs)
		}
	}
	return &Series{Symbol: symbol, IntervalMs: intervalMs, Bars: bars}, nil
}

// Len returns the number of bars.
func (s *Series) Len() int { return len(s.Bars) }

// StartMs returns the timestamp of the first bar, or 0 for an empty series.
func (s *Series) StartMs() int64 {
	if len(s.Bars) == 0 {
		return 0
	}
	return s.Bars[0].TimestampMs
}

// EndMs returns the timestamp of the last bar, or 0 for an empty series.
func (s *Series) EndMs() int64 {
	if len(s.Bars) == 0 {
		return 0
	}
	return s.Bars[len(s.Bars)-1].TimestampMs
}

// MaxGapMs returns the largest interval between consecutive bars.
// Returns 0 for series with fewer than two bars.
func (s *Series) MaxGapMs() int64 {
	var maxGap int64
	for i := 1; i < len(s.Bars); i++ {
		if gap := s.Bars[i].TimestampMs - s.Bars[i-1].TimestampMs; gap > maxGap {
			maxGap = gap
		}
	}
	return maxGap
}

package feed

import (
	"encoding/json"
	"fmt"
	"os"

	"backtest-lab/internal/domain"
)

// LoadBarsFile reads a JSON array of bar objects from disk. Shapes match the
// feed wire format, so captured streams can be replayed into a store.
func LoadBarsFile(path string) ([]*domain.Bar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bars file: %w", err)
	}

	var bodies []wsBarBody
	if err := json.Unmarshal(data, &bodies); err != nil {
		return nil, fmt.Errorf("parse bars file: %w", err)
	}

	bars := make([]*domain.Bar, 0, len(bodies))
	for i, b := range bodies {
		bar := &domain.Bar{
			TimestampMs:    b.TimestampMs,
			Symbol:         b.Symbol,
			Open:           b.Open,
			High:           b.High,
			Low:            b.Low,
			Close:          b.Close,
			Volume:         b.Volume,
			LiquidityScore: b.LiquidityScore,
		}
		if err := bar.Validate(); err != nil {
			return nil, fmt.Errorf("bar %d (%s@%d): %w", i, b.Symbol, b.TimestampMs, err)
		}
		bars = append(bars, bar)
	}

	return bars, nil
}

package simulation

import (
	"context"
	"math/rand"

	"backtest-lab/internal/domain"
)

// OutcomeSampler classifies an opened trade as a win or a loss.
// Implementations must be swappable: production samplers come from the
// strategy layer (a price-path model or historical replay); tests substitute
// a fixed-seed deterministic source. Nothing in this package hard-codes a
// target win rate.
type OutcomeSampler interface {
	// Sample returns true for a win. The trade carries entry/exit prices;
	// window holds the bars between entry and exit inclusive.
	Sample(ctx context.Context, trade *domain.SimulatedTrade, window []*domain.Bar) (bool, error)
}

// ReplaySampler classifies a trade from the realized price move: a long
// trade wins when the exit price is above the entry price. This is honest
// historical replay — the outcome is the data's, not a tuned distribution.
type ReplaySampler struct{}

// NewReplaySampler creates a historical-replay outcome sampler.
func NewReplaySampler() *ReplaySampler {
	return &ReplaySampler{}
}

// Sample implements OutcomeSampler.
func (s *ReplaySampler) Sample(_ context.Context, trade *domain.SimulatedTrade, _ []*domain.Bar) (bool, error) {
	if trade.Direction == domain.DirectionShort {
		return trade.ExitPrice < trade.EntryPrice, nil
	}
	return trade.ExitPrice > trade.EntryPrice, nil
}

// SeededSampler draws outcomes from a fixed-seed generator with a given win
// probability. Intended for tests and harness dry-runs where reproducibility
// matters more than realism; the probability is an explicit input, never a
// qualification target.
type SeededSampler struct {
	rng     *rand.Rand
	winProb float64
}

// NewSeededSampler creates a deterministic sampler from a seed.
func NewSeededSampler(seed int64, winProb float64) *SeededSampler {
	return &SeededSampler{
		rng:     rand.New(rand.NewSource(seed)),
		winProb: winProb,
	}
}

// Sample implements OutcomeSampler.
func (s *SeededSampler) Sample(_ context.Context, _ *domain.SimulatedTrade, _ []*domain.Bar) (bool, error) {
	return s.rng.Float64() < s.winProb, nil
}

var (
	_ OutcomeSampler = (*ReplaySampler)(nil)
	_ OutcomeSampler = (*SeededSampler)(nil)
)

// Package validation scores the quality of a bar series before simulation
// is allowed to run. All scores are pure computations over already-loaded
// data: they never fail, they only produce values in [0, 1]. Enforcing the
// minimum compatibility threshold is the caller's responsibility.
package validation

import (
	"math"

	"backtest-lab/internal/domain"
)

// Sub-score penalty weights.
const (
	// integrityPenalty is subtracted per defect ratio unit: one defective
	// bar out of N costs 0.5/N.
	integrityPenalty = 0.5

	// jumpPenalty is subtracted per large-jump ratio unit.
	jumpPenalty = 0.3
)

// Config holds validation parameters.
type Config struct {
	// MaxGapIntervals is the continuity gap tolerance as a multiple of the
	// series bar interval.
	MaxGapIntervals int64

	// MaxJumpPct flags consecutive-close deltas above this fraction as
	// potential data issues.
	MaxJumpPct float64

	// MinCompatibility is the overall score below which simulation is blocked.
	MinCompatibility float64
}

// DefaultConfig returns the stock validation parameters.
func DefaultConfig() Config {
	return Config{
		MaxGapIntervals:  5,
		MaxJumpPct:       0.10,
		MinCompatibility: 0.95,
	}
}

// Suite computes data-quality scores over a series.
type Suite struct {
	cfg Config
}

// NewSuite creates a validation suite.
func NewSuite(cfg Config) *Suite {
	if cfg.MaxGapIntervals <= 0 {
		cfg.MaxGapIntervals = DefaultConfig().MaxGapIntervals
	}
	if cfg.MaxJumpPct <= 0 {
		cfg.MaxJumpPct = DefaultConfig().MaxJumpPct
	}
	return &Suite{cfg: cfg}
}

// Completeness is the ratio of actual to expected points, capped at 1.0.
func (s *Suite) Completeness(series *domain.Series, expectedPoints int) float64 {
	if series.Len() == 0 || expectedPoints <= 0 {
		return 0
	}
	return math.Min(float64(series.Len())/float64(expectedPoints), 1.0)
}

// Continuity is the fraction of consecutive-bar intervals within the gap
// tolerance: 1 minus the gap fraction. Series with fewer than two bars
// cannot demonstrate continuity and score 0.
func (s *Suite) Continuity(series *domain.Series) float64 {
	if series.Len() < 2 {
		return 0
	}

	maxGapMs := series.IntervalMs * s.cfg.MaxGapIntervals
	gaps := 0
	intervals := series.Len() - 1
	for i := 1; i < series.Len(); i++ {
		if series.Bars[i].TimestampMs-series.Bars[i-1].TimestampMs > maxGapMs {
			gaps++
		}
	}
	return 1.0 - float64(gaps)/float64(intervals)
}

// Integrity starts at 1.0 and subtracts a fixed penalty per defect ratio
// unit for bars violating the OHLC invariants.
func (s *Suite) Integrity(series *domain.Series) float64 {
	if series.Len() == 0 {
		return 0
	}

	defects := 0
	for _, b := range series.Bars {
		if b.Validate() != nil {
			defects++
		}
	}
	score := 1.0 - integrityPenalty*float64(defects)/float64(series.Len())
	return math.Max(score, 0)
}

// PriceContinuity penalizes consecutive-bar close deltas exceeding the
// configured jump threshold. Series with fewer than two bars score 0.
func (s *Suite) PriceContinuity(series *domain.Series) float64 {
	if series.Len() < 2 {
		return 0
	}

	jumps := 0
	for i := 1; i < series.Len(); i++ {
		prev := series.Bars[i-1].Close
		if prev == 0 {
			jumps++
			continue
		}
		changePct := math.Abs(series.Bars[i].Close-prev) / prev
		if changePct > s.cfg.MaxJumpPct {
			jumps++
		}
	}
	score := 1.0 - jumpPenalty*float64(jumps)/float64(series.Len()-1)
	return math.Max(score, 0)
}

// OverallScore is the arithmetic mean of the four sub-scores. The expected
// point count is derived from the series' own time span and interval, so
// calling it twice on the same unmodified series yields the identical value.
func (s *Suite) OverallScore(series *domain.Series) float64 {
	expected := s.ExpectedPoints(series)
	sum := s.Completeness(series, expected) +
		s.Continuity(series) +
		s.Integrity(series) +
		s.PriceContinuity(series)
	return sum / 4.0
}

// ExpectedPoints derives the expected bar count for the series' span at its
// nominal interval.
func (s *Suite) ExpectedPoints(series *domain.Series) int {
	if series.Len() == 0 || series.IntervalMs <= 0 {
		return 0
	}
	span := series.EndMs() - series.StartMs()
	return int(span/series.IntervalMs) + 1
}

// Blocks reports whether the series' overall score falls below the minimum
// compatibility and therefore must not be simulated.
func (s *Suite) Blocks(series *domain.Series) (score float64, blocked bool) {
	score = s.OverallScore(series)
	return score, score < s.cfg.MinCompatibility
}

// Package qualification compares an aggregated report against a threshold
// set and produces a pass/fail decision with itemized reasons.
package qualification

import (
	"fmt"

	"backtest-lab/internal/domain"
)

// Gate evaluates qualification criteria.
type Gate struct{}

// NewGate creates a qualification gate.
func NewGate() *Gate {
	return &Gate{}
}

// Evaluate checks all six criteria against the thresholds. The run passes
// only if every criterion is satisfied; on failure the result enumerates
// every failing criterion (not just the first), each with its actual and
// required value, so a caller can render a complete diagnostic list
// without re-querying the report.
//
// The metric sentinels make each comparison well-defined: a profit factor
// of +Inf always satisfies min_profit_factor.
func (g *Gate) Evaluate(report *domain.Report, thresholds domain.Thresholds) *domain.QualificationResult {
	criteria := []domain.CriterionResult{
		{
			Name:      "win_rate",
			Threshold: fmt.Sprintf(">= %.2f", thresholds.MinWinRate),
			Actual:    fmt.Sprintf("%.4f", report.WinRate),
			Pass:      report.WinRate >= thresholds.MinWinRate,
		},
		{
			Name:      "max_drawdown",
			Threshold: fmt.Sprintf("<= %.2f", thresholds.MaxDrawdown),
			Actual:    fmt.Sprintf("%.4f", report.MaxDrawdown),
			Pass:      report.MaxDrawdown <= thresholds.MaxDrawdown,
		},
		{
			Name:      "compatibility",
			Threshold: fmt.Sprintf(">= %.2f", thresholds.MinCompatibility),
			Actual:    fmt.Sprintf("%.4f", report.CompatibilityScore),
			Pass:      report.CompatibilityScore >= thresholds.MinCompatibility,
		},
		{
			Name:      "data_quality",
			Threshold: fmt.Sprintf(">= %.2f", thresholds.MinDataQuality),
			Actual:    fmt.Sprintf("%.4f", report.DataQualityScore),
			Pass:      report.DataQualityScore >= thresholds.MinDataQuality,
		},
		{
			Name:      "sharpe_ratio",
			Threshold: fmt.Sprintf(">= %.2f", thresholds.MinSharpe),
			Actual:    fmt.Sprintf("%.4f", report.SharpeRatio),
			Pass:      report.SharpeRatio >= thresholds.MinSharpe,
		},
		{
			Name:      "profit_factor",
			Threshold: fmt.Sprintf(">= %.2f", thresholds.MinProfitFactor),
			Actual:    fmt.Sprintf("%.4f", report.ProfitFactor),
			Pass:      report.ProfitFactor >= thresholds.MinProfitFactor,
		},
	}

	passed := true
	for _, c := range criteria {
		if !c.Pass {
			passed = false
			break
		}
	}

	return &domain.QualificationResult{
		Passed:   passed,
		Criteria: criteria,
	}
}

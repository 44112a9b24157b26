package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders a run summary as Markdown string.
func RenderMarkdown(s *RunSummary) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Backtest Run Report\n\n")
	sb.WriteString(fmt.Sprintf("Run: %s\n\n", s.RunID))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", s.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Symbols: %d | Qualified: %d\n\n", len(s.Symbols), s.QualifiedCount()))

	// Per-symbol metrics
	sb.WriteString("## Symbol Metrics\n\n")
	if len(s.Symbols) > 0 {
		sb.WriteString("| Symbol | Trades | WinRate | NetProfit | MaxDD | Sharpe | Sortino | ProfitFactor | Recovery | DataQuality | Compatibility |\n")
		sb.WriteString("|--------|--------|---------|-----------|-------|--------|---------|--------------|----------|-------------|---------------|\n")
		for _, sec := range s.Symbols {
			r := sec.Report
			sb.WriteString(fmt.Sprintf("| %s | %d | %.4f | %.2f | %.4f | %.4f | %.4f | %.4f | %.4f | %.4f | %.4f |\n",
				r.Symbol, r.TotalTrades, r.WinRate, r.NetProfit, r.MaxDrawdown,
				r.SharpeRatio, r.SortinoRatio, r.ProfitFactor, r.RecoveryFactor,
				r.DataQualityScore, r.CompatibilityScore))
		}
	} else {
		sb.WriteString("No symbol reports available.\n")
	}
	sb.WriteString("\n")

	// Qualification
	sb.WriteString("## Qualification\n\n")
	for _, sec := range s.Symbols {
		r := sec.Report
		qual := sec.Qualification

		status := "REJECTED"
		if qual != nil && qual.Passed {
			status = "QUALIFIED"
		}
		sb.WriteString(fmt.Sprintf("### %s: %s\n\n", r.Symbol, status))

		if qual == nil || len(qual.Criteria) == 0 {
			sb.WriteString("No criteria recorded.\n\n")
			continue
		}

		sb.WriteString("| Criterion | Threshold | Actual | Status |\n")
		sb.WriteString("|-----------|-----------|--------|--------|\n")
		for _, c := range qual.Criteria {
			cStatus := "FAIL"
			if c.Pass {
				cStatus = "PASS"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
				c.Name, c.Threshold, c.Actual, cStatus))
		}
		sb.WriteString("\n")

		if failing := qual.FailingNames(); len(failing) > 0 {
			sb.WriteString(fmt.Sprintf("Failing: %s\n\n", strings.Join(failing, ", ")))
		}
	}

	return sb.String()
}

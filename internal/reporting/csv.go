package reporting

import (
	"fmt"
	"strings"
)

// RenderCSV renders per-symbol reports as CSV string.
func RenderCSV(s *RunSummary) string {
	var sb strings.Builder

	// Header
	sb.WriteString("run_id,symbol,total_trades,successful_trades,failed_trades,win_rate,")
	sb.WriteString("initial_capital,final_capital,net_profit,max_drawdown,")
	sb.WriteString("sharpe_ratio,sortino_ratio,profit_factor,recovery_factor,")
	sb.WriteString("data_quality_score,compatibility_score,passed\n")

	// Rows
	for _, sec := range s.Symbols {
		r := sec.Report
		passed := sec.Qualification != nil && sec.Qualification.Passed
		sb.WriteString(fmt.Sprintf("%s,%s,%d,%d,%d,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%t\n",
			r.RunID,
			r.Symbol,
			r.TotalTrades,
			r.SuccessfulTrades,
			r.FailedTrades,
			r.WinRate,
			r.InitialCapital,
			r.FinalCapital,
			r.NetProfit,
			r.MaxDrawdown,
			r.SharpeRatio,
			r.SortinoRatio,
			r.ProfitFactor,
			r.RecoveryFactor,
			r.DataQualityScore,
			r.CompatibilityScore,
			passed,
		))
	}

	return sb.String()
}

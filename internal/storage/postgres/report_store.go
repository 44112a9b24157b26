package postgres

import (
	"context"
	"fmt"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

// ReportStore implements storage.ReportStore using PostgreSQL.
// Reports and their qualification criteria live in two tables written in
// one transaction; criteria rows keep their evaluation order by position.
type ReportStore struct {
	pool *Pool
}

// NewReportStore creates a new ReportStore.
func NewReportStore(pool *Pool) *ReportStore {
	return &ReportStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ReportStore = (*ReportStore)(nil)

// Insert adds a report with its qualification result.
func (s *ReportStore) Insert(ctx context.Context, report *domain.Report, qual *domain.QualificationResult) error {
	if report == nil || report.RunID == "" || report.Symbol == "" {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO run_reports (
			run_id, symbol,
			total_trades, successful_trades, failed_trades, win_rate,
			initial_capital, final_capital, total_profit, total_loss, net_profit,
			max_drawdown, sharpe_ratio, sortino_ratio, profit_factor, recovery_factor,
			data_quality_score, compatibility_score,
			start_time_ms, end_time_ms, passed
		) VALUES (
			$1, $2,
			$3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16,
			$17, $18,
			$19, $20, $21
		)
	`

	passed := false
	if qual != nil {
		passed = qual.Passed
	}

	_, err = tx.Exec(ctx, query,
		report.RunID, report.Symbol,
		report.TotalTrades, report.SuccessfulTrades, report.FailedTrades, report.WinRate,
		report.InitialCapital, report.FinalCapital, report.TotalProfit, report.TotalLoss, report.NetProfit,
		report.MaxDrawdown, report.SharpeRatio, report.SortinoRatio, report.ProfitFactor, report.RecoveryFactor,
		report.DataQualityScore, report.CompatibilityScore,
		report.StartTimeMs, report.EndTimeMs, passed,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run report: %w", err)
	}

	if qual != nil {
		criterionQuery := `
			INSERT INTO qualification_criteria (
				run_id, symbol, position, name, threshold, actual, pass
			) VALUES ($1, $2, $3, $4, $5, $6, $7)
		`
		for i, c := range qual.Criteria {
			if _, err := tx.Exec(ctx, criterionQuery,
				report.RunID, report.Symbol, i, c.Name, c.Threshold, c.Actual, c.Pass,
			); err != nil {
				return fmt.Errorf("insert qualification criterion: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

const selectReportColumns = `
	run_id, symbol,
	total_trades, successful_trades, failed_trades, win_rate,
	initial_capital, final_capital, total_profit, total_loss, net_profit,
	max_drawdown, sharpe_ratio, sortino_ratio, profit_factor, recovery_factor,
	data_quality_score, compatibility_score,
	start_time_ms, end_time_ms
`

// GetByRunSymbol retrieves one report with its qualification result.
func (s *ReportStore) GetByRunSymbol(ctx context.Context, runID, symbol string) (*domain.Report, *domain.QualificationResult, error) {
	query := `
		SELECT ` + selectReportColumns + `, passed
		FROM run_reports
		WHERE run_id = $1 AND symbol = $2
	`

	var report domain.Report
	var passed bool
	err := s.pool.QueryRow(ctx, query, runID, symbol).Scan(
		&report.RunID, &report.Symbol,
		&report.TotalTrades, &report.SuccessfulTrades, &report.FailedTrades, &report.WinRate,
		&report.InitialCapital, &report.FinalCapital, &report.TotalProfit, &report.TotalLoss, &report.NetProfit,
		&report.MaxDrawdown, &report.SharpeRatio, &report.SortinoRatio, &report.ProfitFactor, &report.RecoveryFactor,
		&report.DataQualityScore, &report.CompatibilityScore,
		&report.StartTimeMs, &report.EndTimeMs, &passed,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil, storage.ErrNotFound
		}
		return nil, nil, fmt.Errorf("query run report: %w", err)
	}

	criteriaQuery := `
		SELECT name, threshold, actual, pass
		FROM qualification_criteria
		WHERE run_id = $1 AND symbol = $2
		ORDER BY position ASC
	`

	rows, err := s.pool.Query(ctx, criteriaQuery, runID, symbol)
	if err != nil {
		return nil, nil, fmt.Errorf("query qualification criteria: %w", err)
	}
	defer rows.Close()

	qual := &domain.QualificationResult{Passed: passed}
	for rows.Next() {
		var c domain.CriterionResult
		if err := rows.Scan(&c.Name, &c.Threshold, &c.Actual, &c.Pass); err != nil {
			return nil, nil, fmt.Errorf("scan qualification criterion: %w", err)
		}
		qual.Criteria = append(qual.Criteria, c)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate qualification criteria: %w", err)
	}

	return &report, qual, nil
}

// GetByRun retrieves all reports for a run, ordered by symbol ASC.
func (s *ReportStore) GetByRun(ctx context.Context, runID string) ([]*domain.Report, error) {
	query := `
		SELECT ` + selectReportColumns + `
		FROM run_reports
		WHERE run_id = $1
		ORDER BY symbol ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query run reports: %w", err)
	}
	defer rows.Close()

	var result []*domain.Report
	for rows.Next() {
		var report domain.Report
		if err := rows.Scan(
			&report.RunID, &report.Symbol,
			&report.TotalTrades, &report.SuccessfulTrades, &report.FailedTrades, &report.WinRate,
			&report.InitialCapital, &report.FinalCapital, &report.TotalProfit, &report.TotalLoss, &report.NetProfit,
			&report.MaxDrawdown, &report.SharpeRatio, &report.SortinoRatio, &report.ProfitFactor, &report.RecoveryFactor,
			&report.DataQualityScore, &report.CompatibilityScore,
			&report.StartTimeMs, &report.EndTimeMs,
		); err != nil {
			return nil, fmt.Errorf("scan run report: %w", err)
		}
		result = append(result, &report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run reports: %w", err)
	}

	return result, nil
}

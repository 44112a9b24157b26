package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

func makeReport(runID, symbol string) *domain.Report {
	return &domain.Report{
		RunID:              runID,
		Symbol:             symbol,
		TotalTrades:        100,
		SuccessfulTrades:   93,
		FailedTrades:       7,
		WinRate:            0.93,
		InitialCapital:     100_000,
		FinalCapital:       108_950,
		TotalProfit:        9300,
		TotalLoss:          350,
		NetProfit:          8950,
		MaxDrawdown:        0.05,
		SharpeRatio:        1.4,
		SortinoRatio:       2.1,
		ProfitFactor:       26.57,
		RecoveryFactor:     3.0,
		DataQualityScore:   0.97,
		CompatibilityScore: 0.98,
		StartTimeMs:        1000,
		EndTimeMs:          601_000,
	}
}

func makeQual(passed bool) *domain.QualificationResult {
	return &domain.QualificationResult{
		Passed: passed,
		Criteria: []domain.CriterionResult{
			{Name: "win_rate", Threshold: ">= 0.9300", Actual: "0.9300", Pass: true},
			{Name: "max_drawdown", Threshold: "<= 0.1000", Actual: "0.0500", Pass: true},
			{Name: "sharpe_ratio", Threshold: ">= 1.0000", Actual: "1.4000", Pass: passed},
		},
	}
}

func TestReportStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewReportStore(pool)
	ctx := context.Background()

	report := makeReport("run-1", "SOL-USD")
	qual := makeQual(true)
	require.NoError(t, store.Insert(ctx, report, qual))

	gotReport, gotQual, err := store.GetByRunSymbol(ctx, "run-1", "SOL-USD")
	require.NoError(t, err)

	assert.Equal(t, report.RunID, gotReport.RunID)
	assert.Equal(t, report.Symbol, gotReport.Symbol)
	assert.Equal(t, report.TotalTrades, gotReport.TotalTrades)
	assert.Equal(t, report.WinRate, gotReport.WinRate)
	assert.Equal(t, report.FinalCapital, gotReport.FinalCapital)
	assert.Equal(t, report.MaxDrawdown, gotReport.MaxDrawdown)
	assert.Equal(t, report.DataQualityScore, gotReport.DataQualityScore)
	assert.Equal(t, report.StartTimeMs, gotReport.StartTimeMs)
	assert.Equal(t, report.EndTimeMs, gotReport.EndTimeMs)

	require.NotNil(t, gotQual)
	assert.True(t, gotQual.Passed)
	// Criteria come back in their evaluation order
	require.Len(t, gotQual.Criteria, 3)
	assert.Equal(t, "win_rate", gotQual.Criteria[0].Name)
	assert.Equal(t, "max_drawdown", gotQual.Criteria[1].Name)
	assert.Equal(t, "sharpe_ratio", gotQual.Criteria[2].Name)
	assert.Equal(t, ">= 0.9300", gotQual.Criteria[0].Threshold)
	assert.Equal(t, "0.9300", gotQual.Criteria[0].Actual)
}

func TestReportStore_Insert_DuplicateKey(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewReportStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, makeReport("run-1", "SOL-USD"), makeQual(true)))

	err := store.Insert(ctx, makeReport("run-1", "SOL-USD"), makeQual(true))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Same run, different symbol is a distinct key
	require.NoError(t, store.Insert(ctx, makeReport("run-1", "SOL-ETH"), makeQual(false)))
}

func TestReportStore_Insert_InvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewReportStore(pool)
	ctx := context.Background()

	assert.ErrorIs(t, store.Insert(ctx, nil, nil), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.Insert(ctx, &domain.Report{Symbol: "SOL-USD"}, nil), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.Insert(ctx, &domain.Report{RunID: "run-1"}, nil), storage.ErrInvalidInput)
}

func TestReportStore_Insert_NilQualification(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewReportStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, makeReport("run-1", "SOL-USD"), nil))

	gotReport, gotQual, err := store.GetByRunSymbol(ctx, "run-1", "SOL-USD")
	require.NoError(t, err)
	assert.Equal(t, "SOL-USD", gotReport.Symbol)
	require.NotNil(t, gotQual)
	assert.False(t, gotQual.Passed)
	assert.Empty(t, gotQual.Criteria)
}

func TestReportStore_GetByRun(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewReportStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, makeReport("run-1", "SOL-B"), makeQual(true)))
	require.NoError(t, store.Insert(ctx, makeReport("run-1", "SOL-A"), makeQual(false)))
	require.NoError(t, store.Insert(ctx, makeReport("run-2", "SOL-A"), makeQual(true)))

	got, err := store.GetByRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "SOL-A", got[0].Symbol)
	assert.Equal(t, "SOL-B", got[1].Symbol)
}

func TestReportStore_GetByRunSymbol_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewReportStore(pool)

	_, _, err := store.GetByRunSymbol(context.Background(), "missing", "SOL-USD")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

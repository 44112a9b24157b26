package memory

import (
	"context"
	"errors"
	"testing"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

func makeReport(runID, symbol string) *domain.Report {
	return &domain.Report{
		RunID:            runID,
		Symbol:           symbol,
		TotalTrades:      10,
		SuccessfulTrades: 9,
		FailedTrades:     1,
		WinRate:          0.9,
		InitialCapital:   100_000,
		FinalCapital:     101_000,
	}
}

func makeQual(passed bool) *domain.QualificationResult {
	return &domain.QualificationResult{
		Passed: passed,
		Criteria: []domain.CriterionResult{
			{Name: "win_rate", Threshold: ">= 0.93", Actual: "0.9000", Pass: passed},
		},
	}
}

func TestReportStore_InsertAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewReportStore()

	if err := store.Insert(ctx, makeReport("run-1", "SOL-USD"), makeQual(false)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert(ctx, makeReport("run-1", "ETH-USD"), makeQual(true)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	report, qual, err := store.GetByRunSymbol(ctx, "run-1", "SOL-USD")
	if err != nil {
		t.Fatalf("GetByRunSymbol failed: %v", err)
	}
	if report.Symbol != "SOL-USD" || report.WinRate != 0.9 {
		t.Errorf("unexpected report: %+v", report)
	}
	if qual == nil || qual.Passed || len(qual.Criteria) != 1 {
		t.Errorf("unexpected qualification: %+v", qual)
	}

	// All reports for the run, symbol ASC
	reports, err := store.GetByRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetByRun failed: %v", err)
	}
	if len(reports) != 2 || reports[0].Symbol != "ETH-USD" || reports[1].Symbol != "SOL-USD" {
		t.Errorf("GetByRun order wrong: %v", reports)
	}
}

func TestReportStore_DuplicateAndMissing(t *testing.T) {
	ctx := context.Background()
	store := NewReportStore()

	if err := store.Insert(ctx, makeReport("run-1", "SOL-USD"), nil); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert(ctx, makeReport("run-1", "SOL-USD"), nil); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("got %v, want ErrDuplicateKey", err)
	}

	if _, _, err := store.GetByRunSymbol(ctx, "run-1", "ETH-USD"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}

	if err := store.Insert(ctx, &domain.Report{}, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("got %v, want ErrInvalidInput", err)
	}
}

func TestReportStore_CopyOnWrite(t *testing.T) {
	ctx := context.Background()
	store := NewReportStore()

	qual := makeQual(true)
	if err := store.Insert(ctx, makeReport("run-1", "SOL-USD"), qual); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// Mutating the caller's criteria after insert must not leak into the store
	qual.Criteria[0].Pass = false

	_, stored, err := store.GetByRunSymbol(ctx, "run-1", "SOL-USD")
	if err != nil {
		t.Fatalf("GetByRunSymbol failed: %v", err)
	}
	if !stored.Criteria[0].Pass {
		t.Error("stored criteria mutated through caller reference")
	}
}

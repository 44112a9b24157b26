package reporting

import (
	"context"
	"fmt"
	"time"

	"backtest-lab/internal/storage"
)

// Generator produces run summaries from stored reports.
type Generator struct {
	reportStore storage.ReportStore
	now         func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new summary generator.
func NewGenerator(reportStore storage.ReportStore) *Generator {
	return &Generator{
		reportStore: reportStore,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate assembles a run summary for every symbol the run touched.
func (g *Generator) Generate(ctx context.Context, runID string) (*RunSummary, error) {
	reports, err := g.reportStore.GetByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run reports: %w", err)
	}
	if len(reports) == 0 {
		return nil, fmt.Errorf("run %s: %w", runID, storage.ErrNotFound)
	}

	summary := &RunSummary{
		RunID:       runID,
		GeneratedAt: g.now(),
	}

	for _, report := range reports {
		_, qual, err := g.reportStore.GetByRunSymbol(ctx, runID, report.Symbol)
		if err != nil {
			return nil, fmt.Errorf("load qualification for %s: %w", report.Symbol, err)
		}
		summary.Symbols = append(summary.Symbols, SymbolSection{
			Report:        report,
			Qualification: qual,
		})
	}

	return summary, nil
}

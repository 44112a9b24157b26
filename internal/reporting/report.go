// Package reporting assembles and renders run summaries from stored data.
package reporting

import (
	"time"

	"backtest-lab/internal/domain"
)

// RunSummary is the renderable view of one backtest run across all symbols.
type RunSummary struct {
	RunID       string
	GeneratedAt time.Time
	Symbols     []SymbolSection
}

// SymbolSection pairs one symbol's report with its gate decision.
type SymbolSection struct {
	Report        *domain.Report
	Qualification *domain.QualificationResult
}

// QualifiedCount returns the number of symbols that passed the gate.
func (s *RunSummary) QualifiedCount() int {
	n := 0
	for _, sec := range s.Symbols {
		if sec.Qualification != nil && sec.Qualification.Passed {
			n++
		}
	}
	return n
}

package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

// ReportStore is an in-memory implementation of storage.ReportStore.
type ReportStore struct {
	mu    sync.RWMutex
	data  map[string]*domain.Report              // keyed by (run_id|symbol)
	quals map[string]*domain.QualificationResult // same key
}

// NewReportStore creates a new in-memory report store.
func NewReportStore() *ReportStore {
	return &ReportStore{
		data:  make(map[string]*domain.Report),
		quals: make(map[string]*domain.QualificationResult),
	}
}

// reportKey generates a unique key for a run/symbol report.
func reportKey(runID, symbol string) string {
	return fmt.Sprintf("%s|%s", runID, symbol)
}

// Insert adds a report with its qualification result.
func (s *ReportStore) Insert(_ context.Context, report *domain.Report, qual *domain.QualificationResult) error {
	if report == nil || report.RunID == "" || report.Symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := reportKey(report.RunID, report.Symbol)
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	reportCopy := *report
	s.data[key] = &reportCopy
	if qual != nil {
		qualCopy := *qual
		qualCopy.Criteria = append([]domain.CriterionResult(nil), qual.Criteria...)
		s.quals[key] = &qualCopy
	}
	return nil
}

// GetByRunSymbol retrieves one report with its qualification result.
func (s *ReportStore) GetByRunSymbol(_ context.Context, runID, symbol string) (*domain.Report, *domain.QualificationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := reportKey(runID, symbol)
	report, ok := s.data[key]
	if !ok {
		return nil, nil, fmt.Errorf("%w: report %s/%s", storage.ErrNotFound, runID, symbol)
	}

	reportCopy := *report
	var qualCopy *domain.QualificationResult
	if qual, ok := s.quals[key]; ok {
		q := *qual
		q.Criteria = append([]domain.CriterionResult(nil), qual.Criteria...)
		qualCopy = &q
	}
	return &reportCopy, qualCopy, nil
}

// GetByRun retrieves all reports for a run, ordered by symbol ASC.
func (s *ReportStore) GetByRun(_ context.Context, runID string) ([]*domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Report
	for _, r := range s.data {
		if r.RunID == runID {
			reportCopy := *r
			result = append(result, &reportCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Symbol < result[j].Symbol
	})
	return result, nil
}

var _ storage.ReportStore = (*ReportStore)(nil)

package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

// BarSeriesStore is an in-memory implementation of storage.BarSeriesStore.
type BarSeriesStore struct {
	mu        sync.RWMutex
	tolerance storage.GapTolerance
	data      map[string]map[int64]*domain.Bar // symbol -> timestamp_ms -> bar
}

// NewBarSeriesStore creates a new in-memory bar series store.
func NewBarSeriesStore(tolerance storage.GapTolerance) *BarSeriesStore {
	return &BarSeriesStore{
		tolerance: tolerance,
		data:      make(map[string]map[int64]*domain.Bar),
	}
}

// InsertBars adds bars in bulk. Fails the entire batch on duplicate
// (symbol, timestamp_ms) or on an invariant-violating bar.
func (s *BarSeriesStore) InsertBars(_ context.Context, bars []*domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// First pass: validate and detect duplicates (existing + intra-batch)
	type key struct {
		symbol      string
		timestampMs int64
	}
	batchKeys := make(map[key]struct{}, len(bars))
	for _, b := range bars {
		if b == nil || b.Symbol == "" {
			return storage.ErrInvalidInput
		}
		if err := b.Validate(); err != nil {
			return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
		}
		k := key{b.Symbol, b.TimestampMs}
		if _, exists := s.data[b.Symbol][b.TimestampMs]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[k]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[k] = struct{}{}
	}

	// Second pass: insert all
	for _, b := range bars {
		if s.data[b.Symbol] == nil {
			s.data[b.Symbol] = make(map[int64]*domain.Bar)
		}
		barCopy := *b
		s.data[b.Symbol][b.TimestampMs] = &barCopy
	}

	return nil
}

// Load retrieves bars for symbol within [startMs, endMs] as a series.
func (s *BarSeriesStore) Load(_ context.Context, symbol string, startMs, endMs int64) (*domain.Series, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var bars []*domain.Bar
	for _, b := range s.data[symbol] {
		if b.TimestampMs >= startMs && b.TimestampMs <= endMs {
			barCopy := *b
			bars = append(bars, &barCopy)
		}
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: symbol %s in [%d, %d]", storage.ErrDataUnavailable, symbol, startMs, endMs)
	}

	sort.Slice(bars, func(i, j int) bool {
		return bars[i].TimestampMs < bars[j].TimestampMs
	})

	return s.buildSeries(symbol, bars)
}

// Get retrieves the full series for a symbol.
func (s *BarSeriesStore) Get(_ context.Context, symbol string) (*domain.Series, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	points, ok := s.data[symbol]
	if !ok || len(points) == 0 {
		return nil, fmt.Errorf("%w: symbol %s", storage.ErrNotFound, symbol)
	}

	bars := make([]*domain.Bar, 0, len(points))
	for _, b := range points {
		barCopy := *b
		bars = append(bars, &barCopy)
	}
	sort.Slice(bars, func(i, j int) bool {
		return bars[i].TimestampMs < bars[j].TimestampMs
	})

	return s.buildSeries(symbol, bars)
}

// Symbols lists all symbols with stored bars, sorted ascending.
func (s *BarSeriesStore) Symbols(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	symbols := make([]string, 0, len(s.data))
	for symbol, points := range s.data {
		if len(points) > 0 {
			symbols = append(symbols, symbol)
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// buildSeries assembles a series from sorted bars and enforces gap tolerance.
func (s *BarSeriesStore) buildSeries(symbol string, bars []*domain.Bar) (*domain.Series, error) {
	series, err := domain.NewSeries(symbol, s.tolerance.IntervalMs, bars)
	if err != nil {
		return nil, err
	}
	if maxGap := series.MaxGapMs(); maxGap > s.tolerance.MaxGapMs() {
		return nil, fmt.Errorf("%w: symbol %s max gap %dms > %dms", storage.ErrSeriesGap, symbol, maxGap, s.tolerance.MaxGapMs())
	}
	return series, nil
}

var _ storage.BarSeriesStore = (*BarSeriesStore)(nil)

package memory

import (
	"context"
	"sort"
	"sync"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

// TradeLogStore is an in-memory implementation of storage.TradeLogStore.
type TradeLogStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SimulatedTrade // keyed by trade_id
}

// NewTradeLogStore creates a new in-memory trade log store.
func NewTradeLogStore() *TradeLogStore {
	return &TradeLogStore{
		data: make(map[string]*domain.SimulatedTrade),
	}
}

// Insert adds a closed trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeLogStore) Insert(_ context.Context, t *domain.SimulatedTrade) error {
	if t == nil || t.TradeID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.TradeID]; exists {
		return storage.ErrDuplicateKey
	}
	tradeCopy := *t
	s.data[t.TradeID] = &tradeCopy
	return nil
}

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *TradeLogStore) InsertBulk(_ context.Context, trades []*domain.SimulatedTrade) error {
	if len(trades) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(trades))
	for _, t := range trades {
		if t == nil || t.TradeID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[t.TradeID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[t.TradeID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[t.TradeID] = struct{}{}
	}

	for _, t := range trades {
		tradeCopy := *t
		s.data[t.TradeID] = &tradeCopy
	}
	return nil
}

// GetByRun retrieves all trades for a run, ordered by entry time ASC.
func (s *TradeLogStore) GetByRun(_ context.Context, runID string) ([]*domain.SimulatedTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SimulatedTrade
	for _, t := range s.data {
		if t.RunID == runID {
			tradeCopy := *t
			result = append(result, &tradeCopy)
		}
	}
	sortTrades(result)
	return result, nil
}

// GetByRunSymbol retrieves a run's trades for one symbol, ordered by entry time ASC.
func (s *TradeLogStore) GetByRunSymbol(_ context.Context, runID, symbol string) ([]*domain.SimulatedTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SimulatedTrade
	for _, t := range s.data {
		if t.RunID == runID && t.Symbol == symbol {
			tradeCopy := *t
			result = append(result, &tradeCopy)
		}
	}
	sortTrades(result)
	return result, nil
}

// sortTrades orders trades by entry time ASC, trade_id ASC for determinism.
func sortTrades(trades []*domain.SimulatedTrade) {
	sort.Slice(trades, func(i, j int) bool {
		if trades[i].EntryTimeMs != trades[j].EntryTimeMs {
			return trades[i].EntryTimeMs < trades[j].EntryTimeMs
		}
		return trades[i].TradeID < trades[j].TradeID
	})
}

var _ storage.TradeLogStore = (*TradeLogStore)(nil)

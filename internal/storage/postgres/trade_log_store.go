package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

// TradeLogStore implements storage.TradeLogStore using PostgreSQL.
type TradeLogStore struct {
	pool *Pool
}

// NewTradeLogStore creates a new TradeLogStore.
func NewTradeLogStore(pool *Pool) *TradeLogStore {
	return &TradeLogStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeLogStore = (*TradeLogStore)(nil)

const insertTradeQuery = `
	INSERT INTO simulated_trades (
		trade_id, run_id, symbol,
		entry_time_ms, entry_price,
		exit_time_ms, exit_price, exit_reason,
		size, direction, outcome, pnl
	) VALUES (
		$1, $2, $3,
		$4, $5,
		$6, $7, $8,
		$9, $10, $11, $12
	)
`

// Insert adds a closed trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeLogStore) Insert(ctx context.Context, t *domain.SimulatedTrade) error {
	_, err := s.pool.Exec(ctx, insertTradeQuery,
		t.TradeID, t.RunID, t.Symbol,
		t.EntryTimeMs, t.EntryPrice,
		t.ExitTimeMs, t.ExitPrice, t.ExitReason,
		t.Size, t.Direction, t.Outcome, t.PnL,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert simulated trade: %w", err)
	}
	return nil
}

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *TradeLogStore) InsertBulk(ctx context.Context, trades []*domain.SimulatedTrade) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, t := range trades {
		_, err := tx.Exec(ctx, insertTradeQuery,
			t.TradeID, t.RunID, t.Symbol,
			t.EntryTimeMs, t.EntryPrice,
			t.ExitTimeMs, t.ExitPrice, t.ExitReason,
			t.Size, t.Direction, t.Outcome, t.PnL,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert simulated trade in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

const selectTradeColumns = `
	trade_id, run_id, symbol,
	entry_time_ms, entry_price,
	exit_time_ms, exit_price, exit_reason,
	size, direction, outcome, pnl
`

// GetByRun retrieves all trades for a run, ordered by entry time ASC.
func (s *TradeLogStore) GetByRun(ctx context.Context, runID string) ([]*domain.SimulatedTrade, error) {
	query := `
		SELECT ` + selectTradeColumns + `
		FROM simulated_trades
		WHERE run_id = $1
		ORDER BY entry_time_ms ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query trades by run: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetByRunSymbol retrieves a run's trades for one symbol, ordered by entry time ASC.
func (s *TradeLogStore) GetByRunSymbol(ctx context.Context, runID, symbol string) ([]*domain.SimulatedTrade, error) {
	query := `
		SELECT ` + selectTradeColumns + `
		FROM simulated_trades
		WHERE run_id = $1 AND symbol = $2
		ORDER BY entry_time_ms ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, runID, symbol)
	if err != nil {
		return nil, fmt.Errorf("query trades by run and symbol: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// scanTrades collects trades from a result set.
func scanTrades(rows pgx.Rows) ([]*domain.SimulatedTrade, error) {
	var result []*domain.SimulatedTrade
	for rows.Next() {
		var t domain.SimulatedTrade
		if err := rows.Scan(
			&t.TradeID, &t.RunID, &t.Symbol,
			&t.EntryTimeMs, &t.EntryPrice,
			&t.ExitTimeMs, &t.ExitPrice, &t.ExitReason,
			&t.Size, &t.Direction, &t.Outcome, &t.PnL,
		); err != nil {
			return nil, fmt.Errorf("scan simulated trade: %w", err)
		}
		result = append(result, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate simulated trades: %w", err)
	}
	return result, nil
}

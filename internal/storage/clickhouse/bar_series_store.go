package clickhouse

import (
	"context"
	"fmt"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

// BarSeriesStore implements storage.BarSeriesStore using ClickHouse.
// MergeTree does not enforce uniqueness at insert time, so duplicate
// (symbol, timestamp_ms) keys are rejected with explicit checks before
// the batch is sent.
type BarSeriesStore struct {
	conn      *Conn
	tolerance storage.GapTolerance
}

// NewBarSeriesStore creates a new BarSeriesStore.
func NewBarSeriesStore(conn *Conn, tolerance storage.GapTolerance) *BarSeriesStore {
	return &BarSeriesStore{conn: conn, tolerance: tolerance}
}

// Compile-time interface check.
var _ storage.BarSeriesStore = (*BarSeriesStore)(nil)

// InsertBars adds bars in bulk. Fails the entire batch on duplicate
// (symbol, timestamp_ms) or on an invariant-violating bar.
func (s *BarSeriesStore) InsertBars(ctx context.Context, bars []*domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	// Validate and detect intra-batch duplicates
	type key struct {
		symbol      string
		timestampMs int64
	}
	seen := make(map[key]struct{}, len(bars))
	for _, b := range bars {
		if b == nil || b.Symbol == "" {
			return storage.ErrInvalidInput
		}
		if err := b.Validate(); err != nil {
			return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
		}
		k := key{b.Symbol, b.TimestampMs}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, b := range bars {
		exists, err := s.exists(ctx, b.Symbol, b.TimestampMs)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO bars (
			symbol, timestamp_ms, open, high, low, close, volume, liquidity_score
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, b := range bars {
		err = batch.Append(
			b.Symbol, uint64(b.TimestampMs),
			b.Open, b.High, b.Low, b.Close,
			b.Volume, b.LiquidityScore,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// Load retrieves bars for symbol within [startMs, endMs] (inclusive) as a
// time-ascending series, enforcing the store's gap tolerance.
func (s *BarSeriesStore) Load(ctx context.Context, symbol string, startMs, endMs int64) (*domain.Series, error) {
	query := `
		SELECT symbol, timestamp_ms, open, high, low, close, volume, liquidity_score
		FROM bars
		WHERE symbol = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, uint64(startMs), uint64(endMs))
	if err != nil {
		return nil, fmt.Errorf("query bars by time range: %w", err)
	}
	defer rows.Close()

	bars, err := scanBars(rows)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: symbol %s in [%d, %d]", storage.ErrDataUnavailable, symbol, startMs, endMs)
	}

	return s.buildSeries(symbol, bars)
}

// Get retrieves the full series for a symbol.
func (s *BarSeriesStore) Get(ctx context.Context, symbol string) (*domain.Series, error) {
	query := `
		SELECT symbol, timestamp_ms, open, high, low, close, volume, liquidity_score
		FROM bars
		WHERE symbol = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("query bars by symbol: %w", err)
	}
	defer rows.Close()

	bars, err := scanBars(rows)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: symbol %s", storage.ErrNotFound, symbol)
	}

	return s.buildSeries(symbol, bars)
}

// Symbols lists all symbols with stored bars, sorted ascending.
func (s *BarSeriesStore) Symbols(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT symbol
		FROM bars
		ORDER BY symbol ASC
	`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		symbols = append(symbols, symbol)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate symbols: %w", err)
	}

	return symbols, nil
}

// exists checks if a bar with the given key exists.
func (s *BarSeriesStore) exists(ctx context.Context, symbol string, timestampMs int64) (bool, error) {
	query := `
		SELECT count(*) FROM bars
		WHERE symbol = ? AND timestamp_ms = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, symbol, uint64(timestampMs)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
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

// scanBars scans multiple rows.
func scanBars(rows chRows) ([]*domain.Bar, error) {
	var bars []*domain.Bar

	for rows.Next() {
		var b domain.Bar
		var timestampMs uint64

		err := rows.Scan(
			&b.Symbol, &timestampMs,
			&b.Open, &b.High, &b.Low, &b.Close,
			&b.Volume, &b.LiquidityScore,
		)
		if err != nil {
			return nil, fmt.Errorf("scan bar row: %w", err)
		}

		b.TimestampMs = int64(timestampMs)
		bars = append(bars, &b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bar rows: %w", err)
	}

	return bars, nil
}

package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

const testIntervalMs = 60_000

func testBar(symbol string, i int) *domain.Bar {
	base := 100.0 + float64(i)
	return &domain.Bar{
		TimestampMs:    int64(i) * testIntervalMs,
		Symbol:         symbol,
		Open:           base,
		High:           base + 1.5,
		Low:            base - 0.5,
		Close:          base + 1,
		Volume:         1000,
		LiquidityScore: 0.9,
	}
}

func testTolerance() storage.GapTolerance {
	return storage.GapTolerance{IntervalMs: testIntervalMs, Intervals: 5}
}

func TestBarSeriesStore_InsertAndLoad(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBarSeriesStore(conn, testTolerance())
	ctx := context.Background()

	// Empty insert is a no-op
	err := store.InsertBars(ctx, nil)
	assert.NoError(t, err)

	bars := []*domain.Bar{testBar("SOL-USD", 0), testBar("SOL-USD", 1), testBar("SOL-USD", 2)}
	err = store.InsertBars(ctx, bars)
	require.NoError(t, err)

	series, err := store.Load(ctx, "SOL-USD", 0, 2*testIntervalMs)
	require.NoError(t, err)
	require.Equal(t, 3, series.Len())
	assert.Equal(t, "SOL-USD", series.Symbol)
	assert.Equal(t, int64(0), series.Bars[0].TimestampMs)
	assert.Equal(t, int64(2*testIntervalMs), series.Bars[2].TimestampMs)
	assert.Equal(t, 101.0, series.Bars[0].Close)
	assert.Equal(t, 0.9, series.Bars[0].LiquidityScore)

	// Range bounds are inclusive
	series, err = store.Load(ctx, "SOL-USD", testIntervalMs, testIntervalMs)
	require.NoError(t, err)
	assert.Equal(t, 1, series.Len())
}

func TestBarSeriesStore_InsertBars_DuplicateKey(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBarSeriesStore(conn, testTolerance())
	ctx := context.Background()

	bars := []*domain.Bar{testBar("SOL-USD", 0)}
	require.NoError(t, store.InsertBars(ctx, bars))

	// Same key against stored rows
	err := store.InsertBars(ctx, bars)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Same key twice in one batch
	dup := []*domain.Bar{testBar("SOL-USD", 5), testBar("SOL-USD", 5)}
	err = store.InsertBars(ctx, dup)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestBarSeriesStore_InsertBars_InvalidBar(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBarSeriesStore(conn, testTolerance())
	ctx := context.Background()

	bad := testBar("SOL-USD", 0)
	bad.High = bad.Low - 1

	err := store.InsertBars(ctx, []*domain.Bar{bad})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestBarSeriesStore_LoadErrors(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBarSeriesStore(conn, testTolerance())
	ctx := context.Background()

	_, err := store.Load(ctx, "UNKNOWN", 0, 1000)
	assert.ErrorIs(t, err, storage.ErrDataUnavailable)

	_, err = store.Get(ctx, "UNKNOWN")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestBarSeriesStore_GapTolerance(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBarSeriesStore(conn, testTolerance())
	ctx := context.Background()

	// Two clusters separated by a 10-interval gap
	bars := []*domain.Bar{
		testBar("SOL-USD", 0),
		testBar("SOL-USD", 1),
		testBar("SOL-USD", 11),
		testBar("SOL-USD", 12),
	}
	require.NoError(t, store.InsertBars(ctx, bars))

	_, err := store.Load(ctx, "SOL-USD", 0, 12*testIntervalMs)
	assert.ErrorIs(t, err, storage.ErrSeriesGap)

	// A window inside one cluster loads fine
	series, err := store.Load(ctx, "SOL-USD", 11*testIntervalMs, 12*testIntervalMs)
	require.NoError(t, err)
	assert.Equal(t, 2, series.Len())
}

func TestBarSeriesStore_Symbols(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBarSeriesStore(conn, testTolerance())
	ctx := context.Background()

	require.NoError(t, store.InsertBars(ctx, []*domain.Bar{testBar("SOL-B", 0)}))
	require.NoError(t, store.InsertBars(ctx, []*domain.Bar{testBar("SOL-A", 0)}))

	symbols, err := store.Symbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"SOL-A", "SOL-B"}, symbols)
}

package storage

import (
	"context"

	"backtest-lab/internal/domain"
)

// GapTolerance configures the maximum allowed distance between consecutive
// bars served by Load, expressed as a multiple of the expected bar interval.
type GapTolerance struct {
	IntervalMs int64 // expected bar interval
	Intervals  int64 // allowed multiple, default 5
}

// DefaultGapIntervals is the stock gap tolerance multiple.
const DefaultGapIntervals = 5

// MaxGapMs returns the absolute gap tolerance in milliseconds.
func (g GapTolerance) MaxGapMs() int64 {
	intervals := g.Intervals
	if intervals <= 0 {
		intervals = DefaultGapIntervals
	}
	return g.IntervalMs * intervals
}

// BarSeriesStore provides access to historical bar storage.
// Stores hold data only: no network calls and no randomness — the collaborator
// that produces bars (feed client or file loader) lives outside the store.
type BarSeriesStore interface {
	// InsertBars adds bars in bulk. Fails the entire batch with
	// ErrDuplicateKey on a duplicate (symbol, timestamp_ms), and with
	// ErrInvalidInput when a bar violates the OHLC invariants.
	InsertBars(ctx context.Context, bars []*domain.Bar) error

	// Load retrieves the bars for symbol within [startMs, endMs] (inclusive)
	// as a time-ascending series. Returns ErrDataUnavailable when no bars
	// exist in the range, and ErrSeriesGap when consecutive bars are further
	// apart than the store's gap tolerance.
	Load(ctx context.Context, symbol string, startMs, endMs int64) (*domain.Series, error)

	// Get retrieves the full series for a symbol. Returns ErrNotFound if the
	// symbol was never loaded.
	Get(ctx context.Context, symbol string) (*domain.Series, error)

	// Symbols lists all symbols with stored bars, sorted ascending.
	Symbols(ctx context.Context) ([]string, error)
}

// TradeLogStore provides access to simulated trade storage.
type TradeLogStore interface {
	// Insert adds a closed trade. Returns ErrDuplicateKey if trade_id exists.
	Insert(ctx context.Context, t *domain.SimulatedTrade) error

	// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, trades []*domain.SimulatedTrade) error

	// GetByRun retrieves all trades for a run, ordered by entry time ASC.
	GetByRun(ctx context.Context, runID string) ([]*domain.SimulatedTrade, error)

	// GetByRunSymbol retrieves a run's trades for one symbol, ordered by entry time ASC.
	GetByRunSymbol(ctx context.Context, runID, symbol string) ([]*domain.SimulatedTrade, error)
}

// ReportStore provides access to per-symbol run reports and gate decisions.
type ReportStore interface {
	// Insert adds a report with its qualification result.
	// Returns ErrDuplicateKey if (run_id, symbol) exists.
	Insert(ctx context.Context, report *domain.Report, qual *domain.QualificationResult) error

	// GetByRunSymbol retrieves one report. Returns ErrNotFound if absent.
	GetByRunSymbol(ctx context.Context, runID, symbol string) (*domain.Report, *domain.QualificationResult, error)

	// GetByRun retrieves all reports for a run, ordered by symbol ASC.
	GetByRun(ctx context.Context, runID string) ([]*domain.Report, error)
}

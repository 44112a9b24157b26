package feed

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/observability"
	"backtest-lab/internal/storage"
)

// IngesterConfig configures batching behavior.
type IngesterConfig struct {
	// BatchSize is the number of bars per insert batch.
	BatchSize int
	// FlushInterval bounds how long a partial batch may wait.
	FlushInterval time.Duration
}

// DefaultIngesterConfig returns the stock batching configuration.
func DefaultIngesterConfig() IngesterConfig {
	return IngesterConfig{
		BatchSize:     500,
		FlushInterval: 5 * time.Second,
	}
}

// Ingester drains a bar channel into a BarSeriesStore in batches.
// Duplicate batches are dropped rather than retried: the feed replays
// bars after reconnect, so duplicates are expected during recovery.
type Ingester struct {
	store  storage.BarSeriesStore
	config IngesterConfig
	logger zerolog.Logger
}

// NewIngester creates an Ingester writing to the given store.
func NewIngester(store storage.BarSeriesStore, config *IngesterConfig, logger zerolog.Logger) *Ingester {
	cfg := DefaultIngesterConfig()
	if config != nil {
		cfg = *config
	}
	return &Ingester{
		store:  store,
		config: cfg,
		logger: logger.With().Str("component", "ingester").Logger(),
	}
}

// Run consumes bars until the channel closes or the context is cancelled.
// A closed channel flushes the final partial batch and returns nil.
func (i *Ingester) Run(ctx context.Context, bars <-chan *domain.Bar) error {
	batch := make([]*domain.Bar, 0, i.config.BatchSize)

	ticker := time.NewTicker(i.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			i.flush(context.Background(), batch)
			return ctx.Err()

		case bar, ok := <-bars:
			if !ok {
				i.flush(ctx, batch)
				return nil
			}
			batch = append(batch, bar)
			if len(batch) >= i.config.BatchSize {
				i.flush(ctx, batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				i.flush(ctx, batch)
				batch = batch[:0]
			}
		}
	}
}

// flush writes one batch, logging and counting failures instead of
// propagating them: a bad batch must not stall the stream.
func (i *Ingester) flush(ctx context.Context, batch []*domain.Bar) {
	if len(batch) == 0 {
		return
	}

	observability.DefaultMetrics.IngestBatchSize.Observe(float64(len(batch)))

	err := i.store.InsertBars(ctx, batch)
	switch {
	case err == nil:
		observability.RecordBarsStored(len(batch))
		i.logger.Debug().Int("bars", len(batch)).Msg("batch stored")

	case errors.Is(err, storage.ErrDuplicateKey):
		observability.DefaultMetrics.BarsRejected.WithLabelValues("duplicate").Add(float64(len(batch)))
		i.logger.Warn().Int("bars", len(batch)).Msg("duplicate batch dropped")

	case errors.Is(err, storage.ErrInvalidInput):
		observability.DefaultMetrics.BarsRejected.WithLabelValues("invalid").Add(float64(len(batch)))
		i.logger.Warn().Err(err).Int("bars", len(batch)).Msg("invalid batch dropped")

	default:
		observability.DefaultMetrics.BarsRejected.WithLabelValues("error").Add(float64(len(batch)))
		i.logger.Error().Err(err).Int("bars", len(batch)).Msg("batch insert failed")
	}
}

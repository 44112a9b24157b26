// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Feed metrics
	BarsReceived     *prometheus.CounterVec
	BarParseErrors   prometheus.Counter
	FeedReconnects   prometheus.Counter
	FeedSubscription prometheus.Gauge

	// Ingestion metrics
	BarsStored      prometheus.Counter
	BarsRejected    *prometheus.CounterVec
	IngestBatchSize prometheus.Histogram

	// Validation metrics
	ValidationRuns    prometheus.Counter
	ValidationBlocked prometheus.Counter
	ValidationScore   prometheus.Histogram

	// Simulation metrics
	SimulationRuns    *prometheus.CounterVec
	TradesSimulated   prometheus.Counter
	SimulationAborts  prometheus.Counter
	SimulationLatency prometheus.Histogram

	// Qualification metrics
	GateEvaluations *prometheus.CounterVec
	CriteriaFailed  *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "backtest_lab"
	}

	return &Metrics{
		// Feed metrics
		BarsReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "bars_received_total",
			Help:      "Total number of bars received from the feed by symbol",
		}, []string{"symbol"}),
		BarParseErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "bar_parse_errors_total",
			Help:      "Total number of feed messages that failed to parse",
		}),
		FeedReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Total number of feed reconnect attempts",
		}),
		FeedSubscription: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "subscribed_symbols",
			Help:      "Current number of subscribed symbols",
		}),

		// Ingestion metrics
		BarsStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "bars_stored_total",
			Help:      "Total number of bars stored to the series store",
		}),
		BarsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "bars_rejected_total",
			Help:      "Total number of bars rejected at insert by reason",
		}, []string{"reason"}),
		IngestBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "batch_size",
			Help:      "Number of bars per flushed batch",
			Buckets:   []float64{1, 10, 50, 100, 500, 1000, 5000},
		}),

		// Validation metrics
		ValidationRuns: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "runs_total",
			Help:      "Total number of validation suite runs",
		}),
		ValidationBlocked: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "blocked_total",
			Help:      "Total number of series blocked below the compatibility floor",
		}),
		ValidationScore: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "overall_score",
			Help:      "Distribution of overall validation scores",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),

		// Simulation metrics
		SimulationRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "runs_total",
			Help:      "Total number of simulation runs by status",
		}, []string{"status"}),
		TradesSimulated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "trades_total",
			Help:      "Total number of trades simulated",
		}),
		SimulationAborts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "aborts_total",
			Help:      "Total number of aborted simulation runs",
		}),
		SimulationLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "run_duration_seconds",
			Help:      "Simulation run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}),

		// Qualification metrics
		GateEvaluations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "qualification",
			Name:      "evaluations_total",
			Help:      "Total number of gate evaluations by result",
		}, []string{"result"}),
		CriteriaFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "qualification",
			Name:      "criteria_failed_total",
			Help:      "Total number of failed criteria by name",
		}, []string{"criterion"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordBarReceived increments the per-symbol bars received counter.
func RecordBarReceived(symbol string) {
	DefaultMetrics.BarsReceived.WithLabelValues(symbol).Inc()
}

// RecordBarsStored adds to the bars stored counter.
func RecordBarsStored(n int) {
	DefaultMetrics.BarsStored.Add(float64(n))
}

// RecordTradeSimulated increments the trades simulated counter.
func RecordTradeSimulated() {
	DefaultMetrics.TradesSimulated.Inc()
}

// RecordGateEvaluation increments the gate evaluations counter.
func RecordGateEvaluation(passed bool) {
	result := "rejected"
	if passed {
		result = "qualified"
	}
	DefaultMetrics.GateEvaluations.WithLabelValues(result).Inc()
}

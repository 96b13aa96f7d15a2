package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Solana RPC metrics
	solanaRPCCallsTotal   *prometheus.CounterVec
	solanaRPCCallDuration *prometheus.HistogramVec

	// Scoring metrics
	transactionsScoredTotal *prometheus.CounterVec
	blockScoreDuration      *prometheus.HistogramVec
	rankingSize             prometheus.Gauge

	// Workflow metrics
	activityDuration *prometheus.HistogramVec

	// Database metrics
	dbOperationsTotal *prometheus.CounterVec

	// HTTP metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec

	// NATS metrics
	natsEventsPublished *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method"},
		),
		transactionsScoredTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transactions_scored_total",
				Help: "Total number of transactions scored by outcome (resolved or unresolved)",
			},
			[]string{"outcome"},
		),
		blockScoreDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "block_score_duration_seconds",
				Help:    "Time spent scoring all transactions of one block",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"source"},
		),
		rankingSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ranking_size",
				Help: "Number of transactions currently held by the ranker",
			},
		),
		activityDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "activity_duration_seconds",
				Help:    "Duration of Temporal activity executions in seconds",
				Buckets: []float64{0.1, 0.5, 1.0, 5.0, 15.0, 60.0, 300.0},
			},
			[]string{"activity"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Total number of database operations by operation and status",
			},
			[]string{"operation", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			[]string{"handler", "method"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by handler, method and status code",
			},
			[]string{"handler", "method", "status"},
		),
		natsEventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_events_published_total",
				Help: "Total number of score events published to NATS by status",
			},
			[]string{"status"},
		),
	}
}

// RecordRPCCall records a Solana RPC call with its duration.
func (m *Metrics) RecordRPCCall(method, status string, duration float64) {
	m.solanaRPCCallsTotal.WithLabelValues(method, status).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method).Observe(duration)
}

// RecordTransactionScored records one scored transaction.
// Outcome is "resolved" or "unresolved".
func (m *Metrics) RecordTransactionScored(outcome string) {
	m.transactionsScoredTotal.WithLabelValues(outcome).Inc()
}

// RecordBlockScoreDuration records the time spent scoring one block.
func (m *Metrics) RecordBlockScoreDuration(source string, duration float64) {
	m.blockScoreDuration.WithLabelValues(source).Observe(duration)
}

// SetRankingSize records the current number of entries held by the ranker.
func (m *Metrics) SetRankingSize(n int) {
	m.rankingSize.Set(float64(n))
}

// RecordActivityDuration records the duration of a Temporal activity.
func (m *Metrics) RecordActivityDuration(activity string, duration float64) {
	m.activityDuration.WithLabelValues(activity).Observe(duration)
}

// RecordDBOperation records a database operation.
func (m *Metrics) RecordDBOperation(operation, status string) {
	m.dbOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordHTTPRequest records an HTTP request with its duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	m.httpRequestDuration.WithLabelValues(handler, method).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, statusText(statusCode)).Inc()
}

// RecordNATSPublish records a NATS publish attempt.
func (m *Metrics) RecordNATSPublish(status string) {
	m.natsEventsPublished.WithLabelValues(status).Inc()
}

// statusText buckets a status code into its class ("2xx", "4xx", ...) to keep
// label cardinality low.
func statusText(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

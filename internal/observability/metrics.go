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
	// Aggregation metrics
	AggregationRuns     *prometheus.CounterVec
	AggregationDuration prometheus.Histogram
	TokensCached        prometheus.Gauge
	SourceFetchErrors   *prometheus.CounterVec
	SourceFetchLatency  *prometheus.HistogramVec

	// Cache metrics
	CacheErrors *prometheus.CounterVec

	// Query metrics
	QueriesServed *prometheus.CounterVec

	// Push metrics
	ConnectedClients prometheus.Gauge
	ActiveRooms      prometheus.Gauge
	DeltasEmitted    prometheus.Counter
	BroadcastTicks   prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "token_pulse"
	}

	return &Metrics{
		AggregationRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "runs_total",
			Help:      "Total number of aggregation cycle runs by status",
		}, []string{"status"}),
		AggregationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "duration_seconds",
			Help:      "Aggregation cycle duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		TokensCached: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "tokens_cached",
			Help:      "Number of tokens in the last written snapshot",
		}),
		SourceFetchErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sources",
			Name:      "fetch_errors_total",
			Help:      "Total number of upstream fetch failures by source",
		}, []string{"source"}),
		SourceFetchLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sources",
			Name:      "fetch_latency_seconds",
			Help:      "Upstream fetch latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		CacheErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "errors_total",
			Help:      "Total number of cache operation failures by operation",
		}, []string{"operation"}),
		QueriesServed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "served_total",
			Help:      "Total number of pull queries served by sort key",
		}, []string{"sort_by"}),
		ConnectedClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "connected_clients",
			Help:      "Number of connected websocket clients",
		}),
		ActiveRooms: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "active_rooms",
			Help:      "Number of active subscription rooms",
		}),
		DeltasEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "deltas_emitted_total",
			Help:      "Total number of token delta payloads emitted",
		}),
		BroadcastTicks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "broadcast_ticks_total",
			Help:      "Total number of broadcaster ticks executed",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordAggregationRun records an aggregation cycle run.
func RecordAggregationRun(status string, durationSeconds float64) {
	DefaultMetrics.AggregationRuns.WithLabelValues(status).Inc()
	DefaultMetrics.AggregationDuration.Observe(durationSeconds)
}

// SetTokensCached updates the cached token count gauge.
func SetTokensCached(n int) {
	DefaultMetrics.TokensCached.Set(float64(n))
}

// RecordSourceError increments the fetch error counter for a source.
func RecordSourceError(source string) {
	DefaultMetrics.SourceFetchErrors.WithLabelValues(source).Inc()
}

// RecordSourceLatency records upstream fetch latency.
func RecordSourceLatency(source string, seconds float64) {
	DefaultMetrics.SourceFetchLatency.WithLabelValues(source).Observe(seconds)
}

// RecordCacheError increments the cache error counter for an operation.
func RecordCacheError(operation string) {
	DefaultMetrics.CacheErrors.WithLabelValues(operation).Inc()
}

// RecordQuery increments the served query counter.
func RecordQuery(sortBy string) {
	DefaultMetrics.QueriesServed.WithLabelValues(sortBy).Inc()
}

// SetConnectedClients updates the connected client gauge.
func SetConnectedClients(n int) {
	DefaultMetrics.ConnectedClients.Set(float64(n))
}

// SetActiveRooms updates the active room gauge.
func SetActiveRooms(n int) {
	DefaultMetrics.ActiveRooms.Set(float64(n))
}

// RecordDeltasEmitted adds to the emitted delta counter.
func RecordDeltasEmitted(n int) {
	DefaultMetrics.DeltasEmitted.Add(float64(n))
}

// RecordBroadcastTick increments the broadcaster tick counter.
func RecordBroadcastTick() {
	DefaultMetrics.BroadcastTicks.Inc()
}

// Package metrics provides Prometheus metrics for the scorestat service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values shared by callers.
const (
	OutcomeCreated = "created"
	OutcomeUpdated = "updated"
	OutcomeError   = "error"
	OutcomeDryRun  = "dry_run"

	FlushCommitted = "committed"
	FlushFailed    = "failed"

	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// Manager owns every collector exported by the service.
type Manager struct {
	namespace      string
	latencyBuckets []float64
	registry       prometheus.Registerer

	// Ingestion
	importRows    *prometheus.CounterVec
	importFlushes *prometheus.CounterVec
	flushLatency  prometheus.Histogram
	importRuns    *prometheus.CounterVec

	// Read path
	rankingComputations *prometheus.CounterVec
	cacheLookups        *prometheus.CounterVec
	aggregationLatency  *prometheus.HistogramVec

	// Storage
	repositoryQueryLatency *prometheus.HistogramVec
	repositoryRecords      prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // service registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "scorestat",
		latencyBuckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		registry:       prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.importRows = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "import_rows_total",
		Help:      "CSV rows processed by the ingestion pipeline, by outcome",
	}, []string{"outcome"})

	m.importFlushes = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "import_flushes_total",
		Help:      "Batch flushes executed by the ingestion pipeline, by result",
	}, []string{"result"})

	m.flushLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "import_flush_duration_milliseconds",
		Help:      "Duration of a single bulk upsert flush in milliseconds",
		Buckets:   m.latencyBuckets,
	})

	m.importRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "import_runs_total",
		Help:      "Import runs, by mode",
	}, []string{"mode"})

	m.rankingComputations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "ranking_computations_total",
		Help:      "Group ranking computations, by strategy",
	}, []string{"strategy"})

	m.cacheLookups = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "cache_lookups_total",
		Help:      "Ranking cache lookups, by result",
	}, []string{"result"})

	m.aggregationLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "aggregation_duration_milliseconds",
		Help:      "Duration of aggregation operations in milliseconds",
		Buckets:   m.latencyBuckets,
	}, []string{"operation", "strategy"})

	m.repositoryQueryLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "repository_query_duration_milliseconds",
		Help:      "Repository operation latency in milliseconds",
		Buckets:   m.latencyBuckets,
	}, []string{"backend", "operation"})

	m.repositoryRecords = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "repository_records",
		Help:      "Number of score records last observed in the store",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by endpoint, method and status code",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.latencyBuckets,
	}, []string{"endpoint", "method", "status_code"})
}

// RecordImportRows adds n rows with the given outcome.
func RecordImportRows(outcome string, n int) {
	if n <= 0 {
		return
	}
	globalManager.importRows.WithLabelValues(outcome).Add(float64(n))
}

// RecordFlush records one flush result and its latency.
func RecordFlush(result string, latencyMs float64) {
	globalManager.importFlushes.WithLabelValues(result).Inc()
	globalManager.flushLatency.Observe(latencyMs)
}

// RecordImportRun counts an import run ("write" or "dry_run").
func RecordImportRun(mode string) {
	globalManager.importRuns.WithLabelValues(mode).Inc()
}

// RecordRankingComputation counts an uncached ranking computation.
func RecordRankingComputation(strategy string) {
	globalManager.rankingComputations.WithLabelValues(strategy).Inc()
}

// RecordCacheLookup counts a cache lookup by result.
func RecordCacheLookup(result string) {
	globalManager.cacheLookups.WithLabelValues(result).Inc()
}

// RecordAggregationLatency records the duration of an aggregation operation.
func RecordAggregationLatency(operation, strategy string, latencyMs float64) {
	globalManager.aggregationLatency.WithLabelValues(operation, strategy).Observe(latencyMs)
}

// RecordRepositoryLatency records repository operation latency.
func RecordRepositoryLatency(backend, operation string, latencyMs float64) {
	globalManager.repositoryQueryLatency.WithLabelValues(backend, operation).Observe(latencyMs)
}

// UpdateRepositoryRecords sets the last observed record count.
func UpdateRepositoryRecords(count int) {
	globalManager.repositoryRecords.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// GetRegistry returns the registry all service metrics are registered on.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

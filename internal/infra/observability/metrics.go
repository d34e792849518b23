package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the ledger API.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	storeErrors     *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	snapshots       prometheus.Counter
	adjustments     *prometheus.CounterVec
	resetDeletes    *prometheus.CounterVec
	requestsTotal   *prometheus.CounterVec
}

// LedgerMetricsSnapshot is the payload of GET /v1/metrics/ledger: a compact
// operational view of the counters for dashboards that don't scrape.
type LedgerMetricsSnapshot struct {
	TotalRequests      int64   `json:"total_requests"`
	ErrorRate          float64 `json:"error_rate"`
	CacheHitRate       float64 `json:"cache_hit_rate"`
	SnapshotsDelivered int64   `json:"snapshots_delivered"`
	AdjustmentsCreated int64   `json:"adjustments_created"`
	ResetDeletesOK     int64   `json:"reset_deletes_ok"`
	ResetDeletesFailed int64   `json:"reset_deletes_failed"`
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fintrack_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		storeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintrack_store_errors_total",
				Help: "Total errors from the ledger store and auth provider.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintrack_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintrack_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		snapshots: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "fintrack_snapshots_delivered_total",
				Help: "Total full-set snapshots delivered to realtime subscribers.",
			},
		),
		adjustments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintrack_tally_adjustments_total",
				Help: "Total adjustment transactions created by the tally flow.",
			},
			[]string{"direction"},
		),
		resetDeletes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintrack_reset_deletes_total",
				Help: "Individual delete outcomes during bulk resets.",
			},
			[]string{"outcome"},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintrack_requests_total",
				Help: "Total requests processed.",
			},
			[]string{"outcome"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrStoreError increments the external error counter.
func (m *Metrics) IncrStoreError(service string) {
	m.storeErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrSnapshot counts one delivered realtime snapshot.
func (m *Metrics) IncrSnapshot() {
	m.snapshots.Inc()
}

// IncrAdjustment counts a tally adjustment, labeled income or expense.
func (m *Metrics) IncrAdjustment(direction string) {
	m.adjustments.WithLabelValues(direction).Inc()
}

// IncrResetDelete counts one delete outcome ("ok" or "failed") in a reset.
func (m *Metrics) IncrResetDelete(outcome string) {
	m.resetDeletes.WithLabelValues(outcome).Inc()
}

// IncrRequest increments the request counter, labeled "success" or "error".
func (m *Metrics) IncrRequest(outcome string) {
	m.requestsTotal.WithLabelValues(outcome).Inc()
}

// GetLedgerSnapshot returns a snapshot of operational metrics suitable for
// the GET /v1/metrics/ledger endpoint.
func (m *Metrics) GetLedgerSnapshot() *LedgerMetricsSnapshot {
	totalRequests := getCounterValue(m.requestsTotal, "success") +
		getCounterValue(m.requestsTotal, "error")
	errorCount := getCounterValue(m.requestsTotal, "error")
	cacheHits := getCounterValue(m.cacheHits, "snapshot")
	cacheMisses := getCounterValue(m.cacheMisses, "snapshot")

	errorRate := float64(0)
	if totalRequests > 0 {
		errorRate = errorCount / totalRequests
	}
	cacheHitRate := float64(0)
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}

	return &LedgerMetricsSnapshot{
		TotalRequests:      int64(totalRequests),
		ErrorRate:          errorRate,
		CacheHitRate:       cacheHitRate,
		SnapshotsDelivered: int64(getPlainCounterValue(m.snapshots)),
		AdjustmentsCreated: int64(getCounterValue(m.adjustments, "income") + getCounterValue(m.adjustments, "expense")),
		ResetDeletesOK:     int64(getCounterValue(m.resetDeletes, "ok")),
		ResetDeletesFailed: int64(getCounterValue(m.resetDeletes, "failed")),
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

func getPlainCounterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

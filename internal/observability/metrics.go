package observability

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service, plus the
// atomic counters backing the JSON health and metrics endpoints. The JSON
// surface is resettable at runtime; the Prometheus counters are not.
type Metrics struct {
	StoreOps       *prometheus.CounterVec
	StoreOpLatency prometheus.Histogram
	CacheEvents    *prometheus.CounterVec
	ProviderErrors *prometheus.CounterVec
	ChatRequests   *prometheus.CounterVec

	hits         atomic.Int64
	misses       atomic.Int64
	totalOps     atomic.Int64
	latencyNanos atomic.Int64
	connErrors   atomic.Int64
	lastReset    atomic.Int64

	startedAt time.Time
}

// Snapshot is a point-in-time view of the resettable counters.
type Snapshot struct {
	Hits             int64
	Misses           int64
	HitRate          float64
	TotalOperations  int64
	AverageLatencyMS float64
	OpsPerSecond     float64
	ConnectionErrors int64
	Uptime           time.Duration
	LastReset        time.Time
}

func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		StoreOps: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Key-value store operations by op and outcome.",
		}, []string{"op", "outcome"}),
		StoreOpLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_latency_ms",
			Help:      "Key-value store operation latency in milliseconds.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		CacheEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_events_total",
			Help:      "Cache lookups by kind and result.",
		}, []string{"kind", "result"}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Remote provider errors by provider.",
		}, []string{"provider"}),
		ChatRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_requests_total",
			Help:      "Chat pipeline runs by outcome.",
		}, []string{"outcome"}),
		startedAt: time.Now().UTC(),
	}
	m.lastReset.Store(m.startedAt.UnixNano())
	return m
}

// ObserveStoreOp folds one timed store operation into both metric surfaces.
func (m *Metrics) ObserveStoreOp(op string, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.StoreOps.WithLabelValues(op, outcome).Inc()
	m.StoreOpLatency.Observe(float64(d.Milliseconds()))
	m.totalOps.Add(1)
	m.latencyNanos.Add(int64(d))
}

// ObserveConnectionError counts a store connectivity failure.
func (m *Metrics) ObserveConnectionError() {
	m.connErrors.Add(1)
}

// ObserveCache counts a cache lookup result for the given kind.
func (m *Metrics) ObserveCache(kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
		m.hits.Add(1)
	} else {
		m.misses.Add(1)
	}
	m.CacheEvents.WithLabelValues(kind, result).Inc()
}

// ObserveProviderError counts a remote provider failure.
func (m *Metrics) ObserveProviderError(provider string) {
	m.ProviderErrors.WithLabelValues(provider).Inc()
}

// ObserveChat counts a completed chat pipeline run.
func (m *Metrics) ObserveChat(outcome string) {
	m.ChatRequests.WithLabelValues(outcome).Inc()
}

// Snapshot reads the resettable counters.
func (m *Metrics) Snapshot() Snapshot {
	hits := m.hits.Load()
	misses := m.misses.Load()
	totalOps := m.totalOps.Load()
	lastReset := time.Unix(0, m.lastReset.Load()).UTC()
	uptime := time.Since(m.startedAt)

	s := Snapshot{
		Hits:             hits,
		Misses:           misses,
		TotalOperations:  totalOps,
		ConnectionErrors: m.connErrors.Load(),
		Uptime:           uptime,
		LastReset:        lastReset,
	}
	if total := hits + misses; total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}
	if totalOps > 0 {
		s.AverageLatencyMS = float64(m.latencyNanos.Load()) / float64(totalOps) / float64(time.Millisecond)
	}
	if secs := uptime.Seconds(); secs > 0 {
		s.OpsPerSecond = float64(totalOps) / secs
	}
	return s
}

// Reset zeroes the resettable counters and stamps the reset time.
func (m *Metrics) Reset() {
	m.hits.Store(0)
	m.misses.Store(0)
	m.totalOps.Store(0)
	m.latencyNanos.Store(0)
	m.connErrors.Store(0)
	m.lastReset.Store(time.Now().UTC().UnixNano())
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

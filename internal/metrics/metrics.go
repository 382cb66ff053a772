// Package metrics exposes Prometheus collectors for the proxy, its cache, the
// upstream gateway client and the push hub.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cache lookup results
const (
	CacheHit  = "hit"
	CacheMiss = "miss"
)

// Metrics owns a private registry so that tests can create isolated
// instances. All methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	httpInFlight     prometheus.Gauge
	cacheLookups     *prometheus.CounterVec
	cacheInvalidated *prometheus.CounterVec
	upstreamRequests *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	upstreamRetries  *prometheus.CounterVec
	rateLimited      prometheus.Counter
	eventsPublished  *prometheus.CounterVec
	wsClients        prometheus.Gauge
}

// New creates a Metrics instance with its own registry, including Go runtime
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "szenai_http_requests_total",
			Help: "HTTP requests by method, route and status code",
		}, []string{"method", "route", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "szenai_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "szenai_http_requests_in_flight",
			Help: "Requests currently being served",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "szenai_cache_lookups_total",
			Help: "Response cache lookups by resource and result",
		}, []string{"resource", "result"}),
		cacheInvalidated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "szenai_cache_invalidated_entries_total",
			Help: "Cache entries removed after mutations",
		}, []string{"operation"}),
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "szenai_upstream_requests_total",
			Help: "Upstream gateway attempts by operation and outcome",
		}, []string{"operation", "outcome"}),
		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "szenai_upstream_request_duration_seconds",
			Help:    "Upstream gateway attempt latency",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"operation"}),
		upstreamRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "szenai_upstream_retries_total",
			Help: "Upstream gateway retries by operation",
		}, []string{"operation"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "szenai_rate_limited_requests_total",
			Help: "Requests rejected by the rate limiter",
		}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "szenai_events_published_total",
			Help: "Broadcast events by type and sink result",
		}, []string{"type", "result"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "szenai_websocket_clients",
			Help: "Connected push channel clients",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.httpInFlight,
		m.cacheLookups,
		m.cacheInvalidated,
		m.upstreamRequests,
		m.upstreamDuration,
		m.upstreamRetries,
		m.rateLimited,
		m.eventsPublished,
		m.wsClients,
	)

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RequestStarted tracks an in-flight HTTP request; call the returned func when done.
func (m *Metrics) RequestStarted() func() {
	if m == nil {
		return func() {}
	}
	m.httpInFlight.Inc()
	return m.httpInFlight.Dec
}

// ObserveRequest records a completed HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveCache records a cache lookup for resource.
func (m *Metrics) ObserveCache(resource string, hit bool) {
	if m == nil {
		return
	}
	result := CacheMiss
	if hit {
		result = CacheHit
	}
	m.cacheLookups.WithLabelValues(resource, result).Inc()
}

// CacheInvalidated records entries removed by a mutation.
func (m *Metrics) CacheInvalidated(operation string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.cacheInvalidated.WithLabelValues(operation).Add(float64(count))
}

// ObserveUpstream records a single upstream attempt.
func (m *Metrics) ObserveUpstream(operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.upstreamRequests.WithLabelValues(operation, outcome).Inc()
	m.upstreamDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpstreamRetry records a retry of operation.
func (m *Metrics) UpstreamRetry(operation string) {
	if m == nil {
		return
	}
	m.upstreamRetries.WithLabelValues(operation).Inc()
}

// RateLimited records a rejected request.
func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

// EventPublished records one event fanned out to the configured sinks.
func (m *Metrics) EventPublished(eventType string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.eventsPublished.WithLabelValues(eventType, result).Inc()
}

// SetWebsocketClients sets the connected client gauge.
func (m *Metrics) SetWebsocketClients(n int) {
	if m == nil {
		return
	}
	m.wsClients.Set(float64(n))
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Lookup sources.
const (
	SourceEdge     = "edge"
	SourceDatabase = "database"
)

// Lookup results.
const (
	ResultSuccess        = "success"
	ResultNotFound       = "not_found"
	ResultNotInitialized = "not_initialized"
	ResultInvalid        = "invalid"
	ResultError          = "error"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// HTTP Metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Backend Metrics
	BackendQueriesTotal  *prometheus.CounterVec
	BackendQueryDuration *prometheus.HistogramVec
	BackendReady         prometheus.Gauge

	// Application Metrics
	GeoLookupsTotal     *prometheus.CounterVec
	RateLimitedRequests prometheus.Counter
}

// New creates all metrics and registers them with the default registerer.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all metrics and registers them with reg.
// Tests pass a fresh prometheus.NewRegistry() to avoid duplicate registration.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),

		HTTPResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 7),
			},
			[]string{"method", "route", "status"},
		),

		BackendQueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geo_backend_queries_total",
				Help: "Total number of geolocation backend queries",
			},
			[]string{"backend", "status"},
		),

		BackendQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "geo_backend_query_duration_seconds",
				Help:    "Geolocation backend query latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend"},
		),

		BackendReady: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "geo_backend_ready",
				Help: "1 once the geolocation backend is open and serving lookups",
			},
		),

		GeoLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geo_lookups_total",
				Help: "Total number of geolocation lookups by source and result",
			},
			[]string{"source", "result"},
		),

		RateLimitedRequests: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "rate_limited_requests_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
		),
	}
}

// ObserveLookup records the outcome of a single lookup. Safe on a nil receiver.
func (m *Metrics) ObserveLookup(source, result string) {
	if m == nil {
		return
	}
	m.GeoLookupsTotal.WithLabelValues(source, result).Inc()
}

// ObserveBackendQuery records one backend round trip. Safe on a nil receiver.
func (m *Metrics) ObserveBackendQuery(backend, status string, seconds float64) {
	if m == nil {
		return
	}
	m.BackendQueriesTotal.WithLabelValues(backend, status).Inc()
	m.BackendQueryDuration.WithLabelValues(backend).Observe(seconds)
}

// SetBackendReady flips the readiness gauge. Safe on a nil receiver.
func (m *Metrics) SetBackendReady(ready bool) {
	if m == nil {
		return
	}
	if ready {
		m.BackendReady.Set(1)
		return
	}
	m.BackendReady.Set(0)
}

// Package metrics provides the Prometheus metrics of the auth backend.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the registered collectors. A nil *Metrics is a no-op.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	loginsTotal       *prometheus.CounterVec
	authFailuresTotal *prometheus.CounterVec
	rateLimitedTotal  *prometheus.CounterVec

	sessionsSweptTotal prometheus.Counter
}

// New creates the collectors on a fresh registry, together with the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		httpRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chancafe_http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"method", "route", "status"}),

		httpRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chancafe_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),

		loginsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chancafe_auth_logins_total",
			Help: "Login attempts by result",
		}, []string{"result"}),

		authFailuresTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chancafe_auth_failures_total",
			Help: "Rejected requests by error code",
		}, []string{"code"}),

		rateLimitedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chancafe_rate_limited_total",
			Help: "Requests rejected by a rate limiter",
		}, []string{"scope"}),

		sessionsSweptTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "chancafe_sessions_swept_total",
			Help: "Sessions marked expired by the sweep",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTP records one completed request. route is the matched route pattern, not the raw path.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RecordLogin records a login attempt. reason is empty on success.
func (m *Metrics) RecordLogin(success bool, reason string) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = reason
	}
	m.loginsTotal.WithLabelValues(result).Inc()
}

// RecordAuthFailure records a request rejected with an authentication or authorization code.
func (m *Metrics) RecordAuthFailure(code string) {
	if m == nil {
		return
	}
	m.authFailuresTotal.WithLabelValues(code).Inc()
}

// RecordRateLimited records a request rejected by the limiter of scope ("login" or "api").
func (m *Metrics) RecordRateLimited(scope string) {
	if m == nil {
		return
	}
	m.rateLimitedTotal.WithLabelValues(scope).Inc()
}

// AddSessionsSwept adds n sessions expired by a sweep.
func (m *Metrics) AddSessionsSwept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionsSweptTotal.Add(float64(n))
}

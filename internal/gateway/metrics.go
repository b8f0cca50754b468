package gateway

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks HTTP traffic. Counters for /status use atomics; the same
// events feed Prometheus collectors when a registerer is given.
type Metrics struct {
	requests     atomic.Int64
	errors       atomic.Int64
	totalLatency atomic.Int64 // nanoseconds

	requestsVec *prometheus.CounterVec
	durations   *prometheus.HistogramVec
}

// NewMetrics creates gateway metrics. reg may be nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestsVec: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cronclaw",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "code"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cronclaw",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	if reg != nil {
		reg.MustRegister(m.requestsVec, m.durations)
	}
	return m
}

// Record records one request.
func (m *Metrics) Record(method, route string, code int, latency time.Duration) {
	m.requests.Add(1)
	m.totalLatency.Add(int64(latency))
	if code >= http.StatusInternalServerError {
		m.errors.Add(1)
	}
	if route == "" {
		route = "unmatched"
	}
	m.requestsVec.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.durations.WithLabelValues(route).Observe(latency.Seconds())
}

// Middleware records every request under its chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		m.Record(r.Method, route, status, time.Since(start))
	})
}

// Snapshot returns a consistent point-in-time view of the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	requests := m.requests.Load()
	snap := MetricsSnapshot{
		Requests: requests,
		Errors:   m.errors.Load(),
	}
	if requests > 0 {
		snap.AvgLatency = time.Duration(m.totalLatency.Load() / requests)
	}
	return snap
}

// MetricsSnapshot is a serializable point-in-time metrics view.
type MetricsSnapshot struct {
	Requests   int64         `json:"requests"`
	Errors     int64         `json:"errors"`
	AvgLatency time.Duration `json:"avg_latency_ns"`
}

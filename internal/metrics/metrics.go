// ABOUTME: Prometheus metrics for kvgate requests, auth failures, and store operations
// ABOUTME: Uses a private registry so multiple gateways can coexist in one process

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

// Metrics holds all Prometheus metrics for the service
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	AuthFailuresTotal *prometheus.CounterVec
	StoreOpsTotal     *prometheus.CounterVec
}

// New creates and registers all metrics on a fresh registry, along with the
// standard Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kvgate_http_requests_total",
			Help: "Total number of HTTP requests by method, route, and status code",
		}, []string{"method", "route", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kvgate_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		AuthFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kvgate_auth_failures_total",
			Help: "Total number of rejected credentials by reason",
		}, []string{"reason"}),
		StoreOpsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kvgate_store_operations_total",
			Help: "Total number of store operations by operation and result",
		}, []string{"op", "result"}),
	}
}

// Registry returns the registry holding every kvgate collector.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest records one completed HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveAuthFailure implements auth.FailureObserver.
func (m *Metrics) ObserveAuthFailure(reason string) {
	m.AuthFailuresTotal.WithLabelValues(reason).Inc()
}

// ObserveStoreOp implements store.Observer.
func (m *Metrics) ObserveStoreOp(op string, hit bool) {
	result := "hit"
	if !hit {
		result = "miss"
	}
	m.StoreOpsTotal.WithLabelValues(op, result).Inc()
}

// Package metrics exposes Prometheus instruments for outbound endpoint traffic and batch outcomes.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns the connector's collectors. It is safe for concurrent use.
type Registry struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	itemsTotal      *prometheus.CounterVec
}

// New registers the connector collectors plus the Go and process collectors on a fresh registry.
func New() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "endpoint_requests_total",
				Help: "Total number of requests sent to the e-commerce endpoint.",
			},
			[]string{"operation", "method", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "endpoint_request_duration_seconds",
				Help:    "Histogram of e-commerce endpoint request durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"operation", "method", "status"},
		),
		itemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_items_total",
				Help: "Total number of batch items by operation and terminal state.",
			},
			[]string{"operation", "state"},
		),
	}
	r.registry.MustRegister(
		r.requestsTotal,
		r.requestDuration,
		r.itemsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// RecordRequest counts one outbound request. A zero status means no response was received.
func (r *Registry) RecordRequest(operation, method string, statusCode int, duration time.Duration) {
	if r == nil {
		return
	}
	status := classifyStatus(statusCode)
	r.requestsTotal.WithLabelValues(operation, method, status).Inc()
	r.requestDuration.WithLabelValues(operation, method, status).Observe(duration.Seconds())
}

// RecordItem counts one batch item that reached state.
func (r *Registry) RecordItem(operation, state string) {
	if r == nil {
		return
	}
	r.itemsTotal.WithLabelValues(operation, state).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func classifyStatus(statusCode int) string {
	switch {
	case statusCode == 0:
		return "error"
	case statusCode >= 200 && statusCode < 300:
		return "2xx"
	case statusCode >= 300 && statusCode < 400:
		return "3xx"
	case statusCode >= 400 && statusCode < 500:
		return "4xx"
	case statusCode >= 500 && statusCode < 600:
		return "5xx"
	}
	return "unknown"
}

package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	connections    prometheus.Counter
	sessionsActive prometheus.Gauge
	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	errors         *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them, together with the Go
// runtime and process collectors, on a new registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		connections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smartfilter",
			Name:      "connections_total",
			Help:      "Total number of accepted connections",
		}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "smartfilter",
			Name:      "sessions_active",
			Help:      "Number of connections currently being handled",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smartfilter",
			Name:      "requests_total",
			Help:      "Requests that reached the reply stage, by variant and status",
		}, []string{"variant", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "smartfilter",
			Name:      "request_duration_seconds",
			Help:      "Time from accept to reply, by variant",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"variant"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smartfilter",
			Name:      "errors_total",
			Help:      "Session errors by kind (accept, read, write, protocol, load, transform, save, internal)",
		}, []string{"kind"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.connections,
		m.sessionsActive,
		m.requests,
		m.duration,
		m.errors,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		Registry:          m.registry,
		EnableOpenMetrics: true,
	})
}

func (m *Metrics) recordError(kind string) {
	if kind != "" {
		m.errors.WithLabelValues(kind).Inc()
	}
}

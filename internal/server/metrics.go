package server

import (
	"net/http"

	"github.com/diagkit/licensecheck/internal/license"
	"github.com/diagkit/licensecheck/internal/lookup"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "licensecheck"

// Metrics holds the Prometheus collectors exposed on /metrics.
type Metrics struct {
	registry *prometheus.Registry
	lookups  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	alerts   *prometheus.GaugeVec
}

// NewMetrics registers the licensecheck collectors on a private registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookups_total",
			Help:      "License lookups by outcome (ok, empty, error).",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lookup_duration_seconds",
			Help:      "License lookup latency.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"source"}),
		alerts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alerts",
			Help:      "Alerts in the most recent check result by group.",
		}, []string{"group"}),
	}
	registry.MustRegister(
		m.lookups,
		m.duration,
		m.alerts,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace}),
	)
	for _, outcome := range []string{lookup.OutcomeOK, lookup.OutcomeEmpty, lookup.OutcomeError} {
		m.lookups.WithLabelValues(outcome)
	}
	return m
}

// ObserveLookup is a lookup.Observer feeding the lookup counter and histogram.
func (m *Metrics) ObserveLookup(source string, result lookup.Result) {
	if m == nil {
		return
	}
	if source == "" {
		source = "unknown"
	}
	m.lookups.WithLabelValues(result.Outcome()).Inc()
	m.duration.WithLabelValues(source).Observe(result.Duration.Seconds())
}

// RecordGroups sets the alert gauges from a finished check.
func (m *Metrics) RecordGroups(groups license.Groups) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues("active").Set(float64(len(groups.Active)))
	m.alerts.WithLabelValues("expired").Set(float64(len(groups.Expired)))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry exposes the underlying registry for tests and embedding.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

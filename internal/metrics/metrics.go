// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors the feature packages increment.
type Metrics struct {
	registry *prometheus.Registry

	Normalizations     *prometheus.CounterVec
	MenuTransitions    *prometheus.CounterVec
	MenuSessions       prometheus.Gauge
	SignupEvents       *prometheus.CounterVec
	ImportedFiles      *prometheus.CounterVec
	NormalizedSPNCount prometheus.Histogram
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Normalizations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "j1939c",
			Name:      "normalizations_total",
			Help:      "Vehicle records normalized, by detected encoding.",
		}, []string{"shape"}),
		MenuTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "j1939c",
			Name:      "menu_transitions_total",
			Help:      "Navigation menu events applied in live sessions.",
		}, []string{"event"}),
		MenuSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "j1939c",
			Name:      "menu_sessions_active",
			Help:      "Open websocket navigation sessions.",
		}),
		SignupEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "j1939c",
			Name:      "signup_events_total",
			Help:      "Signup flow steps, by stage and outcome.",
		}, []string{"stage", "outcome"}),
		ImportedFiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "j1939c",
			Name:      "imported_files_total",
			Help:      "Files processed by the importer, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		NormalizedSPNCount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "j1939c",
			Name:      "normalized_spn_count",
			Help:      "SPNs per normalized vehicle record.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Normalizations,
		m.MenuTransitions,
		m.MenuSessions,
		m.SignupEvents,
		m.ImportedFiles,
		m.NormalizedSPNCount,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer { return m.registry }

// ObserveNormalization records one normalizer run. A nil receiver is a no-op
// so packages can be used without metrics wiring.
func (m *Metrics) ObserveNormalization(shape string, spnCount int) {
	if m == nil {
		return
	}
	m.Normalizations.WithLabelValues(shape).Inc()
	m.NormalizedSPNCount.Observe(float64(spnCount))
}

// MenuEvent counts one applied navigation event.
func (m *Metrics) MenuEvent(event string) {
	if m == nil {
		return
	}
	m.MenuTransitions.WithLabelValues(event).Inc()
}

// SessionOpened tracks a live menu session starting.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.MenuSessions.Inc()
}

// SessionClosed tracks a live menu session ending.
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.MenuSessions.Dec()
}

// Signup counts a signup flow step.
func (m *Metrics) Signup(stage, outcome string) {
	if m == nil {
		return
	}
	m.SignupEvents.WithLabelValues(stage, outcome).Inc()
}

// Imported counts one importer file result.
func (m *Metrics) Imported(kind, outcome string) {
	if m == nil {
		return
	}
	m.ImportedFiles.WithLabelValues(kind, outcome).Inc()
}

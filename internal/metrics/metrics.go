// Package metrics exports the admin front end's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "welfaredesk"

// Metrics owns a private registry so tests and multiple servers in one
// process do not collide on the global one.
type Metrics struct {
	reg *prometheus.Registry

	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	submissions *prometheus.CounterVec
	filterDur   *prometheus.HistogramVec
	workspaces  prometheus.Gauge
}

// New registers all collectors, plus the Go runtime and process ones.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "endpoint",
			Name:      "requests_total",
			Help:      "Manage-endpoint requests by entity, action and outcome.",
		}, []string{"entity", "action", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "endpoint",
			Name:      "request_duration_seconds",
			Help:      "Manage-endpoint request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"entity", "action"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "modal",
			Name:      "submissions_total",
			Help:      "Dialog submissions by entity and outcome.",
		}, []string{"entity", "outcome"}),
		filterDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "table",
			Name:      "filter_duration_seconds",
			Help:      "Time spent applying filters to an entity's records.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 8),
		}, []string{"entity"}),
		workspaces: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "workspace",
			Name:      "live",
			Help:      "Browser workspaces currently held in memory.",
		}),
	}
	m.reg.MustRegister(
		m.requests, m.latency, m.submissions, m.filterDur, m.workspaces,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRequest records one endpoint call.
func (m *Metrics) ObserveRequest(entity, action, outcome string, elapsed time.Duration) {
	m.requests.WithLabelValues(entity, action, outcome).Inc()
	m.latency.WithLabelValues(entity, action).Observe(elapsed.Seconds())
}

// ObserveSubmission records one dialog submission.
func (m *Metrics) ObserveSubmission(entity, outcome string) {
	m.submissions.WithLabelValues(entity, outcome).Inc()
}

// ObserveFilter records one filter application.
func (m *Metrics) ObserveFilter(entity string, elapsed time.Duration) {
	m.filterDur.WithLabelValues(entity).Observe(elapsed.Seconds())
}

// WorkspaceOpened and WorkspaceClosed track the live workspace gauge.
func (m *Metrics) WorkspaceOpened() { m.workspaces.Inc() }

func (m *Metrics) WorkspaceClosed() { m.workspaces.Dec() }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

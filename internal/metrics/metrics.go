// Package metrics exposes Prometheus instrumentation for the chat pipeline.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gophersearch"

// Turn paths.
const (
	PathDirect    = "direct"
	PathRetrieval = "retrieval"
)

// Turn outcomes.
const (
	StatusSuccess   = "success"
	StatusError     = "error"
	StatusCancelled = "cancelled"
	StatusNoResults = "no_results"
)

// Metrics holds the collectors registered for one process.
type Metrics struct {
	registry *prometheus.Registry

	TurnsTotal      *prometheus.CounterVec
	StageDuration   *prometheus.HistogramVec
	PagesTotal      *prometheus.CounterVec
	SummariesFailed *prometheus.CounterVec
	ActiveSessions  prometheus.Gauge
	TimeToFirstByte *prometheus.HistogramVec
}

// New registers every collector on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		TurnsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Chat turns handled, by path and outcome.",
		}, []string{"path", "status"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time spent in each pipeline stage.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"stage"}),
		PagesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_total",
			Help:      "Search result pages, by fetch outcome.",
		}, []string{"result"}),
		SummariesFailed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_failed_total",
			Help:      "Documents whose extractive summary failed.",
		}, []string{"path"}),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Live chat sessions.",
		}),
		TimeToFirstByte: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "time_to_first_chunk_seconds",
			Help:      "Latency from user message to the first streamed answer chunk.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"path"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Turn counts one finished turn.
func (m *Metrics) Turn(path, status string) {
	if m == nil {
		return
	}
	m.TurnsTotal.WithLabelValues(path, status).Inc()
}

// Stage records the duration of a stage that started at start.
func (m *Metrics) Stage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// Pages counts fetched and dropped search results.
func (m *Metrics) Pages(ok, failed int) {
	if m == nil {
		return
	}
	m.PagesTotal.WithLabelValues("ok").Add(float64(ok))
	m.PagesTotal.WithLabelValues("dropped").Add(float64(failed))
}

// SummaryFailures counts failed per-document summaries.
func (m *Metrics) SummaryFailures(n int) {
	if m == nil || n == 0 {
		return
	}
	m.SummariesFailed.WithLabelValues(PathRetrieval).Add(float64(n))
}

// FirstChunk records time to first streamed chunk.
func (m *Metrics) FirstChunk(path string, start time.Time) {
	if m == nil {
		return
	}
	m.TimeToFirstByte.WithLabelValues(path).Observe(time.Since(start).Seconds())
}

// SessionOpened and SessionClosed track live sessions.
func (m *Metrics) SessionOpened() {
	if m != nil {
		m.ActiveSessions.Inc()
	}
}

func (m *Metrics) SessionClosed() {
	if m != nil {
		m.ActiveSessions.Dec()
	}
}

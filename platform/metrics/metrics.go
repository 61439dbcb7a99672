// Package metrics exposes Prometheus collectors for ingest runs.
// This is part of the platform layer and contains no business logic.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "permit_ingest"

// Outcomes for RunFinished.
const (
	OutcomeSuccess = "success"
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"
)

// Ingest holds the ingest collectors.
type Ingest struct {
	registry *prometheus.Registry
	runs     *prometheus.CounterVec
	records  *prometheus.CounterVec
	rowErrs  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	lastRun  *prometheus.GaugeVec
}

// New creates a registry with the ingest collectors plus the Go and process
// collectors.
func New() *Ingest {
	reg := prometheus.NewRegistry()
	m := &Ingest{
		registry: reg,
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Source runs by outcome",
		}, []string{"source", "outcome", "dry_run"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Upserted records by action",
		}, []string{"source", "action"}),
		rowErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "row_errors_total",
			Help:      "Rows dropped or rejected during a run",
		}, []string{"source"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of one source run",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"source"}),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that fetched successfully",
		}, []string{"source"}),
	}
	reg.MustRegister(
		m.runs, m.records, m.rowErrs, m.duration, m.lastRun,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Ingest) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Ingest) Registry() *prometheus.Registry {
	return m.registry
}

// RecordsUpserted counts records that took action.
func (m *Ingest) RecordsUpserted(source, action string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.records.WithLabelValues(source, action).Add(float64(n))
}

// RunFinished records the outcome of one source run.
func (m *Ingest) RunFinished(source, outcome string, dryRun bool, rowErrors int, took time.Duration, at time.Time) {
	if m == nil {
		return
	}
	dry := "false"
	if dryRun {
		dry = "true"
	}
	m.runs.WithLabelValues(source, outcome, dry).Inc()
	if rowErrors > 0 {
		m.rowErrs.WithLabelValues(source).Add(float64(rowErrors))
	}
	m.duration.WithLabelValues(source).Observe(took.Seconds())
	if outcome != OutcomeFailed {
		m.lastRun.WithLabelValues(source).Set(float64(at.Unix()))
	}
}

// Package metric records conversion metrics on a private prometheus
// registry and writes them in the node-exporter textfile format.
package metric

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "omop2owl"

// Metrics contains the metrics of one conversion run. A nil *Metrics
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ConceptsLoaded     prometheus.Counter
	ConceptsEmitted    *prometheus.CounterVec
	RelationshipEdges  *prometheus.CounterVec
	PartitionsTotal    *prometheus.CounterVec
	PartitionDuration  *prometheus.HistogramVec
	ToolDuration       *prometheus.HistogramVec
	ToolFailures       *prometheus.CounterVec
	CacheHits          *prometheus.CounterVec
	RunDuration        prometheus.Gauge
	LastRunSuccessTime prometheus.Gauge
}

// New creates the metrics and registers them on a new registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		ConceptsLoaded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "concepts",
				Name:      "loaded_total",
				Help:      "Total number of concept rows read",
			},
		),

		ConceptsEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "concepts",
				Name:      "emitted_total",
				Help:      "Total number of template records written",
			},
			[]string{"partition"},
		),

		RelationshipEdges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "relationships",
				Name:      "edges_total",
				Help:      "Total number of relationship map edges per predicate",
			},
			[]string{"predicate"},
		),

		PartitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "partitions",
				Name:      "total",
				Help:      "Total number of processed partitions",
			},
			[]string{"status"},
		),

		PartitionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "partitions",
				Name:      "duration_seconds",
				Help:      "Partition processing duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
			[]string{"partition"},
		),

		ToolDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "tool",
				Name:      "duration_seconds",
				Help:      "External tool run duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
			[]string{"tool"},
		),

		ToolFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "tool",
				Name:      "failures_total",
				Help:      "Total number of failed external tool runs",
			},
			[]string{"tool"},
		),

		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "hits_total",
				Help:      "Total number of reused cached artifacts",
			},
			[]string{"artifact"},
		),

		RunDuration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "run",
				Name:      "duration_seconds",
				Help:      "Duration of the last run in seconds",
			},
		),

		LastRunSuccessTime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "run",
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last successful run",
			},
		),
	}

	m.registry.MustRegister(
		m.ConceptsLoaded,
		m.ConceptsEmitted,
		m.RelationshipEdges,
		m.PartitionsTotal,
		m.PartitionDuration,
		m.ToolDuration,
		m.ToolFailures,
		m.CacheHits,
		m.RunDuration,
		m.LastRunSuccessTime,
	)
	return m
}

// Registry returns the underlying prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordConceptsLoaded adds n loaded concepts.
func (m *Metrics) RecordConceptsLoaded(n int) {
	if m == nil {
		return
	}
	m.ConceptsLoaded.Add(float64(n))
}

// RecordConceptsEmitted adds n template records for a partition.
func (m *Metrics) RecordConceptsEmitted(partition string, n int) {
	if m == nil {
		return
	}
	m.ConceptsEmitted.WithLabelValues(partition).Add(float64(n))
}

// RecordEdges adds n edges for a predicate.
func (m *Metrics) RecordEdges(predicate string, n int) {
	if m == nil {
		return
	}
	m.RelationshipEdges.WithLabelValues(predicate).Add(float64(n))
}

// RecordPartition records a finished partition.
func (m *Metrics) RecordPartition(partition string, ok bool, duration time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if !ok {
		status = "skipped"
	}
	m.PartitionsTotal.WithLabelValues(status).Inc()
	m.PartitionDuration.WithLabelValues(partition).Observe(duration.Seconds())
}

// RecordTool records an external tool run.
func (m *Metrics) RecordTool(tool string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.ToolDuration.WithLabelValues(tool).Observe(duration.Seconds())
	if err != nil {
		m.ToolFailures.WithLabelValues(tool).Inc()
	}
}

// RecordCacheHit records a reused artifact (template, owl, db, tables, merged).
func (m *Metrics) RecordCacheHit(artifact string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(artifact).Inc()
}

// RecordRun records the run duration and, on success, the completion time.
func (m *Metrics) RecordRun(duration time.Duration, ok bool) {
	if m == nil {
		return
	}
	m.RunDuration.Set(duration.Seconds())
	if ok {
		m.LastRunSuccessTime.SetToCurrentTime()
	}
}

// WriteTextfile writes all metrics to path in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

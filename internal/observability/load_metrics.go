// Package observability exposes load statistics as Prometheus metrics.
// The CLI is short-lived, so metrics are written to a node-exporter
// textfile instead of being served.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cellcount"

// LoadMetrics tracks per-record outcomes and the shape of the last load.
// A nil *LoadMetrics is valid and records nothing.
type LoadMetrics struct {
	registry *prometheus.Registry

	records     *prometheus.CounterVec
	entities    *prometheus.GaugeVec
	duration    prometheus.Gauge
	lastSuccess prometheus.Gauge
}

// NewLoadMetrics creates the metrics on a private registry.
func NewLoadMetrics() *LoadMetrics {
	m := &LoadMetrics{
		registry: prometheus.NewRegistry(),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "load",
			Name:      "records_total",
			Help:      "Input records processed, by outcome.",
		}, []string{"outcome"}),
		entities: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "load",
			Name:      "rows_created",
			Help:      "Rows created by the last load, by table.",
		}, []string{"table"}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "load",
			Name:      "duration_seconds",
			Help:      "Wall time of the last load.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "load",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time the last load committed.",
		}),
	}
	m.registry.MustRegister(m.records, m.entities, m.duration, m.lastSuccess)
	return m
}

// Registry returns the registry the metrics live on.
func (m *LoadMetrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordOutcome counts one processed record.
func (m *LoadMetrics) RecordOutcome(outcome string) {
	if m == nil {
		return
	}
	m.records.WithLabelValues(outcome).Inc()
}

// ObserveLoad records the result of a committed load.
func (m *LoadMetrics) ObserveLoad(projects, subjects, samples int, elapsed time.Duration, finished time.Time) {
	if m == nil {
		return
	}
	m.entities.WithLabelValues("projects").Set(float64(projects))
	m.entities.WithLabelValues("subjects").Set(float64(subjects))
	m.entities.WithLabelValues("cell_counts").Set(float64(samples))
	m.duration.Set(elapsed.Seconds())
	m.lastSuccess.Set(float64(finished.Unix()))
}

// WriteTextfile writes every metric to path in the text exposition format.
func (m *LoadMetrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

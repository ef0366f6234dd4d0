package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Report query status labels.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// ReportMetrics tracks the queries behind the frequency, cohort and
// preview reports. A nil *ReportMetrics is valid and records nothing.
type ReportMetrics struct {
	queries  *prometheus.CounterVec
	rows     *prometheus.GaugeVec
	duration *prometheus.GaugeVec
}

// NewReportMetrics creates the report metrics and registers them on reg.
func NewReportMetrics(reg prometheus.Registerer) *ReportMetrics {
	m := &ReportMetrics{
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "queries_total",
			Help:      "Report queries run, by report and status.",
		}, []string{"report", "status"}),
		rows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "rows",
			Help:      "Rows produced by the last successful run of each report.",
		}, []string{"report"}),
		duration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "duration_seconds",
			Help:      "Wall time of the last run of each report.",
		}, []string{"report"}),
	}
	if reg != nil {
		reg.MustRegister(m.queries, m.rows, m.duration)
	}
	return m
}

// Observe records one report run. rows is ignored when err is non-nil.
func (m *ReportMetrics) Observe(report string, rows int, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(report).Set(elapsed.Seconds())
	if err != nil {
		m.queries.WithLabelValues(report, StatusError).Inc()
		return
	}
	m.queries.WithLabelValues(report, StatusOK).Inc()
	m.rows.WithLabelValues(report).Set(float64(rows))
}

// SPDX-License-Identifier: MIT

// Package metrics exposes the Prometheus instrumentation, one file per
// concern. All metric names carry the reqwatch_ prefix.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	auditRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reqwatch_audit_runs_total",
		Help: "Total audit runs by result",
	}, []string{"result"})

	auditDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reqwatch_audit_duration_seconds",
		Help:    "Wall-clock duration of a full audit run",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	auditFindings = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "reqwatch_audit_findings",
		Help: "Findings produced by the most recent audit run, by severity",
	}, []string{"severity"})

	auditEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reqwatch_audit_entries",
		Help: "Requirement entries in the most recent resolution",
	})
)

// RecordAuditRun records one completed audit run.
func RecordAuditRun(success bool, duration time.Duration) {
	result := "failure"
	if success {
		result = "success"
	}
	auditRunsTotal.WithLabelValues(result).Inc()
	auditDuration.Observe(duration.Seconds())
}

// SetAuditFindings publishes the finding counts of the latest run.
func SetAuditFindings(info, warning, errors int) {
	auditFindings.WithLabelValues("info").Set(float64(info))
	auditFindings.WithLabelValues("warning").Set(float64(warning))
	auditFindings.WithLabelValues("error").Set(float64(errors))
}

// SetAuditEntries publishes the entry count of the latest resolution.
func SetAuditEntries(n int) {
	auditEntries.Set(float64(n))
}

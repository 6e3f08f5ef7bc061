// SPDX-License-Identifier: MIT
package metrics

import (
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetGauge().GetValue()
}

func TestRecordAuditRun(t *testing.T) {
	before := counterValue(t, auditRunsTotal.WithLabelValues("success"))
	RecordAuditRun(true, 120*time.Millisecond)
	after := counterValue(t, auditRunsTotal.WithLabelValues("success"))
	if after != before+1 {
		t.Fatalf("success counter = %v, want %v", after, before+1)
	}
}

func TestSetAuditFindings(t *testing.T) {
	SetAuditFindings(2, 3, 1)
	if got := gaugeValue(t, auditFindings.WithLabelValues("warning")); got != 3 {
		t.Fatalf("warning gauge = %v", got)
	}
	if got := gaugeValue(t, auditFindings.WithLabelValues("error")); got != 1 {
		t.Fatalf("error gauge = %v", got)
	}
}

func TestSetCircuitBreakerState(t *testing.T) {
	SetCircuitBreakerState("probe:github.com", "open")
	if got := gaugeValue(t, circuitBreakerState.WithLabelValues("probe:github.com", "open")); got != 1 {
		t.Fatalf("open gauge = %v", got)
	}
	if got := gaugeValue(t, circuitBreakerState.WithLabelValues("probe:github.com", "closed")); got != 0 {
		t.Fatalf("closed gauge = %v", got)
	}
}

func TestRecordProbeCache(t *testing.T) {
	before := counterValue(t, probeCacheTotal.WithLabelValues("hit"))
	RecordProbeCache(true)
	if got := counterValue(t, probeCacheTotal.WithLabelValues("hit")); got != before+1 {
		t.Fatalf("hit counter = %v", got)
	}
}

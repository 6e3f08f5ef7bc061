// SPDX-License-Identifier: MIT
package main

import (
	"testing"

	"github.com/ManuGH/reqwatch/internal/config"
)

func TestTelemetryConfigMapping(t *testing.T) {
	cfg := config.Default()
	cfg.Tracing.Enabled = true
	cfg.Tracing.Endpoint = "collector:4317"
	cfg.Tracing.Protocol = "grpc"
	cfg.Tracing.SampleRatio = 0.25

	got := telemetryConfig(cfg, "v1.2.3")

	if !got.Enabled || got.Endpoint != "collector:4317" || got.ExporterType != "grpc" {
		t.Fatalf("telemetry config = %+v", got)
	}
	if got.ServiceName != "reqwatch" || got.ServiceVersion != "v1.2.3" {
		t.Fatalf("service identity = %q/%q", got.ServiceName, got.ServiceVersion)
	}
	if got.SamplingRate != 0.25 {
		t.Fatalf("sampling rate = %v", got.SamplingRate)
	}
}

func TestTelemetryConfigDisabledByDefault(t *testing.T) {
	got := telemetryConfig(config.Default(), "dev")
	if got.Enabled {
		t.Fatal("tracing must be opt-in")
	}
}

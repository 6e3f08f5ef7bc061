// SPDX-License-Identifier: MIT
package telemetry

import (
	"context"
	"testing"
)

func TestNewProviderDisabled(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	if p.tp != nil {
		t.Fatal("disabled telemetry should install the noop provider")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown of noop provider: %v", err)
	}
}

func TestNewProviderRejectsUnknownExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{
		Enabled:      true,
		ServiceName:  "reqwatch",
		ExporterType: "udp",
		Endpoint:     "localhost:4317",
	})
	if err == nil {
		t.Fatal("expected error for unsupported exporter type")
	}
}

func TestTracerReturnsNamedTracer(t *testing.T) {
	if _, err := NewProvider(context.Background(), Config{Enabled: false}); err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	if Tracer("audit") == nil {
		t.Fatal("Tracer returned nil")
	}
}

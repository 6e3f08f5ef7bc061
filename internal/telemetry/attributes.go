// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"

	// Audit attributes
	AuditRunIDKey    = "audit.run_id"
	AuditManifestKey = "audit.manifest"
	AuditFilesKey    = "audit.files"
	AuditEntriesKey  = "audit.entries"
	AuditFindingsKey = "audit.findings"
	AuditCleanKey    = "audit.clean"

	// Probe attributes
	ProbeURLKey     = "probe.url"
	ProbeHostKey    = "probe.host"
	ProbeOutcomeKey = "probe.outcome"
	ProbeCachedKey  = "probe.cached"

	// Index attributes
	IndexProjectKey  = "index.project"
	IndexVersionsKey = "index.versions"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// AuditAttributes creates audit-run span attributes.
func AuditAttributes(runID, manifest string, files, entries, findings int, clean bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AuditRunIDKey, runID),
		attribute.String(AuditManifestKey, manifest),
		attribute.Int(AuditFilesKey, files),
		attribute.Int(AuditEntriesKey, entries),
		attribute.Int(AuditFindingsKey, findings),
		attribute.Bool(AuditCleanKey, clean),
	}
}

// ProbeAttributes creates repository-probe span attributes.
func ProbeAttributes(url, host, outcome string, cached bool) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 4)
	if url != "" {
		attrs = append(attrs, attribute.String(ProbeURLKey, url))
	}
	if host != "" {
		attrs = append(attrs, attribute.String(ProbeHostKey, host))
	}
	attrs = append(attrs,
		attribute.String(ProbeOutcomeKey, outcome),
		attribute.Bool(ProbeCachedKey, cached),
	)
	return attrs
}

// IndexAttributes creates package-index span attributes.
func IndexAttributes(project string, versions int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(IndexProjectKey, project),
		attribute.Int(IndexVersionsKey, versions),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldRunID     = "run_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Manifest fields
	FieldManifest = "manifest"
	FieldPackage  = "package"
	FieldRule     = "rule"
	FieldSeverity = "severity"
	FieldLine     = "line"

	// Path / URL fields
	FieldPath = "path"
	FieldURL  = "url"

	// Probe fields
	FieldHost    = "host"
	FieldOutcome = "outcome"
)

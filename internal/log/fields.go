// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldTraceID   = "trace_id"
	FieldSpanID    = "span_id"
	FieldPrincipal = "principal"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldResource  = "resource"
	FieldOperation = "operation"

	// HTTP fields
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatus     = "status"
	FieldDurationMS = "duration_ms"
	FieldRemoteAddr = "remote_addr"
	FieldBytes      = "bytes"

	// Storage fields
	FieldTable = "table"
	FieldSQL   = "sql"
)

// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the framework.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"
	HTTPUserAgentKey  = "http.user_agent"

	// Operation attributes
	ResourceKey      = "fondat.resource"
	OperationKey     = "fondat.operation"
	OperationTypeKey = "fondat.operation.type"
	CacheHitKey      = "fondat.cache.hit"

	// SQL attributes
	DBSystemKey    = "db.system"
	DBTableKey     = "db.sql.table"
	DBStatementKey = "db.statement"
	DBRowsKey      = "db.response.returned_rows"

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

// OperationAttributes creates resource operation span attributes.
func OperationAttributes(resource, operation, opType string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	attrs = append(attrs,
		attribute.String(ResourceKey, resource),
		attribute.String(OperationKey, operation),
	)
	if opType != "" {
		attrs = append(attrs, attribute.String(OperationTypeKey, opType))
	}
	return attrs
}

// SQLAttributes creates database span attributes. Empty values are omitted.
func SQLAttributes(system, table, statement string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if system != "" {
		attrs = append(attrs, attribute.String(DBSystemKey, system))
	}
	if table != "" {
		attrs = append(attrs, attribute.String(DBTableKey, table))
	}
	if statement != "" {
		attrs = append(attrs, attribute.String(DBStatementKey, statement))
	}
	return attrs
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}

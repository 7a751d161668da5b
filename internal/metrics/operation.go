// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package metrics holds the Prometheus collectors for resource operations,
// the operation result cache and SQL statements.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "operation_duration_seconds",
		Help:    "Resource operation duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"resource", "operation"})

	operationCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "operation_calls_total",
		Help: "Total number of resource operation calls by outcome",
	}, []string{"resource", "operation", "outcome"}) // outcome=success|client_error|error

	operationCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "operation_cache_total",
		Help: "Operation result cache lookups by result",
	}, []string{"resource", "operation", "result"}) // result=hit|miss

	sqlStatements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sql_statements_total",
		Help: "Total number of SQL statements executed by kind and outcome",
	}, []string{"kind", "outcome"}) // kind=execute|query

	sqlTransactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sql_transactions_total",
		Help: "Total number of outermost SQL transactions by outcome",
	}, []string{"outcome"}) // outcome=commit|rollback
)

// Outcome labels.
const (
	OutcomeSuccess     = "success"
	OutcomeClientError = "client_error"
	OutcomeError       = "error"
)

// ObserveOperation records one operation call.
func ObserveOperation(resource, operation, outcome string, d time.Duration) {
	operationDuration.WithLabelValues(resource, operation).Observe(d.Seconds())
	operationCalls.WithLabelValues(resource, operation, normalizeOutcome(outcome)).Inc()
}

// RecordCacheLookup records an operation cache hit or miss.
func RecordCacheLookup(resource, operation string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	operationCache.WithLabelValues(resource, operation, result).Inc()
}

// RecordSQLStatement records one executed statement.
func RecordSQLStatement(kind string, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	sqlStatements.WithLabelValues(kind, outcome).Inc()
}

// RecordSQLTransaction records the end of an outermost transaction.
func RecordSQLTransaction(committed bool) {
	outcome := "rollback"
	if committed {
		outcome = "commit"
	}
	sqlTransactions.WithLabelValues(outcome).Inc()
}

func normalizeOutcome(outcome string) string {
	switch outcome {
	case OutcomeSuccess, OutcomeClientError, OutcomeError:
		return outcome
	default:
		return OutcomeError
	}
}

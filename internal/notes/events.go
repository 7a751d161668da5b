// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package notes

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fondat/fondat-core/internal/telemetry"
)

// Lifecycle events.
const (
	EventCreated  = "created"
	EventArchived = "archived"

	// EventsMetric counts lifecycle events by the "event" attribute.
	EventsMetric = "fondat.notes.events"
)

// recordEvent counts the event on the global meter provider and annotates
// the current span. The provider is looked up per call so tests can swap it.
func recordEvent(ctx context.Context, event string) {
	trace.SpanFromContext(ctx).AddEvent("note."+event)

	meter := otel.GetMeterProvider().Meter(telemetry.InstrumentationName)
	counter, err := meter.Int64Counter(EventsMetric, metric.WithDescription("Note lifecycle events"))
	if err != nil {
		return
	}
	counter.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
}

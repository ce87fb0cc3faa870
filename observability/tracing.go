package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/coreledger/dispatch"

// Tracer provides OpenTelemetry tracing for the dispatch engine.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new dispatch tracer.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(tracerName),
	}
}

// StartDeliverySpan starts a new span for a delivery attempt.
func (t *Tracer) StartDeliverySpan(ctx context.Context, deliveryID, eventID, subscriptionID string, attempt int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "dispatch.delivery",
		trace.WithAttributes(
			attribute.String("dispatch.delivery_id", deliveryID),
			attribute.String("dispatch.event_id", eventID),
			attribute.String("dispatch.subscription_id", subscriptionID),
			attribute.Int("dispatch.attempt", attempt),
		),
	)
}

// EndDeliverySpan ends a delivery span with result attributes.
func (t *Tracer) EndDeliverySpan(span trace.Span, statusCode, durationMs int, errMsg string) {
	span.SetAttributes(
		attribute.Int("http.status_code", statusCode),
		attribute.Int("dispatch.duration_ms", durationMs),
	)
	if errMsg != "" {
		span.SetAttributes(attribute.String("dispatch.error", errMsg))
	}
	span.End()
}

// StartEventSpan starts a new span for event fan-out.
func (t *Tracer) StartEventSpan(ctx context.Context, eventID, eventType string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "dispatch.event",
		trace.WithAttributes(
			attribute.String("dispatch.event_id", eventID),
			attribute.String("dispatch.event_type", eventType),
		),
	)
}

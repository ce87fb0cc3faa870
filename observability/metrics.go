package observability

import (
	gu "github.com/xraph/go-utils/metrics"
)

// Metrics holds metric instruments for the dispatch engine, backed by any
// go-utils MetricFactory.
type Metrics struct {
	EventsPublishedTotal gu.Counter
	DeliveriesTotal      gu.Counter
	DeliveryLatency      gu.Histogram
	DLQSize              gu.Gauge
	PendingRetries       gu.Gauge
	ActiveSubscriptions  gu.Gauge
}

// NewMetrics creates dispatch metric instruments using the supplied factory.
// Pass metrics.NewMetricsCollector() for standalone usage.
func NewMetrics(factory gu.MetricFactory) *Metrics {
	return &Metrics{
		EventsPublishedTotal: factory.Counter("dispatch_events_published_total"),
		DeliveriesTotal:      factory.Counter("dispatch_deliveries_total"),
		DeliveryLatency:      factory.Histogram("dispatch_delivery_latency_seconds"),
		DLQSize:              factory.Gauge("dispatch_dlq_size"),
		PendingRetries:       factory.Gauge("dispatch_pending_retries"),
		ActiveSubscriptions:  factory.Gauge("dispatch_active_subscriptions"),
	}
}

// RecordDelivery records a delivery attempt with the given outcome and latency.
func (m *Metrics) RecordDelivery(outcome string, latencySeconds float64) {
	m.DeliveriesTotal.WithLabels(map[string]string{"outcome": outcome}).Inc()
	m.DeliveryLatency.Observe(latencySeconds)
}

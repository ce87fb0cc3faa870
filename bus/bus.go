// Package bus defines the event transport between publishers and the
// delivery pipeline. Implementations provide at-least-once semantics:
// a message stays pending until acknowledged, so a crashed consumer's
// messages are redelivered.
package bus

import (
	"context"

	"github.com/coreledger/dispatch/event"
)

// Message is a published event awaiting processing. ID is the broker-assigned
// message identifier used for acknowledgment.
type Message struct {
	ID    string
	Event *event.Event
}

// Publisher appends events to the bus.
type Publisher interface {
	Publish(ctx context.Context, ev *event.Event) error
}

// Consumer reads published events. A message must be acknowledged after
// processing or it will be redelivered.
type Consumer interface {
	// Consume blocks briefly and returns up to max pending messages.
	// An empty slice with a nil error means no messages were available.
	Consume(ctx context.Context, max int) ([]Message, error)

	// Ack marks a message as processed.
	Ack(ctx context.Context, msg Message) error
}

// Bus is a full event transport.
type Bus interface {
	Publisher
	Consumer

	// Close releases broker resources.
	Close() error
}

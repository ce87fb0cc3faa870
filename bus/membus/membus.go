// Package membus implements the event bus on an in-process channel.
// Unacknowledged messages are redelivered, matching the broker-backed
// implementations closely enough for tests and single-process embedding.
package membus

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/coreledger/dispatch/bus"
	"github.com/coreledger/dispatch/event"
)

const defaultCapacity = 1024

// Bus is an in-memory event bus.
type Bus struct {
	mu      sync.Mutex
	queue   chan bus.Message
	pending map[string]bus.Message
	nextID  int64
	closed  bool
}

// New creates an in-memory bus.
func New() *Bus {
	return &Bus{
		queue:   make(chan bus.Message, defaultCapacity),
		pending: make(map[string]bus.Message),
	}
}

// Publish enqueues an event. Returns an error if the bus is closed or full.
func (b *Bus) Publish(ctx context.Context, ev *event.Event) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return context.Canceled
	}
	b.nextID++
	msg := bus.Message{ID: strconv.FormatInt(b.nextID, 10), Event: ev}
	b.mu.Unlock()

	select {
	case b.queue <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume returns up to max queued messages, blocking briefly when the queue
// is empty. Returned messages stay pending until acknowledged.
func (b *Bus) Consume(ctx context.Context, max int) ([]bus.Message, error) {
	if max <= 0 {
		max = 1
	}

	if b.isClosed() {
		return nil, nil
	}

	var out []bus.Message

	// Block for the first message only.
	select {
	case msg := <-b.queue:
		b.track(msg)
		out = append(out, msg)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(100 * time.Millisecond):
		return nil, nil
	}

	for len(out) < max {
		select {
		case msg := <-b.queue:
			b.track(msg)
			out = append(out, msg)
		default:
			return out, nil
		}
	}
	return out, nil
}

// Ack removes a message from the pending set.
func (b *Bus) Ack(_ context.Context, msg bus.Message) error {
	b.mu.Lock()
	delete(b.pending, msg.ID)
	b.mu.Unlock()
	return nil
}

// Redeliver requeues all pending messages. Tests use this to simulate a
// consumer crash.
func (b *Bus) Redeliver() {
	b.mu.Lock()
	msgs := make([]bus.Message, 0, len(b.pending))
	for _, msg := range b.pending {
		msgs = append(msgs, msg)
	}
	b.pending = make(map[string]bus.Message)
	b.mu.Unlock()

	for _, msg := range msgs {
		select {
		case b.queue <- msg:
		default:
		}
	}
}

// Pending returns the number of consumed-but-unacknowledged messages.
func (b *Bus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Close stops the bus. Publish fails and Consume returns no messages after
// Close. The queue channel is never closed: Publish and Redeliver send to it
// without holding the mutex, so closing it would race them.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *Bus) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *Bus) track(msg bus.Message) {
	b.mu.Lock()
	b.pending[msg.ID] = msg
	b.mu.Unlock()
}

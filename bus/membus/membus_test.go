package membus_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/coreledger/dispatch/bus/membus"
	"github.com/coreledger/dispatch/event"
	"github.com/coreledger/dispatch/id"
	"github.com/coreledger/dispatch/internal/entity"
)

func newEvent(eventType string) *event.Event {
	return &event.Event{
		Entity:        entity.New(),
		ID:            id.NewEventID(),
		Type:          eventType,
		Data:          json.RawMessage(`{}`),
		Timestamp:     time.Now().UTC(),
		SourceService: "test",
	}
}

func TestMembusPublishConsume(t *testing.T) {
	b := membus.New()
	defer b.Close()

	ctx := context.Background()

	if err := b.Publish(ctx, newEvent("transaction.completed")); err != nil {
		t.Fatal(err)
	}
	if err := b.Publish(ctx, newEvent("account.created")); err != nil {
		t.Fatal(err)
	}

	msgs, err := b.Consume(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Event.Type != "transaction.completed" {
		t.Fatalf("expected FIFO order, got %q first", msgs[0].Event.Type)
	}
}

func TestMembusConsumeEmptyReturnsNil(t *testing.T) {
	b := membus.New()
	defer b.Close()

	msgs, err := b.Consume(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected no messages, got %d", len(msgs))
	}
}

func TestMembusRedeliverUnacked(t *testing.T) {
	b := membus.New()
	defer b.Close()

	ctx := context.Background()
	_ = b.Publish(ctx, newEvent("payment.completed"))

	msgs, err := b.Consume(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if b.Pending() != 1 {
		t.Fatalf("expected 1 pending, got %d", b.Pending())
	}

	// Consumer "crashed" without acking.
	b.Redeliver()

	again, err := b.Consume(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 1 {
		t.Fatal("expected redelivery of unacked message")
	}
	if again[0].Event.Type != "payment.completed" {
		t.Fatalf("unexpected event %q", again[0].Event.Type)
	}
}

func TestMembusAckClearsPending(t *testing.T) {
	b := membus.New()
	defer b.Close()

	ctx := context.Background()
	_ = b.Publish(ctx, newEvent("loan.approved"))

	msgs, _ := b.Consume(ctx, 1)
	if err := b.Ack(ctx, msgs[0]); err != nil {
		t.Fatal(err)
	}
	if b.Pending() != 0 {
		t.Fatalf("expected 0 pending after ack, got %d", b.Pending())
	}

	b.Redeliver()
	again, _ := b.Consume(ctx, 1)
	if len(again) != 0 {
		t.Fatal("acked message must not be redelivered")
	}
}

func TestMembusPublishAfterClose(t *testing.T) {
	b := membus.New()
	b.Close()

	if err := b.Publish(context.Background(), newEvent("system.test")); err == nil {
		t.Fatal("expected error publishing to closed bus")
	}
}

func TestMembusConsumeAfterClose(t *testing.T) {
	b := membus.New()
	b.Close()

	msgs, err := b.Consume(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if msgs != nil {
		t.Fatalf("expected no messages from closed bus, got %d", len(msgs))
	}
}

func TestMembusCloseDuringPublish(t *testing.T) {
	b := membus.New()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Stays under the queue capacity so senders never block.
			for j := 0; j < 100; j++ {
				if err := b.Publish(context.Background(), newEvent("system.test")); err != nil {
					return
				}
			}
		}()
	}

	// Closing mid-publish must shut the bus down without panicking the
	// senders.
	time.Sleep(time.Millisecond)
	b.Close()
	wg.Wait()

	if err := b.Publish(context.Background(), newEvent("system.test")); err == nil {
		t.Fatal("expected error publishing to closed bus")
	}
}

package dlq_test

import (
	"context"
	"testing"
	"time"

	"github.com/coreledger/dispatch/delivery"
	"github.com/coreledger/dispatch/dlq"
	"github.com/coreledger/dispatch/event"
	"github.com/coreledger/dispatch/id"
	"github.com/coreledger/dispatch/internal/entity"
	"github.com/coreledger/dispatch/store/memory"
	"github.com/coreledger/dispatch/subscription"
)

func ctx() context.Context { return context.Background() }

func exhaustedDelivery(subID, evtID id.ID) *delivery.Delivery {
	return &delivery.Delivery{
		Entity:         entity.New(),
		ID:             id.NewDeliveryID(),
		SubscriptionID: subID,
		EventID:        evtID,
		Status:         delivery.StatusFailed,
		AttemptNumber:  3,
		URL:            "https://example.com/hook",
		ResponseStatus: 503,
		Error:          "503 Service Unavailable",
	}
}

func TestPushFailedMapsDeliveryToEntry(t *testing.T) {
	store := memory.New()
	svc := dlq.NewService(store, nil)

	sub := &subscription.Subscription{
		Entity: entity.New(),
		ID:     id.NewSubscriptionID(),
		URL:    "https://example.com/hook",
	}
	evt := &event.Event{
		Entity: entity.New(),
		ID:     id.NewEventID(),
		Type:   "transaction.created",
		Data:   []byte(`{"amount": 100}`),
	}
	d := exhaustedDelivery(sub.ID, evt.ID)

	if err := svc.PushFailed(ctx(), d, sub, evt); err != nil {
		t.Fatal(err)
	}

	entries, err := svc.List(ctx(), dlq.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	e := entries[0]
	if e.DeliveryID != d.ID {
		t.Fatalf("got delivery ID %v", e.DeliveryID)
	}
	if e.SubscriptionID != sub.ID || e.EventID != evt.ID {
		t.Fatalf("expected entry to reference subscription and event")
	}
	if e.EventType != "transaction.created" {
		t.Fatalf("got event type %q", e.EventType)
	}
	if e.URL != sub.URL {
		t.Fatalf("got URL %q", e.URL)
	}
	if string(e.Payload) != `{"amount": 100}` {
		t.Fatalf("got payload %s", e.Payload)
	}
	if e.Error != "503 Service Unavailable" {
		t.Fatalf("got error %q", e.Error)
	}
	if e.AttemptCount != 3 {
		t.Fatalf("got attempt count %d", e.AttemptCount)
	}
	if e.LastStatusCode != 503 {
		t.Fatalf("got status code %d", e.LastStatusCode)
	}
	if e.FailedAt.IsZero() {
		t.Fatal("expected FailedAt to be set")
	}
	if e.ReplayedAt != nil {
		t.Fatal("expected fresh entry to be unreplayed")
	}
}

func TestReplaySchedulesImmediateRetry(t *testing.T) {
	store := memory.New()
	svc := dlq.NewService(store, nil)

	sub := &subscription.Subscription{
		Entity: entity.New(),
		ID:     id.NewSubscriptionID(),
		URL:    "https://example.com/hook",
	}
	evt := &event.Event{
		Entity: entity.New(),
		ID:     id.NewEventID(),
		Type:   "transaction.created",
	}
	d := exhaustedDelivery(sub.ID, evt.ID)

	if err := svc.PushFailed(ctx(), d, sub, evt); err != nil {
		t.Fatal(err)
	}

	entries, _ := svc.List(ctx(), dlq.ListOpts{})
	if err := svc.Replay(ctx(), entries[0].ID); err != nil {
		t.Fatal(err)
	}

	got, err := svc.Get(ctx(), entries[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ReplayedAt == nil {
		t.Fatal("expected ReplayedAt to be set")
	}

	retries, err := store.DueRetries(ctx(), time.Now().UTC(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(retries) != 1 || retries[0].DeliveryID != d.ID {
		t.Fatalf("expected an immediate retry for the dead delivery")
	}
}

func TestReplayBulkAndCount(t *testing.T) {
	store := memory.New()
	svc := dlq.NewService(store, nil)

	sub := &subscription.Subscription{
		Entity: entity.New(),
		ID:     id.NewSubscriptionID(),
		URL:    "https://example.com/hook",
	}
	evt := &event.Event{
		Entity: entity.New(),
		ID:     id.NewEventID(),
		Type:   "transaction.created",
	}

	for range 3 {
		if err := svc.PushFailed(ctx(), exhaustedDelivery(sub.ID, evt.ID), sub, evt); err != nil {
			t.Fatal(err)
		}
	}

	count, err := svc.Count(ctx())
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Fatalf("expected 3 entries, got %d", count)
	}

	now := time.Now().UTC()
	replayed, err := svc.ReplayBulk(ctx(), now.Add(-time.Hour), now)
	if err != nil {
		t.Fatal(err)
	}
	if replayed != 3 {
		t.Fatalf("expected 3 replayed, got %d", replayed)
	}

	// Entries stay in the queue after replay; only Purge removes them.
	count, _ = svc.Count(ctx())
	if count != 3 {
		t.Fatalf("expected entries to survive replay, got %d", count)
	}
}

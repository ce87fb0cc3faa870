package delivery_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coreledger/dispatch/delivery"
	"github.com/coreledger/dispatch/dlq"
	"github.com/coreledger/dispatch/id"
	"github.com/coreledger/dispatch/store/memory"
	"github.com/coreledger/dispatch/subscription"
)

func ctx() context.Context { return context.Background() }

func newHarness(t *testing.T) (*delivery.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc := delivery.NewService(store, store, store, dlq.NewService(store, nil), nil, delivery.ServiceConfig{}, nil)
	return svc, store
}

func TestDeliverSuccessRecordsAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	svc, store := newHarness(t)
	sub := newTestSubscription(srv.URL)
	if err := store.CreateSubscription(ctx(), sub); err != nil {
		t.Fatal(err)
	}
	evt := newTestEvent()

	d, err := svc.Deliver(ctx(), sub, evt, 1)
	if err != nil {
		t.Fatal(err)
	}

	if d.Status != delivery.StatusDelivered {
		t.Fatalf("expected delivered, got %q", d.Status)
	}
	if d.AttemptNumber != 1 {
		t.Fatalf("expected attempt 1, got %d", d.AttemptNumber)
	}
	if d.DeliveredAt == nil {
		t.Fatal("expected delivered_at to be set")
	}
	if d.NextRetryAt != nil {
		t.Fatal("successful delivery must not schedule a retry")
	}

	// The record is persisted and fetchable.
	got, err := store.GetDelivery(ctx(), d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != delivery.StatusDelivered {
		t.Fatalf("persisted status %q", got.Status)
	}

	// Stats: one attempt, zero failures.
	fresh, _ := store.GetSubscription(ctx(), sub.ID)
	if fresh.DeliveryCount != 1 {
		t.Fatalf("expected delivery_count 1, got %d", fresh.DeliveryCount)
	}
	if fresh.FailureCount != 0 {
		t.Fatalf("expected failure_count 0, got %d", fresh.FailureCount)
	}
	if fresh.LastDeliveryAt == nil {
		t.Fatal("expected last_delivery_at to be set")
	}
}

// Two 503s followed by a 200 must leave three attempt records sharing
// (subscription, event), stats counting three attempts with two failures.
func TestDeliverRetrySequence(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	svc, store := newHarness(t)
	sub := newTestSubscription(srv.URL)
	sub.RetryAttempts = 3
	if err := store.CreateSubscription(ctx(), sub); err != nil {
		t.Fatal(err)
	}
	evt := newTestEvent()
	if err := store.CreateEvent(ctx(), evt); err != nil {
		t.Fatal(err)
	}

	// Drive the retry chain by claiming scheduled retries directly instead
	// of waiting out the backoff.
	if _, err := svc.Deliver(ctx(), sub, evt, 1); err != nil {
		t.Fatal(err)
	}
	for attempt := 2; attempt <= 3; attempt++ {
		due, err := store.DueRetries(ctx(), time.Now().Add(time.Hour), 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(due) != 1 {
			t.Fatalf("attempt %d: expected 1 due retry, got %d", attempt, len(due))
		}
		if due[0].AttemptNumber != attempt {
			t.Fatalf("expected attempt number %d, got %d", attempt, due[0].AttemptNumber)
		}
		if _, err := svc.Deliver(ctx(), sub, evt, due[0].AttemptNumber); err != nil {
			t.Fatal(err)
		}
	}

	evtID := evt.ID
	records, err := store.ListDeliveries(ctx(), delivery.ListOpts{EventID: &evtID})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 attempt records, got %d", len(records))
	}

	// Newest first: delivered, retry, retry.
	byAttempt := make(map[int]delivery.Status, 3)
	for _, r := range records {
		byAttempt[r.AttemptNumber] = r.Status
	}
	if byAttempt[1] != delivery.StatusRetry || byAttempt[2] != delivery.StatusRetry {
		t.Fatalf("expected first two attempts in retry state, got %v", byAttempt)
	}
	if byAttempt[3] != delivery.StatusDelivered {
		t.Fatalf("expected third attempt delivered, got %v", byAttempt)
	}

	fresh, _ := store.GetSubscription(ctx(), sub.ID)
	if fresh.DeliveryCount != 3 {
		t.Fatalf("expected delivery_count 3, got %d", fresh.DeliveryCount)
	}
	if fresh.FailureCount != 2 {
		t.Fatalf("expected failure_count 2, got %d", fresh.FailureCount)
	}

	// Nothing left on the schedule and nothing in the DLQ.
	left, _ := store.DueRetries(ctx(), time.Now().Add(time.Hour), 10)
	if len(left) != 0 {
		t.Fatalf("expected empty retry schedule, got %d", len(left))
	}
	count, _ := store.CountDLQ(ctx())
	if count != 0 {
		t.Fatalf("expected empty DLQ, got %d", count)
	}
}

func TestDeliverExhaustedMovesToDLQ(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc, store := newHarness(t)
	sub := newTestSubscription(srv.URL)
	sub.RetryAttempts = 2
	if err := store.CreateSubscription(ctx(), sub); err != nil {
		t.Fatal(err)
	}
	evt := newTestEvent()

	if _, err := svc.Deliver(ctx(), sub, evt, 1); err != nil {
		t.Fatal(err)
	}
	due, _ := store.DueRetries(ctx(), time.Now().Add(time.Hour), 10)
	if len(due) != 1 {
		t.Fatalf("expected 1 due retry, got %d", len(due))
	}

	final, err := svc.Deliver(ctx(), sub, evt, due[0].AttemptNumber)
	if err != nil {
		t.Fatal(err)
	}
	if final.Status != delivery.StatusFailed {
		t.Fatalf("expected failed, got %q", final.Status)
	}
	if final.NextRetryAt != nil {
		t.Fatal("final attempt must not schedule a retry")
	}

	entries, err := store.ListDLQ(ctx(), dlq.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 DLQ entry, got %d", len(entries))
	}
	if entries[0].AttemptCount != 2 {
		t.Fatalf("expected attempt count 2, got %d", entries[0].AttemptCount)
	}
	if entries[0].SubscriptionID != sub.ID {
		t.Fatal("DLQ entry subscription mismatch")
	}
	if entries[0].LastStatusCode != 500 {
		t.Fatalf("expected status 500, got %d", entries[0].LastStatusCode)
	}
}

func TestDeliverSchedulesBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	svc, store := newHarness(t)
	sub := newTestSubscription(srv.URL)
	sub.RetryBackoff = 3.0
	if err := store.CreateSubscription(ctx(), sub); err != nil {
		t.Fatal(err)
	}

	before := time.Now()
	d, err := svc.Deliver(ctx(), sub, newTestEvent(), 1)
	if err != nil {
		t.Fatal(err)
	}

	if d.Status != delivery.StatusRetry {
		t.Fatalf("expected retry, got %q", d.Status)
	}
	if d.NextRetryAt == nil {
		t.Fatal("expected next_retry_at")
	}
	// backoff^1 = 3s; never earlier.
	if d.NextRetryAt.Before(before.Add(3 * time.Second)) {
		t.Fatalf("retry at %v is earlier than the backoff allows", d.NextRetryAt)
	}

	// The scheduled retry is not yet due.
	due, _ := store.DueRetries(ctx(), time.Now(), 10)
	if len(due) != 0 {
		t.Fatalf("retry claimed before its fire time: %d", len(due))
	}
}

func TestExpireRecordsTerminalAttempt(t *testing.T) {
	svc, store := newHarness(t)
	sub := newTestSubscription("https://example.com/webhook")
	if err := store.CreateSubscription(ctx(), sub); err != nil {
		t.Fatal(err)
	}
	evt := newTestEvent()

	d, err := svc.Expire(ctx(), &delivery.PendingRetry{
		DeliveryID:     id.NewDeliveryID(),
		SubscriptionID: sub.ID,
		EventID:        evt.ID,
		AttemptNumber:  2,
		FireAt:         time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}

	if d.Status != delivery.StatusExpired {
		t.Fatalf("expected expired, got %q", d.Status)
	}
	if d.AttemptNumber != 2 {
		t.Fatalf("expected attempt 2, got %d", d.AttemptNumber)
	}

	// Expired attempts never touch stats or the DLQ.
	fresh, _ := store.GetSubscription(ctx(), sub.ID)
	if fresh.DeliveryCount != 0 || fresh.FailureCount != 0 {
		t.Fatal("expired attempt must not update stats")
	}
	count, _ := store.CountDLQ(ctx())
	if count != 0 {
		t.Fatal("expired attempt must not enter the DLQ")
	}
}

func TestDeliverIsolatesSubscriptions(t *testing.T) {
	var okCalls atomic.Int32
	okSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		okCalls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer okSrv.Close()

	svc, store := newHarness(t)

	broken := newTestSubscription("http://127.0.0.1:1")
	healthy := newTestSubscription(okSrv.URL)
	for _, sub := range []*subscription.Subscription{broken, healthy} {
		if err := store.CreateSubscription(ctx(), sub); err != nil {
			t.Fatal(err)
		}
	}
	evt := newTestEvent()

	// A failing endpoint is recorded, not raised.
	d1, err := svc.Deliver(ctx(), broken, evt, 1)
	if err != nil {
		t.Fatal(err)
	}
	if d1.Status != delivery.StatusRetry {
		t.Fatalf("expected retry for broken endpoint, got %q", d1.Status)
	}

	d2, err := svc.Deliver(ctx(), healthy, evt, 1)
	if err != nil {
		t.Fatal(err)
	}
	if d2.Status != delivery.StatusDelivered {
		t.Fatalf("expected delivered for healthy endpoint, got %q", d2.Status)
	}
	if okCalls.Load() != 1 {
		t.Fatalf("healthy endpoint should have received 1 call, got %d", okCalls.Load())
	}
}

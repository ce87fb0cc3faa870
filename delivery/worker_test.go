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

func newWorkerHarness(t *testing.T) (*delivery.Worker, *delivery.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc := delivery.NewService(store, store, store, dlq.NewService(store, nil), nil, delivery.ServiceConfig{}, nil)
	w := delivery.NewWorker(svc, store, store, store, delivery.WorkerConfig{
		Concurrency:  4,
		PollInterval: 20 * time.Millisecond,
		BatchSize:    10,
	}, nil)
	return w, svc, store
}

// waitFor polls until cond returns true or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWorkerRedeliversDueRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w, _, store := newWorkerHarness(t)

	sub := newTestSubscription(srv.URL)
	if err := store.CreateSubscription(ctx(), sub); err != nil {
		t.Fatal(err)
	}
	evt := newTestEvent()
	if err := store.CreateEvent(ctx(), evt); err != nil {
		t.Fatal(err)
	}

	// A retry that is already due.
	err := store.ScheduleRetry(ctx(), &delivery.PendingRetry{
		DeliveryID:     id.NewDeliveryID(),
		SubscriptionID: sub.ID,
		EventID:        evt.ID,
		AttemptNumber:  2,
		FireAt:         time.Now().Add(-time.Second),
	})
	if err != nil {
		t.Fatal(err)
	}

	w.Start(context.Background())
	defer w.Stop(context.Background())

	waitFor(t, 2*time.Second, func() bool { return calls.Load() >= 1 })

	evtID := evt.ID
	waitFor(t, 2*time.Second, func() bool {
		records, _ := store.ListDeliveries(ctx(), delivery.ListOpts{EventID: &evtID})
		return len(records) == 1 && records[0].Status == delivery.StatusDelivered
	})

	records, _ := store.ListDeliveries(ctx(), delivery.ListOpts{EventID: &evtID})
	if records[0].AttemptNumber != 2 {
		t.Fatalf("expected attempt 2, got %d", records[0].AttemptNumber)
	}
}

func TestWorkerStopRequeuesClaimedRetries(t *testing.T) {
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := memory.New()
	svc := delivery.NewService(store, store, store, dlq.NewService(store, nil), nil, delivery.ServiceConfig{}, nil)
	w := delivery.NewWorker(svc, store, store, store, delivery.WorkerConfig{
		Concurrency:  1,
		PollInterval: 10 * time.Millisecond,
		BatchSize:    10,
	}, nil)

	sub := newTestSubscription(srv.URL)
	if err := store.CreateSubscription(ctx(), sub); err != nil {
		t.Fatal(err)
	}
	evt := newTestEvent()
	if err := store.CreateEvent(ctx(), evt); err != nil {
		t.Fatal(err)
	}

	// Three due retries; with Concurrency 1 only the first goes in-flight
	// and the remainder of the claimed batch is waiting to dispatch.
	for i := 0; i < 3; i++ {
		err := store.ScheduleRetry(ctx(), &delivery.PendingRetry{
			DeliveryID:     id.NewDeliveryID(),
			SubscriptionID: sub.ID,
			EventID:        evt.ID,
			AttemptNumber:  1,
			FireAt:         time.Now().Add(-time.Second),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	w.Start(context.Background())
	<-entered

	stopped := make(chan struct{})
	go func() {
		w.Stop(context.Background())
		close(stopped)
	}()
	close(release)
	<-stopped

	// The in-flight attempt fails and reschedules itself; the claimed but
	// undispatched retries must be back on the schedule. Nothing is lost.
	n, err := store.CountPendingRetries(ctx())
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("expected 3 scheduled retries after shutdown, got %d", n)
	}
}

func TestWorkerExpiresInactiveSubscription(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w, _, store := newWorkerHarness(t)

	sub := newTestSubscription(srv.URL)
	sub.Status = subscription.StatusDisabled
	if err := store.CreateSubscription(ctx(), sub); err != nil {
		t.Fatal(err)
	}
	evt := newTestEvent()
	if err := store.CreateEvent(ctx(), evt); err != nil {
		t.Fatal(err)
	}

	err := store.ScheduleRetry(ctx(), &delivery.PendingRetry{
		DeliveryID:     id.NewDeliveryID(),
		SubscriptionID: sub.ID,
		EventID:        evt.ID,
		AttemptNumber:  3,
		FireAt:         time.Now().Add(-time.Second),
	})
	if err != nil {
		t.Fatal(err)
	}

	w.Start(context.Background())
	defer w.Stop(context.Background())

	evtID := evt.ID
	waitFor(t, 2*time.Second, func() bool {
		records, _ := store.ListDeliveries(ctx(), delivery.ListOpts{EventID: &evtID})
		return len(records) == 1
	})

	records, _ := store.ListDeliveries(ctx(), delivery.ListOpts{EventID: &evtID})
	if records[0].Status != delivery.StatusExpired {
		t.Fatalf("expected expired, got %q", records[0].Status)
	}
	if calls.Load() != 0 {
		t.Fatalf("expired retry must not hit the endpoint, got %d calls", calls.Load())
	}
}

func TestWorkerExpiresRetryForDeletedSubscription(t *testing.T) {
	w, _, store := newWorkerHarness(t)

	evt := newTestEvent()
	if err := store.CreateEvent(ctx(), evt); err != nil {
		t.Fatal(err)
	}

	// Subscription was never stored (hard-removed).
	err := store.ScheduleRetry(ctx(), &delivery.PendingRetry{
		DeliveryID:     id.NewDeliveryID(),
		SubscriptionID: id.NewSubscriptionID(),
		EventID:        evt.ID,
		AttemptNumber:  2,
		FireAt:         time.Now().Add(-time.Second),
	})
	if err != nil {
		t.Fatal(err)
	}

	w.Start(context.Background())
	defer w.Stop(context.Background())

	evtID := evt.ID
	waitFor(t, 2*time.Second, func() bool {
		records, _ := store.ListDeliveries(ctx(), delivery.ListOpts{EventID: &evtID})
		return len(records) == 1 && records[0].Status == delivery.StatusExpired
	})
}

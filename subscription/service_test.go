package subscription_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/coreledger/dispatch"
	"github.com/coreledger/dispatch/id"
	"github.com/coreledger/dispatch/store/memory"
	"github.com/coreledger/dispatch/subscription"
	"github.com/coreledger/dispatch/validator"
)

func ctx() context.Context { return context.Background() }

// fakeProber returns a canned probe result.
type fakeProber struct {
	result validator.Result
	calls  int
}

func (p *fakeProber) ValidateEndpoint(_ context.Context, _, _ string) validator.Result {
	p.calls++
	return p.result
}

func okProber() *fakeProber {
	return &fakeProber{result: validator.Result{
		Valid:        true,
		Reachable:    true,
		SupportsPost: true,
	}}
}

func newService(p subscription.Prober) *subscription.Service {
	s := memory.New()
	return subscription.NewService(s, p, nil)
}

func TestSubscriptionCreate(t *testing.T) {
	prober := okProber()
	svc := newService(prober)

	sub, err := svc.Create(ctx(), subscription.Input{
		URL:        "https://example.com/webhook",
		EventTypes: []string{"transaction.*"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if sub.ID.String() == "" {
		t.Fatal("expected non-empty ID")
	}
	if !strings.HasPrefix(sub.Secret, "whsec_") {
		t.Fatalf("expected auto-generated secret, got %q", sub.Secret)
	}
	if sub.Status != subscription.StatusActive {
		t.Fatalf("expected active status, got %q", sub.Status)
	}
	if sub.RetryAttempts != subscription.DefaultRetryAttempts {
		t.Fatalf("expected default retry attempts, got %d", sub.RetryAttempts)
	}
	if sub.RetryBackoff != subscription.DefaultRetryBackoff {
		t.Fatalf("expected default backoff, got %v", sub.RetryBackoff)
	}
	if sub.Timeout != subscription.DefaultTimeout {
		t.Fatalf("expected default timeout, got %v", sub.Timeout)
	}
	if prober.calls != 1 {
		t.Fatalf("expected one probe, got %d", prober.calls)
	}
}

func TestSubscriptionCreateValidation(t *testing.T) {
	svc := newService(okProber())

	// Missing URL
	_, err := svc.Create(ctx(), subscription.Input{
		EventTypes: []string{"*"},
	})
	if err == nil {
		t.Fatal("expected error for missing URL")
	}

	// Missing event types
	_, err = svc.Create(ctx(), subscription.Input{
		URL: "https://example.com",
	})
	if err == nil {
		t.Fatal("expected error for missing event types")
	}

	// Backoff below 1.0
	_, err = svc.Create(ctx(), subscription.Input{
		URL:          "https://example.com",
		EventTypes:   []string{"*"},
		RetryBackoff: 0.5,
	})
	if err == nil {
		t.Fatal("expected error for backoff below 1.0")
	}
}

func TestSubscriptionCreateUnreachableEndpoint(t *testing.T) {
	prober := &fakeProber{result: validator.Result{
		Valid:     false,
		Reachable: false,
		Error:     "Endpoint timeout",
	}}
	svc := newService(prober)

	_, err := svc.Create(ctx(), subscription.Input{
		URL:        "https://unreachable.example.com/webhook",
		EventTypes: []string{"*"},
	})
	if err == nil {
		t.Fatal("expected error for unreachable endpoint")
	}

	var vErr *subscription.EndpointValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected EndpointValidationError, got %T", err)
	}
	if !strings.Contains(vErr.Error(), "Endpoint timeout") {
		t.Fatalf("expected probe error in message, got %q", vErr.Error())
	}
}

func TestSubscriptionCreateNilProberSkipsProbe(t *testing.T) {
	svc := newService(nil)

	_, err := svc.Create(ctx(), subscription.Input{
		URL:        "https://example.com/webhook",
		EventTypes: []string{"*"},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestSubscriptionGetUpdate(t *testing.T) {
	svc := newService(okProber())

	sub, _ := svc.Create(ctx(), subscription.Input{
		URL:        "https://example.com/webhook",
		EventTypes: []string{"account.*"},
	})

	got, err := svc.Get(ctx(), sub.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.URL != "https://example.com/webhook" {
		t.Fatalf("got URL %q", got.URL)
	}

	updated, err := svc.Update(ctx(), sub.ID, subscription.Input{
		Description: "Updated description",
		EventTypes:  []string{"account.*", "transaction.completed"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Description != "Updated description" {
		t.Fatalf("expected updated description, got %q", updated.Description)
	}
	if len(updated.EventTypes) != 2 {
		t.Fatalf("expected 2 event types, got %d", len(updated.EventTypes))
	}
}

func TestSubscriptionDeleteIsSoftDisable(t *testing.T) {
	svc := newService(okProber())

	sub, _ := svc.Create(ctx(), subscription.Input{
		URL:        "https://example.com/webhook",
		EventTypes: []string{"*"},
	})

	if err := svc.Delete(ctx(), sub.ID); err != nil {
		t.Fatal(err)
	}

	// Record survives; only routing stops.
	got, err := svc.Get(ctx(), sub.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != subscription.StatusDisabled {
		t.Fatalf("expected disabled, got %q", got.Status)
	}

	// Deleting again is a no-op.
	if err := svc.Delete(ctx(), sub.ID); err != nil {
		t.Fatal(err)
	}
}

func TestSubscriptionDeleteUnknown(t *testing.T) {
	svc := newService(okProber())

	err := svc.Delete(ctx(), id.NewSubscriptionID())
	if !errors.Is(err, dispatch.ErrSubscriptionNotFound) {
		t.Fatalf("expected ErrSubscriptionNotFound, got %v", err)
	}
}

func TestSubscriptionPauseResume(t *testing.T) {
	svc := newService(okProber())

	sub, _ := svc.Create(ctx(), subscription.Input{
		URL:        "https://example.com/webhook",
		EventTypes: []string{"*"},
	})

	if err := svc.Pause(ctx(), sub.ID); err != nil {
		t.Fatal(err)
	}
	got, _ := svc.Get(ctx(), sub.ID)
	if got.Status != subscription.StatusPaused {
		t.Fatalf("expected paused, got %q", got.Status)
	}

	if err := svc.Resume(ctx(), sub.ID); err != nil {
		t.Fatal(err)
	}
	got, _ = svc.Get(ctx(), sub.ID)
	if got.Status != subscription.StatusActive {
		t.Fatalf("expected active, got %q", got.Status)
	}
}

func TestSubscriptionList(t *testing.T) {
	svc := newService(okProber())

	var last *subscription.Subscription
	for i := 0; i < 3; i++ {
		last, _ = svc.Create(ctx(), subscription.Input{
			URL:        "https://example.com/webhook",
			EventTypes: []string{"*"},
		})
	}
	_ = svc.Pause(ctx(), last.ID)

	list, err := svc.List(ctx(), subscription.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3, got %d", len(list))
	}

	active := subscription.StatusActive
	list, err = svc.List(ctx(), subscription.ListOpts{Status: &active})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 active, got %d", len(list))
	}
}

func TestSubscriptionRotateSecret(t *testing.T) {
	svc := newService(okProber())

	sub, _ := svc.Create(ctx(), subscription.Input{
		URL:        "https://example.com/webhook",
		EventTypes: []string{"*"},
	})

	oldSecret := sub.Secret
	newSecret, err := svc.RotateSecret(ctx(), sub.ID)
	if err != nil {
		t.Fatal(err)
	}

	if newSecret == oldSecret {
		t.Fatal("expected different secret after rotation")
	}
	if !strings.HasPrefix(newSecret, "whsec_") {
		t.Fatalf("expected whsec_ prefix, got %q", newSecret)
	}

	got, _ := svc.Get(ctx(), sub.ID)
	if got.Secret != newSecret {
		t.Fatal("secret not persisted after rotation")
	}
}

func TestSubscriptionMatches(t *testing.T) {
	sub := &subscription.Subscription{
		EventTypes: []string{"transaction.*", "account.created"},
	}

	cases := []struct {
		eventType string
		want      bool
	}{
		{"transaction.completed", true},
		{"transaction.failed", true},
		{"account.created", true},
		{"account.closed", false},
		{"payment.completed", false},
	}
	for _, tc := range cases {
		if got := sub.Matches(tc.eventType); got != tc.want {
			t.Errorf("Matches(%q) = %v, want %v", tc.eventType, got, tc.want)
		}
	}
}

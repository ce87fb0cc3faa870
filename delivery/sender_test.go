package delivery_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coreledger/dispatch/delivery"
	"github.com/coreledger/dispatch/event"
	"github.com/coreledger/dispatch/id"
	"github.com/coreledger/dispatch/internal/entity"
	"github.com/coreledger/dispatch/signature"
	"github.com/coreledger/dispatch/subscription"
)

func newTestSubscription(url string) *subscription.Subscription {
	return &subscription.Subscription{
		Entity:        entity.New(),
		ID:            id.NewSubscriptionID(),
		URL:           url,
		Secret:        "whsec_test_secret_1234567890abcdef1234567890abcdef",
		EventTypes:    []string{"transaction.*"},
		Timeout:       5 * time.Second,
		RetryAttempts: 3,
		RetryBackoff:  2.0,
		Status:        subscription.StatusActive,
	}
}

func newTestEvent() *event.Event {
	return &event.Event{
		Entity:        entity.New(),
		ID:            id.NewEventID(),
		Type:          "transaction.created",
		Data:          json.RawMessage(`{"transaction_id":"TXN-301","amount":125.00}`),
		Timestamp:     time.Now().UTC(),
		SourceService: "core-banking",
	}
}

func newTestDelivery(subID, evtID id.ID) *delivery.Delivery {
	return &delivery.Delivery{
		Entity:         entity.New(),
		ID:             id.NewDeliveryID(),
		SubscriptionID: subID,
		EventID:        evtID,
		Status:         delivery.StatusPending,
		AttemptNumber:  1,
	}
}

func mustEnvelope(t *testing.T, evt *event.Event) []byte {
	t.Helper()
	env, err := evt.Envelope()
	if err != nil {
		t.Fatal(err)
	}
	return env
}

func TestSenderHappyPath(t *testing.T) {
	var receivedHeaders http.Header
	var receivedBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedHeaders = r.Header
		receivedBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	sender := delivery.NewSender(nil)
	sub := newTestSubscription(srv.URL)
	evt := newTestEvent()
	del := newTestDelivery(sub.ID, evt.ID)
	env := mustEnvelope(t, evt)

	result := sender.Send(context.Background(), sub, evt, del, env)

	if result.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", result.StatusCode)
	}
	if !result.Success() {
		t.Fatalf("unexpected failure: %s", result.Error)
	}
	if result.Response != `{"ok":true}` {
		t.Fatalf("unexpected response: %s", result.Response)
	}

	// The transmitted body is exactly the envelope bytes.
	if string(receivedBody) != string(env) {
		t.Fatalf("body: got %q, want %q", receivedBody, env)
	}

	// The envelope exposes the event under the wire field names.
	var wire map[string]json.RawMessage
	if err := json.Unmarshal(receivedBody, &wire); err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{"id", "event_type", "data", "timestamp", "source_service"} {
		if _, ok := wire[field]; !ok {
			t.Fatalf("envelope missing field %q", field)
		}
	}

	// Verify standard headers.
	if receivedHeaders.Get("Content-Type") != "application/json" {
		t.Fatal("missing Content-Type")
	}
	if receivedHeaders.Get("User-Agent") != "Dispatch/1.0" {
		t.Fatal("missing User-Agent")
	}
	if receivedHeaders.Get("X-Webhook-Event") != "transaction.created" {
		t.Fatal("missing X-Webhook-Event")
	}
	if receivedHeaders.Get("X-Webhook-ID") != del.ID.String() {
		t.Fatal("missing X-Webhook-ID")
	}
	if receivedHeaders.Get("X-Webhook-Timestamp") == "" {
		t.Fatal("missing X-Webhook-Timestamp")
	}
}

func TestSenderSignsEnvelope(t *testing.T) {
	var receivedSig string
	var receivedBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedSig = r.Header.Get("X-Webhook-Signature")
		receivedBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := delivery.NewSender(signature.NewSigner(signature.SHA256))
	sub := newTestSubscription(srv.URL)
	evt := newTestEvent()
	del := newTestDelivery(sub.ID, evt.ID)

	sender.Send(context.Background(), sub, evt, del, mustEnvelope(t, evt))

	if !strings.HasPrefix(receivedSig, "sha256=") {
		t.Fatalf("expected sha256= prefix, got %q", receivedSig)
	}
	if !signature.Verify(receivedBody, sub.Secret, receivedSig) {
		t.Fatal("signature verification failed")
	}
}

func TestSenderNoSignatureWithoutSecret(t *testing.T) {
	var receivedSig string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedSig = r.Header.Get("X-Webhook-Signature")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := delivery.NewSender(nil)
	sub := newTestSubscription(srv.URL)
	sub.Secret = ""
	evt := newTestEvent()
	del := newTestDelivery(sub.ID, evt.ID)

	sender.Send(context.Background(), sub, evt, del, mustEnvelope(t, evt))

	if receivedSig != "" {
		t.Fatalf("expected no signature header, got %q", receivedSig)
	}
}

func TestSenderCustomHeaders(t *testing.T) {
	var receivedHeaders http.Header

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedHeaders = r.Header
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := delivery.NewSender(nil)
	sub := newTestSubscription(srv.URL)
	sub.Headers = map[string]string{
		"X-Custom-Header": "custom-value",
		"Authorization":   "Bearer token123",
	}
	evt := newTestEvent()
	del := newTestDelivery(sub.ID, evt.ID)

	result := sender.Send(context.Background(), sub, evt, del, mustEnvelope(t, evt))

	if result.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", result.StatusCode)
	}
	if receivedHeaders.Get("X-Custom-Header") != "custom-value" {
		t.Fatal("missing custom header")
	}
	if receivedHeaders.Get("Authorization") != "Bearer token123" {
		t.Fatal("missing Authorization header")
	}
}

func TestSenderTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := delivery.NewSender(nil)
	sub := newTestSubscription(srv.URL)
	sub.Timeout = 50 * time.Millisecond
	evt := newTestEvent()
	del := newTestDelivery(sub.ID, evt.ID)

	result := sender.Send(context.Background(), sub, evt, del, mustEnvelope(t, evt))

	if result.StatusCode != 0 {
		t.Fatalf("expected status 0 on timeout, got %d", result.StatusCode)
	}
	if result.Reason != delivery.ReasonTimeout {
		t.Fatalf("expected timeout reason, got %q", result.Reason)
	}
	if !strings.HasPrefix(result.Error, "Request timeout") {
		t.Fatalf("expected timeout message, got %q", result.Error)
	}
}

func TestSenderConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	url := srv.URL
	srv.Close()

	sender := delivery.NewSender(nil)
	sub := newTestSubscription(url)
	evt := newTestEvent()
	del := newTestDelivery(sub.ID, evt.ID)

	result := sender.Send(context.Background(), sub, evt, del, mustEnvelope(t, evt))

	if result.StatusCode != 0 {
		t.Fatalf("expected status 0 on refused connection, got %d", result.StatusCode)
	}
	if result.Reason != delivery.ReasonConnection {
		t.Fatalf("expected connection_error reason, got %q", result.Reason)
	}
}

func TestSenderBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("try later"))
	}))
	defer srv.Close()

	sender := delivery.NewSender(nil)
	sub := newTestSubscription(srv.URL)
	evt := newTestEvent()
	del := newTestDelivery(sub.ID, evt.ID)

	result := sender.Send(context.Background(), sub, evt, del, mustEnvelope(t, evt))

	if result.StatusCode != 503 {
		t.Fatalf("expected 503, got %d", result.StatusCode)
	}
	if result.Reason != delivery.ReasonBadStatus {
		t.Fatalf("expected bad_status reason, got %q", result.Reason)
	}
	if result.Response != "try later" {
		t.Fatalf("unexpected response: %s", result.Response)
	}
}

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/coreledger/dispatch"
	"github.com/coreledger/dispatch/api"
	"github.com/coreledger/dispatch/store/memory"
)

// testServer creates a Handler backed by a memory-store Manager and returns
// the test server.
func testServer(t *testing.T) *httptest.Server {
	t.Helper()

	m, err := dispatch.New(
		dispatch.WithStore(memory.New()),
		dispatch.WithProber(nil),
	)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	h := api.NewHandler(m, nil)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

// --- Event Types ---

func TestEventTypes_CRUD(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, "POST", srv.URL+"/event-types", map[string]any{
		"name":        "transaction.settled",
		"description": "Fired when a transaction settles",
		"group":       "transaction",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}
	var et map[string]any
	decodeBody(t, resp, &et)
	def, _ := et["definition"].(map[string]any)
	if def == nil || def["name"] != "transaction.settled" {
		t.Fatalf("expected definition.name transaction.settled, got %v", et)
	}

	resp = doJSON(t, "GET", srv.URL+"/event-types/transaction.settled", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "GET", srv.URL+"/event-types", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.StatusCode)
	}
	var list []map[string]any
	decodeBody(t, resp, &list)
	if len(list) != 1 {
		t.Fatalf("expected 1 event type, got %d", len(list))
	}

	// Delete soft-deprecates.
	resp = doJSON(t, "DELETE", srv.URL+"/event-types/transaction.settled", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "GET", srv.URL+"/event-types/transaction.settled", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get after delete: expected 200, got %d", resp.StatusCode)
	}
	var deletedET map[string]any
	decodeBody(t, resp, &deletedET)
	if deletedET["deprecated"] != true {
		t.Fatalf("expected deprecated=true, got %v", deletedET)
	}
}

func TestEventTypes_CreateMissingName(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, "POST", srv.URL+"/event-types", map[string]any{
		"description": "no name",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

// --- Subscriptions ---

func TestSubscriptions_CRUD(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, "POST", srv.URL+"/subscriptions", map[string]any{
		"url":    "https://example.com/hook",
		"events": []string{"transaction.*"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}
	var created map[string]any
	decodeBody(t, resp, &created)

	secret, _ := created["secret"].(string)
	if secret == "" {
		t.Fatalf("expected secret in creation response, got %v", created)
	}
	subID, _ := created["id"].(string)
	if subID == "" {
		t.Fatalf("expected subscription ID, got %v", created)
	}

	// The secret is returned once; reads never serialize it.
	resp = doJSON(t, "GET", srv.URL+"/subscriptions/"+subID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", resp.StatusCode)
	}
	var fetched map[string]any
	decodeBody(t, resp, &fetched)
	if _, leaked := fetched["secret"]; leaked {
		t.Fatalf("secret leaked on read: %v", fetched)
	}

	resp = doJSON(t, "PUT", srv.URL+"/subscriptions/"+subID, map[string]any{
		"url":         "https://example.com/hook",
		"events":      []string{"transaction.*", "payment.*"},
		"description": "updated",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update: expected 200, got %d", resp.StatusCode)
	}
	var updated map[string]any
	decodeBody(t, resp, &updated)
	if updated["description"] != "updated" {
		t.Fatalf("expected updated description, got %v", updated)
	}

	resp = doJSON(t, "GET", srv.URL+"/subscriptions", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.StatusCode)
	}
	var subs []map[string]any
	decodeBody(t, resp, &subs)
	if len(subs) != 1 {
		t.Fatalf("expected 1 subscription, got %d", len(subs))
	}

	// Delete is a soft-disable; the record survives for delivery history.
	resp = doJSON(t, "DELETE", srv.URL+"/subscriptions/"+subID, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "GET", srv.URL+"/subscriptions/"+subID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get after delete: expected 200, got %d", resp.StatusCode)
	}
	var disabled map[string]any
	decodeBody(t, resp, &disabled)
	if disabled["status"] != "disabled" {
		t.Fatalf("expected disabled status, got %v", disabled["status"])
	}
}

func TestSubscriptions_CreateValidation(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, "POST", srv.URL+"/subscriptions", map[string]any{
		"events": []string{"transaction.*"},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing url: expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "POST", srv.URL+"/subscriptions", map[string]any{
		"url": "https://example.com/hook",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing events: expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSubscriptions_PauseResume(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, "POST", srv.URL+"/subscriptions", map[string]any{
		"url":    "https://example.com/hook",
		"events": []string{"transaction.*"},
	})
	var created map[string]any
	decodeBody(t, resp, &created)
	subID := created["id"].(string)

	resp = doJSON(t, "PATCH", srv.URL+"/subscriptions/"+subID+"/pause", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("pause: expected 204, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "GET", srv.URL+"/subscriptions/"+subID, nil)
	var paused map[string]any
	decodeBody(t, resp, &paused)
	if paused["status"] != "paused" {
		t.Fatalf("expected paused, got %v", paused["status"])
	}

	resp = doJSON(t, "PATCH", srv.URL+"/subscriptions/"+subID+"/resume", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("resume: expected 204, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "GET", srv.URL+"/subscriptions/"+subID, nil)
	var resumed map[string]any
	decodeBody(t, resp, &resumed)
	if resumed["status"] != "active" {
		t.Fatalf("expected active, got %v", resumed["status"])
	}
}

func TestSubscriptions_RotateSecret(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, "POST", srv.URL+"/subscriptions", map[string]any{
		"url":    "https://example.com/hook",
		"events": []string{"transaction.*"},
	})
	var created map[string]any
	decodeBody(t, resp, &created)
	subID := created["id"].(string)
	oldSecret := created["secret"].(string)

	resp = doJSON(t, "POST", srv.URL+"/subscriptions/"+subID+"/rotate-secret", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rotate: expected 200, got %d", resp.StatusCode)
	}
	var rotated map[string]string
	decodeBody(t, resp, &rotated)
	if rotated["secret"] == "" || rotated["secret"] == oldSecret {
		t.Fatalf("expected a fresh secret")
	}
}

func TestSubscriptions_Stats(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, "POST", srv.URL+"/subscriptions", map[string]any{
		"url":    "https://example.com/hook",
		"events": []string{"transaction.*"},
	})
	var created map[string]any
	decodeBody(t, resp, &created)
	subID := created["id"].(string)

	resp = doJSON(t, "GET", srv.URL+"/subscriptions/"+subID+"/stats", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats: expected 200, got %d", resp.StatusCode)
	}
	var stats map[string]any
	decodeBody(t, resp, &stats)
	if stats["delivery_count"] != float64(0) || stats["success_rate"] != float64(1) {
		t.Fatalf("expected pristine stats, got %v", stats)
	}
}

func TestSubscription_InvalidID(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, "GET", srv.URL+"/subscriptions/not-a-typeid", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

// --- Events ---

func TestEvents_TriggerAndGet(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, "POST", srv.URL+"/event-types", map[string]any{
		"name":  "transaction.settled",
		"group": "transaction",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register type: expected 201, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "POST", srv.URL+"/events", map[string]any{
		"type":           "transaction.settled",
		"data":           map[string]any{"amount": 100},
		"source_service": "ledger",
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("trigger: expected 202, got %d", resp.StatusCode)
	}
	var evt map[string]any
	decodeBody(t, resp, &evt)
	evtID, _ := evt["id"].(string)
	if evtID == "" {
		t.Fatalf("expected event ID, got %v", evt)
	}

	resp = doJSON(t, "GET", srv.URL+"/events/"+evtID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "GET", srv.URL+"/events?type=transaction.settled", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.StatusCode)
	}
	var events []map[string]any
	decodeBody(t, resp, &events)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
}

func TestEvents_TriggerUnknownType(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, "POST", srv.URL+"/events", map[string]any{
		"type": "never.registered",
		"data": map[string]any{},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestEvents_TriggerSchemaViolation(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, "POST", srv.URL+"/event-types", map[string]any{
		"name":  "payment.settled",
		"group": "payment",
		"schema": map[string]any{
			"type":       "object",
			"required":   []string{"amount"},
			"properties": map[string]any{"amount": map[string]any{"type": "number"}},
		},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register type: expected 201, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "POST", srv.URL+"/events", map[string]any{
		"type": "payment.settled",
		"data": map[string]any{"amount": "not-a-number"},
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

// --- Deliveries ---

func TestDeliveries_ListEmpty(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, "POST", srv.URL+"/subscriptions", map[string]any{
		"url":    "https://example.com/hook",
		"events": []string{"transaction.*"},
	})
	var created map[string]any
	decodeBody(t, resp, &created)
	subID := created["id"].(string)

	resp = doJSON(t, "GET", srv.URL+"/subscriptions/"+subID+"/deliveries", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var deliveries []map[string]any
	decodeBody(t, resp, &deliveries)
	if len(deliveries) != 0 {
		t.Fatalf("expected no deliveries, got %d", len(deliveries))
	}
}

// --- DLQ ---

func TestDLQ_ListEmpty(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, "GET", srv.URL+"/dlq", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var entries []map[string]any
	decodeBody(t, resp, &entries)
	if len(entries) != 0 {
		t.Fatalf("expected empty DLQ, got %d entries", len(entries))
	}
}

func TestDLQ_ReplayNotFound(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, "POST", srv.URL+"/dlq/dlq_00000000000000000000000000/replay", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestDLQ_BulkReplayBadBody(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, "POST", srv.URL+"/dlq/replay", map[string]any{
		"from": "yesterday",
		"to":   "today",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

// --- Stats ---

func TestStats(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, "GET", srv.URL+"/stats", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var stats map[string]any
	decodeBody(t, resp, &stats)
	if stats["pending_retries"] != float64(0) || stats["dlq_size"] != float64(0) {
		t.Fatalf("expected zero stats, got %v", stats)
	}
}

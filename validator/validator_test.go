package validator_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coreledger/dispatch/signature"
	"github.com/coreledger/dispatch/validator"
)

func TestValidateEndpointHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	v := validator.New(2 * time.Second)
	res := v.ValidateEndpoint(context.Background(), srv.URL, "")

	if !res.Valid || !res.Reachable || !res.SupportsPost {
		t.Errorf("expected valid result, got %+v", res)
	}
	if res.SupportsSignatures {
		t.Error("SupportsSignatures should be false without a secret")
	}
	if res.Error != "" {
		t.Errorf("unexpected error: %q", res.Error)
	}
}

func TestValidateEndpointSignedProbe(t *testing.T) {
	secret := "whsec_probe_secret"
	var gotSig string
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Webhook-Signature")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	v := validator.New(2 * time.Second)
	res := v.ValidateEndpoint(context.Background(), srv.URL, secret)

	if !res.SupportsSignatures {
		t.Errorf("expected SupportsSignatures=true, got %+v", res)
	}
	if !signature.Verify(gotBody, secret, gotSig) {
		t.Error("probe signature does not verify against probe body")
	}
}

func TestValidateEndpointClientErrorStillSupportsPost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	v := validator.New(2 * time.Second)
	res := v.ValidateEndpoint(context.Background(), srv.URL, "whsec_x")

	if !res.Valid || !res.SupportsPost {
		t.Errorf("status 401 should still count as supporting POST, got %+v", res)
	}
	if res.SupportsSignatures {
		t.Error("non-2xx must not set SupportsSignatures")
	}
}

func TestValidateEndpointServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	v := validator.New(2 * time.Second)
	res := v.ValidateEndpoint(context.Background(), srv.URL, "")

	if res.Valid {
		t.Errorf("500 response should not be valid, got %+v", res)
	}
	if !res.Reachable {
		t.Error("a responding endpoint is reachable even when it errors")
	}
}

func TestValidateEndpointConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close() // now nothing listens there

	v := validator.New(1 * time.Second)
	res := v.ValidateEndpoint(context.Background(), url, "")

	if res.Valid || res.Reachable {
		t.Errorf("expected unreachable result, got %+v", res)
	}
	if res.Error == "" {
		t.Error("expected error message for connection failure")
	}
}

func TestValidateEndpointTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	v := validator.New(50 * time.Millisecond)
	res := v.ValidateEndpoint(context.Background(), srv.URL, "")

	if res.Reachable {
		t.Errorf("expected timeout to mark endpoint unreachable, got %+v", res)
	}
	if res.Error != "Endpoint timeout" {
		t.Errorf("expected error 'Endpoint timeout', got %q", res.Error)
	}
}

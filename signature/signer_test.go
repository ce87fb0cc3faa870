package signature_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/coreledger/dispatch/signature"
)

func TestSignKnownVector(t *testing.T) {
	payload := []byte(`{"a":1}`)
	secret := "s3cret"

	got := signature.Sign(payload, secret, signature.SHA256)

	// Compute expected HMAC-SHA256 independently.
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	if got != expected {
		t.Errorf("Sign() = %q, want %q", got, expected)
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	payload := []byte(`{"account_id":"acc_01h2x","balance":990}`)
	secret := "whsec_roundtripsecret"

	for _, algo := range []signature.Algorithm{signature.SHA256, signature.SHA512, signature.SHA1} {
		sig := signature.Sign(payload, secret, algo)
		if !signature.Verify(payload, secret, sig) {
			t.Errorf("Verify() returned false for valid %s signature", algo)
		}
	}
}

func TestVerifyTamperedPayload(t *testing.T) {
	payload := []byte(`{"original":true}`)
	secret := "whsec_tampersecret"

	sig := signature.Sign(payload, secret, signature.SHA256)

	tampered := []byte(`{"original":false}`)
	if signature.Verify(tampered, secret, sig) {
		t.Error("Verify() returned true for tampered payload")
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	payload := []byte(`{"data":"value"}`)

	sig := signature.Sign(payload, "whsec_correct", signature.SHA256)

	if signature.Verify(payload, "whsec_wrong", sig) {
		t.Error("Verify() returned true for wrong secret")
	}
}

func TestVerifyMalformedSignature(t *testing.T) {
	payload := []byte(`{"data":"value"}`)
	secret := "whsec_malformed"

	for _, sig := range []string{
		"",
		"sha256",
		"nonsense=deadbeef",
		"sha256=zzzz",
		"=deadbeef",
	} {
		if signature.Verify(payload, secret, sig) {
			t.Errorf("Verify() returned true for malformed signature %q", sig)
		}
	}
}

func TestSignerRejectsForeignAlgorithmPrefix(t *testing.T) {
	payload := []byte(`{"data":"value"}`)
	secret := "whsec_prefix"

	signer := signature.NewSigner(signature.SHA256)
	sig := signature.Sign(payload, secret, signature.SHA512)

	if signer.Verify(payload, secret, sig) {
		t.Error("Signer.Verify() accepted a signature from a different algorithm")
	}
}

func TestSignatureFormat(t *testing.T) {
	sig := signature.Sign([]byte("test"), "secret", signature.SHA256)

	// sha256= prefix (7) + 64 hex chars (SHA256 = 32 bytes = 64 hex)
	if len(sig) != 71 {
		t.Errorf("expected signature length 71, got %d for %q", len(sig), sig)
	}
	if sig[:7] != "sha256=" {
		t.Errorf("signature should start with 'sha256=', got %q", sig)
	}
}

func TestUnknownAlgorithmFallsBackToSHA256(t *testing.T) {
	payload := []byte("payload")
	secret := "secret"

	got := signature.Sign(payload, secret, signature.Algorithm("md5"))
	want := signature.Sign(payload, secret, signature.SHA256)

	if got != want {
		t.Errorf("Sign() with unknown algorithm = %q, want SHA-256 fallback %q", got, want)
	}
}

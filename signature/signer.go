// Package signature provides HMAC webhook signing and verification.
package signature

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // G505: sha1 is offered only for legacy receivers.
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
)

// Algorithm selects the HMAC hash used to sign webhook payloads.
type Algorithm string

// Supported signing algorithms. SHA-256 is the default; SHA-1 exists only
// for receivers that cannot verify anything newer.
const (
	SHA256 Algorithm = "sha256"
	SHA512 Algorithm = "sha512"
	SHA1   Algorithm = "sha1"
)

// Valid reports whether the algorithm is one of the supported values.
func (a Algorithm) Valid() bool {
	switch a {
	case SHA256, SHA512, SHA1:
		return true
	default:
		return false
	}
}

func (a Algorithm) newHash() func() hash.Hash {
	switch a {
	case SHA512:
		return sha512.New
	case SHA1:
		return sha1.New
	default:
		return sha256.New
	}
}

// Signer computes HMAC signatures for webhook payloads.
type Signer struct {
	algorithm Algorithm
}

// NewSigner returns a Signer using the given algorithm. An unknown algorithm
// falls back to SHA-256.
func NewSigner(algorithm Algorithm) *Signer {
	if !algorithm.Valid() {
		algorithm = SHA256
	}
	return &Signer{algorithm: algorithm}
}

// Sign generates the HMAC signature for payload using the signer's algorithm.
func (s *Signer) Sign(payload []byte, secret string) string {
	return Sign(payload, secret, s.algorithm)
}

// Sign generates the HMAC signature for the given payload. The payload must
// be the exact byte sequence transmitted to the receiver. Returns a header
// value in the format "<algorithm>=<hexdigest>".
func Sign(payload []byte, secret string, algorithm Algorithm) string {
	if !algorithm.Valid() {
		algorithm = SHA256
	}
	mac := hmac.New(algorithm.newHash(), []byte(secret))
	mac.Write(payload)
	return string(algorithm) + "=" + hex.EncodeToString(mac.Sum(nil))
}

package signature

import (
	"crypto/hmac"
	"strings"
)

// Verify checks whether sig matches the expected HMAC signature for the
// payload and secret. The algorithm is taken from the signature's own
// "<algorithm>=" prefix, so a receiver needs no out-of-band configuration.
//
// Comparison is constant-time. A malformed or unsupported signature string
// returns false rather than an error.
func Verify(payload []byte, secret, sig string) bool {
	algo, _, ok := strings.Cut(sig, "=")
	if !ok {
		return false
	}
	if !Algorithm(algo).Valid() {
		return false
	}

	expected := Sign(payload, secret, Algorithm(algo))
	return hmac.Equal([]byte(expected), []byte(sig))
}

// Verify checks sig against the payload and secret. Unlike the package-level
// function it does not trust the signature's prefix: the algorithm must match
// the signer's own.
func (s *Signer) Verify(payload []byte, secret, sig string) bool {
	if !strings.HasPrefix(sig, string(s.algorithm)+"=") {
		return false
	}
	return Verify(payload, secret, sig)
}

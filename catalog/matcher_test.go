package catalog_test

import (
	"testing"

	"github.com/coreledger/dispatch/catalog"
)

func TestMatch(t *testing.T) {
	cases := []struct {
		pattern   string
		eventType string
		want      bool
	}{
		{"payment.completed", "payment.completed", true},
		{"payment.completed", "payment.failed", false},
		{"payment.*", "payment.completed", true},
		{"payment.*", "loan.approved", false},
		{"*", "account.balance_low", true},
		{"*.created", "account.created", true},
		{"*.created", "account.closed", false},
		{"account.*", "account.balance_low", true},
		{"account", "account.created", false},
		{"account.balance_low.extra", "account.balance_low", false},
	}

	for _, tc := range cases {
		if got := catalog.Match(tc.pattern, tc.eventType); got != tc.want {
			t.Errorf("Match(%q, %q) = %v, want %v", tc.pattern, tc.eventType, got, tc.want)
		}
	}
}

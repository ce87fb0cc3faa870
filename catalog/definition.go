// Package catalog maintains the closed registry of webhook event types.
//
// Event types are grouped by banking domain (customer, account, transaction,
// payment, loan, system). Subscriptions may only reference registered types,
// and triggered events are rejected unless their type exists in the catalog.
package catalog

import "encoding/json"

// Group is the banking domain an event type belongs to.
type Group string

// The closed set of event type groups.
const (
	GroupCustomer    Group = "customer"
	GroupAccount     Group = "account"
	GroupTransaction Group = "transaction"
	GroupPayment     Group = "payment"
	GroupLoan        Group = "loan"
	GroupSystem      Group = "system"
)

// Groups lists every valid event type group.
func Groups() []Group {
	return []Group{
		GroupCustomer,
		GroupAccount,
		GroupTransaction,
		GroupPayment,
		GroupLoan,
		GroupSystem,
	}
}

// Valid reports whether g is one of the known groups.
func (g Group) Valid() bool {
	switch g {
	case GroupCustomer, GroupAccount, GroupTransaction, GroupPayment, GroupLoan, GroupSystem:
		return true
	default:
		return false
	}
}

// Definition is the canonical description of a webhook event type.
// Definitions are persisted so that services, operators, and the admin API
// share one source of truth for what may be published.
type Definition struct {
	// Name is the dot-separated event type name.
	// Convention: "<resource>.<action>" — e.g. "payment.completed".
	Name string `json:"name"`

	// Description explains when this event fires.
	Description string `json:"description"`

	// Group is the banking domain this type belongs to.
	Group Group `json:"group"`

	// Schema is an optional JSON Schema (draft-07) describing the payload
	// shape. When set, Manager.TriggerEvent validates event data against it.
	Schema json.RawMessage `json:"schema,omitempty"`

	// Version is the API version of this event type.
	// Convention: date-based, e.g. "2025-01-01".
	Version string `json:"version"`

	// Example is an optional example payload for documentation and testing.
	Example json.RawMessage `json:"example,omitempty"`
}

// Package event defines the immutable webhook event fact and its wire envelope.
package event

import (
	"encoding/json"
	"time"

	"github.com/coreledger/dispatch/id"
	"github.com/coreledger/dispatch/internal/entity"
)

// Event is an immutable fact describing something that happened in the bank.
// Once constructed and published it is never mutated; it exists durably only
// in the event bus log until consumed, and in the deliveries derived from it.
type Event struct {
	entity.Entity

	// ID is the unique TypeID for this event.
	ID id.ID `json:"id"`

	// Type is the dot-separated event type name (e.g. "payment.completed").
	// Must belong to the registered catalog of event types.
	Type string `json:"type"`

	// Data is the JSON-serializable event payload.
	Data json.RawMessage `json:"data"`

	// Timestamp is when the business event occurred.
	Timestamp time.Time `json:"timestamp"`

	// SourceService names the collaborator that produced the event.
	SourceService string `json:"source_service"`

	// CorrelationID optionally ties the event into a causal chain for tracing.
	CorrelationID string `json:"correlation_id,omitempty"`

	// Metadata holds producer-defined key-value pairs.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Envelope is the canonical wire representation POSTed to subscribers.
type Envelope struct {
	ID            string            `json:"id"`
	EventType     string            `json:"event_type"`
	Data          json.RawMessage   `json:"data"`
	Timestamp     time.Time         `json:"timestamp"`
	SourceService string            `json:"source_service"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Metadata      map[string]string `json:"metadata"`
}

// Envelope returns the canonical JSON body for this event. The returned byte
// sequence is what gets signed and what gets transmitted; callers serialize
// once per delivery chain and reuse the bytes for both.
func (e *Event) Envelope() ([]byte, error) {
	metadata := e.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	return json.Marshal(Envelope{
		ID:            e.ID.String(),
		EventType:     e.Type,
		Data:          e.Data,
		Timestamp:     e.Timestamp.UTC(),
		SourceService: e.SourceService,
		CorrelationID: e.CorrelationID,
		Metadata:      metadata,
	})
}

// ListOpts configures filtering and pagination for event listing.
type ListOpts struct {
	Offset int
	Limit  int
	Type   string
	From   *time.Time
	To     *time.Time
}

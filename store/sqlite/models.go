package sqlite

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/coreledger/dispatch/catalog"
	"github.com/coreledger/dispatch/delivery"
	"github.com/coreledger/dispatch/dlq"
	"github.com/coreledger/dispatch/event"
	"github.com/coreledger/dispatch/id"
	"github.com/coreledger/dispatch/internal/entity"
	"github.com/coreledger/dispatch/subscription"
)

// SQLite has no native JSON or array column types, so structured fields are
// stored as JSON-encoded TEXT.

// --- Event Type models ---

type eventTypeModel struct {
	grove.BaseModel `grove:"table:dispatch_event_types"`

	ID           string     `grove:"id,pk"`
	Name         string     `grove:"name,unique"`
	Description  string     `grove:"description"`
	GroupName    string     `grove:"group_name"`
	Schema       string     `grove:"schema"`
	Version      string     `grove:"version"`
	Example      string     `grove:"example"`
	IsDeprecated bool       `grove:"is_deprecated"`
	DeprecatedAt *time.Time `grove:"deprecated_at"`
	Metadata     string     `grove:"metadata"`
	CreatedAt    time.Time  `grove:"created_at"`
	UpdatedAt    time.Time  `grove:"updated_at"`
}

func toEventTypeModel(et *catalog.EventType) *eventTypeModel {
	metadata, _ := json.Marshal(et.Metadata) //nolint:errcheck // best-effort

	return &eventTypeModel{
		ID:           et.ID.String(),
		Name:         et.Definition.Name,
		Description:  et.Definition.Description,
		GroupName:    string(et.Definition.Group),
		Schema:       string(et.Definition.Schema),
		Version:      et.Definition.Version,
		Example:      string(et.Definition.Example),
		IsDeprecated: et.IsDeprecated,
		DeprecatedAt: et.DeprecatedAt,
		Metadata:     string(metadata),
		CreatedAt:    et.CreatedAt,
		UpdatedAt:    et.UpdatedAt,
	}
}

func fromEventTypeModel(m *eventTypeModel) (*catalog.EventType, error) {
	etID, err := id.ParseEventTypeID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse event type ID %q: %w", m.ID, err)
	}

	var schema json.RawMessage
	if m.Schema != "" {
		schema = json.RawMessage(m.Schema)
	}
	var example json.RawMessage
	if m.Example != "" {
		example = json.RawMessage(m.Example)
	}
	var metadata map[string]string
	if m.Metadata != "" {
		_ = json.Unmarshal([]byte(m.Metadata), &metadata) //nolint:errcheck // best-effort
	}

	return &catalog.EventType{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID: etID,
		Definition: catalog.Definition{
			Name:        m.Name,
			Description: m.Description,
			Group:       catalog.Group(m.GroupName),
			Schema:      schema,
			Version:     m.Version,
			Example:     example,
		},
		IsDeprecated: m.IsDeprecated,
		DeprecatedAt: m.DeprecatedAt,
		Metadata:     metadata,
	}, nil
}

// --- Subscription models ---

type subscriptionModel struct {
	grove.BaseModel `grove:"table:dispatch_subscriptions"`

	ID             string     `grove:"id,pk"`
	URL            string     `grove:"url"`
	Description    string     `grove:"description"`
	Secret         string     `grove:"secret"`
	EventTypes     string     `grove:"event_types"` // JSON array
	Headers        string     `grove:"headers"`     // JSON object
	TimeoutSec     float64    `grove:"timeout_seconds"`
	RetryAttempts  int        `grove:"retry_attempts"`
	RetryBackoff   float64    `grove:"retry_backoff"`
	RateLimit      int        `grove:"rate_limit"`
	Status         string     `grove:"status"`
	DeliveryCount  int64      `grove:"delivery_count"`
	FailureCount   int64      `grove:"failure_count"`
	LastDeliveryAt *time.Time `grove:"last_delivery_at"`
	Metadata       string     `grove:"metadata"` // JSON object
	CreatedAt      time.Time  `grove:"created_at"`
	UpdatedAt      time.Time  `grove:"updated_at"`
}

func toSubscriptionModel(sub *subscription.Subscription) *subscriptionModel {
	eventTypes, _ := json.Marshal(sub.EventTypes) //nolint:errcheck // best-effort
	headers, _ := json.Marshal(sub.Headers)       //nolint:errcheck // best-effort
	metadata, _ := json.Marshal(sub.Metadata)     //nolint:errcheck // best-effort

	return &subscriptionModel{
		ID:             sub.ID.String(),
		URL:            sub.URL,
		Description:    sub.Description,
		Secret:         sub.Secret,
		EventTypes:     string(eventTypes),
		Headers:        string(headers),
		TimeoutSec:     sub.Timeout.Seconds(),
		RetryAttempts:  sub.RetryAttempts,
		RetryBackoff:   sub.RetryBackoff,
		RateLimit:      sub.RateLimit,
		Status:         string(sub.Status),
		DeliveryCount:  sub.DeliveryCount,
		FailureCount:   sub.FailureCount,
		LastDeliveryAt: sub.LastDeliveryAt,
		Metadata:       string(metadata),
		CreatedAt:      sub.CreatedAt,
		UpdatedAt:      sub.UpdatedAt,
	}
}

func fromSubscriptionModel(m *subscriptionModel) (*subscription.Subscription, error) {
	subID, err := id.ParseSubscriptionID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse subscription ID %q: %w", m.ID, err)
	}

	var eventTypes []string
	if m.EventTypes != "" {
		_ = json.Unmarshal([]byte(m.EventTypes), &eventTypes) //nolint:errcheck // best-effort
	}
	var headers map[string]string
	if m.Headers != "" {
		_ = json.Unmarshal([]byte(m.Headers), &headers) //nolint:errcheck // best-effort
	}
	var metadata map[string]string
	if m.Metadata != "" {
		_ = json.Unmarshal([]byte(m.Metadata), &metadata) //nolint:errcheck // best-effort
	}

	return &subscription.Subscription{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             subID,
		URL:            m.URL,
		Description:    m.Description,
		Secret:         m.Secret,
		EventTypes:     eventTypes,
		Headers:        headers,
		Timeout:        time.Duration(m.TimeoutSec * float64(time.Second)),
		RetryAttempts:  m.RetryAttempts,
		RetryBackoff:   m.RetryBackoff,
		RateLimit:      m.RateLimit,
		Status:         subscription.Status(m.Status),
		DeliveryCount:  m.DeliveryCount,
		FailureCount:   m.FailureCount,
		LastDeliveryAt: m.LastDeliveryAt,
		Metadata:       metadata,
	}, nil
}

// --- Event models ---

type eventModel struct {
	grove.BaseModel `grove:"table:dispatch_events"`

	ID            string    `grove:"id,pk"`
	Type          string    `grove:"type"`
	Data          string    `grove:"data"` // JSON
	OccurredAt    time.Time `grove:"occurred_at"`
	SourceService string    `grove:"source_service"`
	CorrelationID string    `grove:"correlation_id"`
	Metadata      string    `grove:"metadata"` // JSON object
	CreatedAt     time.Time `grove:"created_at"`
	UpdatedAt     time.Time `grove:"updated_at"`
}

func toEventModel(evt *event.Event) *eventModel {
	metadata, _ := json.Marshal(evt.Metadata) //nolint:errcheck // best-effort

	return &eventModel{
		ID:            evt.ID.String(),
		Type:          evt.Type,
		Data:          string(evt.Data),
		OccurredAt:    evt.Timestamp,
		SourceService: evt.SourceService,
		CorrelationID: evt.CorrelationID,
		Metadata:      string(metadata),
		CreatedAt:     evt.CreatedAt,
		UpdatedAt:     evt.UpdatedAt,
	}
}

func fromEventModel(m *eventModel) (*event.Event, error) {
	evtID, err := id.ParseEventID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse event ID %q: %w", m.ID, err)
	}

	var data json.RawMessage
	if m.Data != "" {
		data = json.RawMessage(m.Data)
	}
	var metadata map[string]string
	if m.Metadata != "" {
		_ = json.Unmarshal([]byte(m.Metadata), &metadata) //nolint:errcheck // best-effort
	}

	return &event.Event{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:            evtID,
		Type:          m.Type,
		Data:          data,
		Timestamp:     m.OccurredAt,
		SourceService: m.SourceService,
		CorrelationID: m.CorrelationID,
		Metadata:      metadata,
	}, nil
}

// --- Delivery models ---

type deliveryModel struct {
	grove.BaseModel `grove:"table:dispatch_deliveries"`

	ID             string     `grove:"id,pk"`
	SubscriptionID string     `grove:"subscription_id"`
	EventID        string     `grove:"event_id"`
	Status         string     `grove:"status"`
	AttemptNumber  int        `grove:"attempt_number"`
	URL            string     `grove:"url"`
	RequestHeaders string     `grove:"request_headers"` // JSON object
	RequestBody    []byte     `grove:"request_body"`
	ResponseStatus int        `grove:"response_status"`
	ResponseBody   string     `grove:"response_body"`
	DurationMs     int        `grove:"duration_ms"`
	Error          string     `grove:"error"`
	Reason         string     `grove:"reason"`
	NextRetryAt    *time.Time `grove:"next_retry_at"`
	DeliveredAt    *time.Time `grove:"delivered_at"`
	CreatedAt      time.Time  `grove:"created_at"`
	UpdatedAt      time.Time  `grove:"updated_at"`
}

func toDeliveryModel(d *delivery.Delivery) *deliveryModel {
	headers, _ := json.Marshal(d.RequestHeaders) //nolint:errcheck // best-effort

	return &deliveryModel{
		ID:             d.ID.String(),
		SubscriptionID: d.SubscriptionID.String(),
		EventID:        d.EventID.String(),
		Status:         string(d.Status),
		AttemptNumber:  d.AttemptNumber,
		URL:            d.URL,
		RequestHeaders: string(headers),
		RequestBody:    d.RequestBody,
		ResponseStatus: d.ResponseStatus,
		ResponseBody:   d.ResponseBody,
		DurationMs:     d.DurationMs,
		Error:          d.Error,
		Reason:         string(d.Reason),
		NextRetryAt:    d.NextRetryAt,
		DeliveredAt:    d.DeliveredAt,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

func fromDeliveryModel(m *deliveryModel) (*delivery.Delivery, error) {
	delID, err := id.ParseDeliveryID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse delivery ID %q: %w", m.ID, err)
	}
	subID, err := id.ParseSubscriptionID(m.SubscriptionID)
	if err != nil {
		return nil, fmt.Errorf("parse subscription ID %q: %w", m.SubscriptionID, err)
	}
	evtID, err := id.ParseEventID(m.EventID)
	if err != nil {
		return nil, fmt.Errorf("parse event ID %q: %w", m.EventID, err)
	}

	var headers map[string]string
	if m.RequestHeaders != "" {
		_ = json.Unmarshal([]byte(m.RequestHeaders), &headers) //nolint:errcheck // best-effort
	}

	return &delivery.Delivery{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             delID,
		SubscriptionID: subID,
		EventID:        evtID,
		Status:         delivery.Status(m.Status),
		AttemptNumber:  m.AttemptNumber,
		URL:            m.URL,
		RequestHeaders: headers,
		RequestBody:    m.RequestBody,
		ResponseStatus: m.ResponseStatus,
		ResponseBody:   m.ResponseBody,
		DurationMs:     m.DurationMs,
		Error:          m.Error,
		Reason:         delivery.FailureReason(m.Reason),
		NextRetryAt:    m.NextRetryAt,
		DeliveredAt:    m.DeliveredAt,
	}, nil
}

// --- Retry models ---

type retryModel struct {
	grove.BaseModel `grove:"table:dispatch_retries"`

	DeliveryID     string    `grove:"delivery_id,pk"`
	SubscriptionID string    `grove:"subscription_id"`
	EventID        string    `grove:"event_id"`
	AttemptNumber  int       `grove:"attempt_number"`
	FireAt         time.Time `grove:"fire_at"`
}

func toRetryModel(r *delivery.PendingRetry) *retryModel {
	return &retryModel{
		DeliveryID:     r.DeliveryID.String(),
		SubscriptionID: r.SubscriptionID.String(),
		EventID:        r.EventID.String(),
		AttemptNumber:  r.AttemptNumber,
		FireAt:         r.FireAt,
	}
}

func fromRetryModel(m *retryModel) (*delivery.PendingRetry, error) {
	delID, err := id.ParseDeliveryID(m.DeliveryID)
	if err != nil {
		return nil, fmt.Errorf("parse delivery ID %q: %w", m.DeliveryID, err)
	}
	subID, err := id.ParseSubscriptionID(m.SubscriptionID)
	if err != nil {
		return nil, fmt.Errorf("parse subscription ID %q: %w", m.SubscriptionID, err)
	}
	evtID, err := id.ParseEventID(m.EventID)
	if err != nil {
		return nil, fmt.Errorf("parse event ID %q: %w", m.EventID, err)
	}
	return &delivery.PendingRetry{
		DeliveryID:     delID,
		SubscriptionID: subID,
		EventID:        evtID,
		AttemptNumber:  m.AttemptNumber,
		FireAt:         m.FireAt,
	}, nil
}

// --- DLQ models ---

type dlqEntryModel struct {
	grove.BaseModel `grove:"table:dispatch_dlq"`

	ID             string     `grove:"id,pk"`
	DeliveryID     string     `grove:"delivery_id"`
	EventID        string     `grove:"event_id"`
	SubscriptionID string     `grove:"subscription_id"`
	EventType      string     `grove:"event_type"`
	URL            string     `grove:"url"`
	Payload        string     `grove:"payload"` // JSON
	Error          string     `grove:"error"`
	AttemptCount   int        `grove:"attempt_count"`
	LastStatusCode int        `grove:"last_status_code"`
	ReplayedAt     *time.Time `grove:"replayed_at"`
	FailedAt       time.Time  `grove:"failed_at"`
	CreatedAt      time.Time  `grove:"created_at"`
	UpdatedAt      time.Time  `grove:"updated_at"`
}

func toDLQEntryModel(e *dlq.Entry) *dlqEntryModel {
	return &dlqEntryModel{
		ID:             e.ID.String(),
		DeliveryID:     e.DeliveryID.String(),
		EventID:        e.EventID.String(),
		SubscriptionID: e.SubscriptionID.String(),
		EventType:      e.EventType,
		URL:            e.URL,
		Payload:        string(e.Payload),
		Error:          e.Error,
		AttemptCount:   e.AttemptCount,
		LastStatusCode: e.LastStatusCode,
		ReplayedAt:     e.ReplayedAt,
		FailedAt:       e.FailedAt,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func fromDLQEntryModel(m *dlqEntryModel) (*dlq.Entry, error) {
	dlqID, err := id.ParseDLQID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse DLQ ID %q: %w", m.ID, err)
	}
	delID, err := id.ParseDeliveryID(m.DeliveryID)
	if err != nil {
		return nil, fmt.Errorf("parse delivery ID %q: %w", m.DeliveryID, err)
	}
	evtID, err := id.ParseEventID(m.EventID)
	if err != nil {
		return nil, fmt.Errorf("parse event ID %q: %w", m.EventID, err)
	}
	subID, err := id.ParseSubscriptionID(m.SubscriptionID)
	if err != nil {
		return nil, fmt.Errorf("parse subscription ID %q: %w", m.SubscriptionID, err)
	}

	var payload json.RawMessage
	if m.Payload != "" {
		payload = json.RawMessage(m.Payload)
	}

	return &dlq.Entry{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             dlqID,
		DeliveryID:     delID,
		EventID:        evtID,
		SubscriptionID: subID,
		EventType:      m.EventType,
		URL:            m.URL,
		Payload:        payload,
		Error:          m.Error,
		AttemptCount:   m.AttemptCount,
		LastStatusCode: m.LastStatusCode,
		ReplayedAt:     m.ReplayedAt,
		FailedAt:       m.FailedAt,
	}, nil
}

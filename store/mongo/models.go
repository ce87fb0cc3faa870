package mongo

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

// --- Event Type models ---

type eventTypeModel struct {
	grove.BaseModel `grove:"table:dispatch_event_types"`

	ID           string            `grove:"id,pk"          bson:"_id"`
	Name         string            `grove:"name,unique"    bson:"name"`
	Description  string            `grove:"description"    bson:"description"`
	GroupName    string            `grove:"group_name"     bson:"group_name"`
	Schema       json.RawMessage   `grove:"schema"         bson:"schema,omitempty"`
	Version      string            `grove:"version"        bson:"version"`
	Example      json.RawMessage   `grove:"example"        bson:"example,omitempty"`
	IsDeprecated bool              `grove:"is_deprecated"  bson:"is_deprecated"`
	DeprecatedAt *time.Time        `grove:"deprecated_at"  bson:"deprecated_at,omitempty"`
	Metadata     map[string]string `grove:"metadata"       bson:"metadata,omitempty"`
	CreatedAt    time.Time         `grove:"created_at"     bson:"created_at"`
	UpdatedAt    time.Time         `grove:"updated_at"     bson:"updated_at"`
}

func toEventTypeModel(et *catalog.EventType) *eventTypeModel {
	return &eventTypeModel{
		ID:           et.ID.String(),
		Name:         et.Definition.Name,
		Description:  et.Definition.Description,
		GroupName:    string(et.Definition.Group),
		Schema:       et.Definition.Schema,
		Version:      et.Definition.Version,
		Example:      et.Definition.Example,
		IsDeprecated: et.IsDeprecated,
		DeprecatedAt: et.DeprecatedAt,
		Metadata:     et.Metadata,
		CreatedAt:    et.CreatedAt,
		UpdatedAt:    et.UpdatedAt,
	}
}

func fromEventTypeModel(m *eventTypeModel) (*catalog.EventType, error) {
	etID, err := id.ParseEventTypeID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse event type ID %q: %w", m.ID, err)
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
			Schema:      m.Schema,
			Version:     m.Version,
			Example:     m.Example,
		},
		IsDeprecated: m.IsDeprecated,
		DeprecatedAt: m.DeprecatedAt,
		Metadata:     m.Metadata,
	}, nil
}

// --- Subscription models ---

type subscriptionModel struct {
	grove.BaseModel `grove:"table:dispatch_subscriptions"`

	ID             string            `grove:"id,pk"            bson:"_id"`
	URL            string            `grove:"url"              bson:"url"`
	Description    string            `grove:"description"      bson:"description"`
	Secret         string            `grove:"secret"           bson:"secret"`
	EventTypes     []string          `grove:"event_types"      bson:"event_types"`
	Headers        map[string]string `grove:"headers"          bson:"headers,omitempty"`
	TimeoutSec     float64           `grove:"timeout_seconds"  bson:"timeout_seconds"`
	RetryAttempts  int               `grove:"retry_attempts"   bson:"retry_attempts"`
	RetryBackoff   float64           `grove:"retry_backoff"    bson:"retry_backoff"`
	RateLimit      int               `grove:"rate_limit"       bson:"rate_limit"`
	Status         string            `grove:"status"           bson:"status"`
	DeliveryCount  int64             `grove:"delivery_count"   bson:"delivery_count"`
	FailureCount   int64             `grove:"failure_count"    bson:"failure_count"`
	LastDeliveryAt *time.Time        `grove:"last_delivery_at" bson:"last_delivery_at,omitempty"`
	Metadata       map[string]string `grove:"metadata"         bson:"metadata,omitempty"`
	CreatedAt      time.Time         `grove:"created_at"       bson:"created_at"`
	UpdatedAt      time.Time         `grove:"updated_at"       bson:"updated_at"`
}

func toSubscriptionModel(sub *subscription.Subscription) *subscriptionModel {
	return &subscriptionModel{
		ID:             sub.ID.String(),
		URL:            sub.URL,
		Description:    sub.Description,
		Secret:         sub.Secret,
		EventTypes:     sub.EventTypes,
		Headers:        sub.Headers,
		TimeoutSec:     sub.Timeout.Seconds(),
		RetryAttempts:  sub.RetryAttempts,
		RetryBackoff:   sub.RetryBackoff,
		RateLimit:      sub.RateLimit,
		Status:         string(sub.Status),
		DeliveryCount:  sub.DeliveryCount,
		FailureCount:   sub.FailureCount,
		LastDeliveryAt: sub.LastDeliveryAt,
		Metadata:       sub.Metadata,
		CreatedAt:      sub.CreatedAt,
		UpdatedAt:      sub.UpdatedAt,
	}
}

func fromSubscriptionModel(m *subscriptionModel) (*subscription.Subscription, error) {
	subID, err := id.ParseSubscriptionID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse subscription ID %q: %w", m.ID, err)
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
		EventTypes:     m.EventTypes,
		Headers:        m.Headers,
		Timeout:        time.Duration(m.TimeoutSec * float64(time.Second)),
		RetryAttempts:  m.RetryAttempts,
		RetryBackoff:   m.RetryBackoff,
		RateLimit:      m.RateLimit,
		Status:         subscription.Status(m.Status),
		DeliveryCount:  m.DeliveryCount,
		FailureCount:   m.FailureCount,
		LastDeliveryAt: m.LastDeliveryAt,
		Metadata:       m.Metadata,
	}, nil
}

// --- Event models ---

type eventModel struct {
	grove.BaseModel `grove:"table:dispatch_events"`

	ID            string            `grove:"id,pk"          bson:"_id"`
	Type          string            `grove:"type"           bson:"type"`
	Data          json.RawMessage   `grove:"data"           bson:"data,omitempty"`
	OccurredAt    time.Time         `grove:"occurred_at"    bson:"occurred_at"`
	SourceService string            `grove:"source_service" bson:"source_service"`
	CorrelationID string            `grove:"correlation_id" bson:"correlation_id"`
	Metadata      map[string]string `grove:"metadata"       bson:"metadata,omitempty"`
	CreatedAt     time.Time         `grove:"created_at"     bson:"created_at"`
	UpdatedAt     time.Time         `grove:"updated_at"     bson:"updated_at"`
}

func toEventModel(evt *event.Event) *eventModel {
	return &eventModel{
		ID:            evt.ID.String(),
		Type:          evt.Type,
		Data:          evt.Data,
		OccurredAt:    evt.Timestamp,
		SourceService: evt.SourceService,
		CorrelationID: evt.CorrelationID,
		Metadata:      evt.Metadata,
		CreatedAt:     evt.CreatedAt,
		UpdatedAt:     evt.UpdatedAt,
	}
}

func fromEventModel(m *eventModel) (*event.Event, error) {
	evtID, err := id.ParseEventID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse event ID %q: %w", m.ID, err)
	}
	return &event.Event{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:            evtID,
		Type:          m.Type,
		Data:          m.Data,
		Timestamp:     m.OccurredAt,
		SourceService: m.SourceService,
		CorrelationID: m.CorrelationID,
		Metadata:      m.Metadata,
	}, nil
}

// --- Delivery models ---

type deliveryModel struct {
	grove.BaseModel `grove:"table:dispatch_deliveries"`

	ID             string            `grove:"id,pk"           bson:"_id"`
	SubscriptionID string            `grove:"subscription_id" bson:"subscription_id"`
	EventID        string            `grove:"event_id"        bson:"event_id"`
	Status         string            `grove:"status"          bson:"status"`
	AttemptNumber  int               `grove:"attempt_number"  bson:"attempt_number"`
	URL            string            `grove:"url"             bson:"url"`
	RequestHeaders map[string]string `grove:"request_headers" bson:"request_headers,omitempty"`
	RequestBody    []byte            `grove:"request_body"    bson:"request_body,omitempty"`
	ResponseStatus int               `grove:"response_status" bson:"response_status"`
	ResponseBody   string            `grove:"response_body"   bson:"response_body"`
	DurationMs     int               `grove:"duration_ms"     bson:"duration_ms"`
	Error          string            `grove:"error"           bson:"error"`
	Reason         string            `grove:"reason"          bson:"reason"`
	NextRetryAt    *time.Time        `grove:"next_retry_at"   bson:"next_retry_at,omitempty"`
	DeliveredAt    *time.Time        `grove:"delivered_at"    bson:"delivered_at,omitempty"`
	CreatedAt      time.Time         `grove:"created_at"      bson:"created_at"`
	UpdatedAt      time.Time         `grove:"updated_at"      bson:"updated_at"`
}

func toDeliveryModel(d *delivery.Delivery) *deliveryModel {
	return &deliveryModel{
		ID:             d.ID.String(),
		SubscriptionID: d.SubscriptionID.String(),
		EventID:        d.EventID.String(),
		Status:         string(d.Status),
		AttemptNumber:  d.AttemptNumber,
		URL:            d.URL,
		RequestHeaders: d.RequestHeaders,
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
		RequestHeaders: m.RequestHeaders,
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

// The retry schedule is keyed by delivery ID, so the document _id is the
// delivery the retry belongs to.
type retryModel struct {
	grove.BaseModel `grove:"table:dispatch_retries"`

	DeliveryID     string    `grove:"delivery_id,pk"  bson:"_id"`
	SubscriptionID string    `grove:"subscription_id" bson:"subscription_id"`
	EventID        string    `grove:"event_id"        bson:"event_id"`
	AttemptNumber  int       `grove:"attempt_number"  bson:"attempt_number"`
	FireAt         time.Time `grove:"fire_at"         bson:"fire_at"`
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

	ID             string          `grove:"id,pk"            bson:"_id"`
	DeliveryID     string          `grove:"delivery_id"      bson:"delivery_id"`
	EventID        string          `grove:"event_id"         bson:"event_id"`
	SubscriptionID string          `grove:"subscription_id"  bson:"subscription_id"`
	EventType      string          `grove:"event_type"       bson:"event_type"`
	URL            string          `grove:"url"              bson:"url"`
	Payload        json.RawMessage `grove:"payload"          bson:"payload,omitempty"`
	Error          string          `grove:"error"            bson:"error"`
	AttemptCount   int             `grove:"attempt_count"    bson:"attempt_count"`
	LastStatusCode int             `grove:"last_status_code" bson:"last_status_code"`
	ReplayedAt     *time.Time      `grove:"replayed_at"      bson:"replayed_at,omitempty"`
	FailedAt       time.Time       `grove:"failed_at"        bson:"failed_at"`
	CreatedAt      time.Time       `grove:"created_at"       bson:"created_at"`
	UpdatedAt      time.Time       `grove:"updated_at"       bson:"updated_at"`
}

func toDLQEntryModel(e *dlq.Entry) *dlqEntryModel {
	return &dlqEntryModel{
		ID:             e.ID.String(),
		DeliveryID:     e.DeliveryID.String(),
		EventID:        e.EventID.String(),
		SubscriptionID: e.SubscriptionID.String(),
		EventType:      e.EventType,
		URL:            e.URL,
		Payload:        e.Payload,
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
		Payload:        m.Payload,
		Error:          m.Error,
		AttemptCount:   m.AttemptCount,
		LastStatusCode: m.LastStatusCode,
		ReplayedAt:     m.ReplayedAt,
		FailedAt:       m.FailedAt,
	}, nil
}

package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/coreledger/dispatch/id"
	"github.com/coreledger/dispatch/internal/entity"
	"github.com/coreledger/dispatch/signature"
	"github.com/coreledger/dispatch/validator"
)

// Prober checks whether a webhook endpoint is able to receive deliveries.
// The validator package provides the default implementation.
type Prober interface {
	ValidateEndpoint(ctx context.Context, endpointURL, secret string) validator.Result
}

// Service provides subscription management operations.
type Service struct {
	store  Store
	prober Prober
	logger *slog.Logger
}

// NewService creates a new subscription service. A nil prober disables the
// endpoint reachability gate on Create.
func NewService(store Store, prober Prober, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		prober: prober,
		logger: logger,
	}
}

// Create registers a new webhook subscription. The endpoint is probed before
// the subscription is persisted; unreachable or non-POST endpoints are
// rejected.
func (svc *Service) Create(ctx context.Context, in Input) (*Subscription, error) {
	if _, err := url.ParseRequestURI(in.URL); err != nil {
		return nil, &ValidationError{Field: "url", Message: "invalid URL"}
	}

	if len(in.EventTypes) == 0 {
		return nil, &ValidationError{Field: "events", Message: "at least one event type pattern required"}
	}

	if in.RetryBackoff != 0 && in.RetryBackoff < 1.0 {
		return nil, &ValidationError{Field: "retry_backoff", Message: "must be >= 1.0"}
	}

	secret := in.Secret
	if secret == "" {
		secret = signature.GenerateSecret()
	}

	if svc.prober != nil {
		res := svc.prober.ValidateEndpoint(ctx, in.URL, secret)
		if !res.Valid {
			svc.logger.Warn("endpoint validation failed",
				"url", in.URL,
				"reachable", res.Reachable,
				"error", res.Error)
			return nil, &EndpointValidationError{URL: in.URL, Result: res}
		}
	}

	sub := &Subscription{
		Entity:        entity.New(),
		ID:            id.NewSubscriptionID(),
		URL:           in.URL,
		Description:   in.Description,
		Secret:        secret,
		EventTypes:    in.EventTypes,
		Headers:       in.Headers,
		Timeout:       in.timeout(),
		RetryAttempts: in.retryAttempts(),
		RetryBackoff:  in.retryBackoff(),
		RateLimit:     in.RateLimit,
		Status:        StatusActive,
		Metadata:      in.Metadata,
	}

	if err := svc.store.CreateSubscription(ctx, sub); err != nil {
		return nil, err
	}

	svc.logger.Info("subscription created",
		"subscription_id", sub.ID,
		"url", sub.URL,
		"events", len(sub.EventTypes))

	return sub, nil
}

// Get returns a subscription by ID.
func (svc *Service) Get(ctx context.Context, subID id.ID) (*Subscription, error) {
	return svc.store.GetSubscription(ctx, subID)
}

// List returns subscriptions matching the given options.
func (svc *Service) List(ctx context.Context, opts ListOpts) ([]*Subscription, error) {
	return svc.store.ListSubscriptions(ctx, opts)
}

// Update modifies an existing subscription. Zero-valued fields are left
// unchanged.
func (svc *Service) Update(ctx context.Context, subID id.ID, in Input) (*Subscription, error) {
	sub, err := svc.store.GetSubscription(ctx, subID)
	if err != nil {
		return nil, err
	}

	if in.URL != "" {
		if _, err := url.ParseRequestURI(in.URL); err != nil {
			return nil, &ValidationError{Field: "url", Message: "invalid URL"}
		}
		sub.URL = in.URL
	}
	if in.Description != "" {
		sub.Description = in.Description
	}
	if len(in.EventTypes) > 0 {
		sub.EventTypes = in.EventTypes
	}
	if in.Headers != nil {
		sub.Headers = in.Headers
	}
	if in.TimeoutSeconds > 0 {
		sub.Timeout = in.timeout()
	}
	if in.RetryAttempts > 0 {
		sub.RetryAttempts = in.RetryAttempts
	}
	if in.RetryBackoff != 0 {
		if in.RetryBackoff < 1.0 {
			return nil, &ValidationError{Field: "retry_backoff", Message: "must be >= 1.0"}
		}
		sub.RetryBackoff = in.RetryBackoff
	}
	if in.RateLimit > 0 {
		sub.RateLimit = in.RateLimit
	}
	if in.Metadata != nil {
		sub.Metadata = in.Metadata
	}

	if err := svc.store.UpdateSubscription(ctx, sub); err != nil {
		return nil, err
	}

	return sub, nil
}

// Delete disables a subscription. The record and its delivery history are
// retained; only routing stops. Deleting an already-disabled subscription is
// a no-op.
func (svc *Service) Delete(ctx context.Context, subID id.ID) error {
	if err := svc.store.SetStatus(ctx, subID, StatusDisabled); err != nil {
		return err
	}
	svc.logger.Info("subscription disabled", "subscription_id", subID)
	return nil
}

// SetStatus transitions a subscription to the given status.
func (svc *Service) SetStatus(ctx context.Context, subID id.ID, status Status) error {
	if !status.Valid() {
		return &ValidationError{Field: "status", Message: "unknown status " + string(status)}
	}
	return svc.store.SetStatus(ctx, subID, status)
}

// Pause suspends deliveries for a subscription without disabling it.
func (svc *Service) Pause(ctx context.Context, subID id.ID) error {
	return svc.store.SetStatus(ctx, subID, StatusPaused)
}

// Resume reactivates a paused or failed subscription.
func (svc *Service) Resume(ctx context.Context, subID id.ID) error {
	return svc.store.SetStatus(ctx, subID, StatusActive)
}

// RotateSecret generates a new signing secret for a subscription and returns
// it. Deliveries in flight keep the old secret; new deliveries sign with the
// rotated one.
func (svc *Service) RotateSecret(ctx context.Context, subID id.ID) (string, error) {
	sub, err := svc.store.GetSubscription(ctx, subID)
	if err != nil {
		return "", err
	}

	newSecret := signature.GenerateSecret()

	sub.Secret = newSecret
	if err := svc.store.UpdateSubscription(ctx, sub); err != nil {
		return "", err
	}

	svc.logger.Info("subscription secret rotated", "subscription_id", subID)
	return newSecret, nil
}

// ValidationError indicates invalid input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "subscription validation: " + e.Field + ": " + e.Message
}

// EndpointValidationError indicates the endpoint probe rejected the URL.
type EndpointValidationError struct {
	URL    string
	Result validator.Result
}

func (e *EndpointValidationError) Error() string {
	if e.Result.Error != "" {
		return fmt.Sprintf("endpoint validation failed for %s: %s", e.URL, e.Result.Error)
	}
	return fmt.Sprintf("endpoint validation failed for %s", e.URL)
}

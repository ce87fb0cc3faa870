package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coreledger/dispatch/id"
	"github.com/coreledger/dispatch/subscription"
)

// createSubscriptionResponse carries the signing secret alongside the
// subscription. The secret is returned exactly once, here; it is never
// serialized on any other read path.
type createSubscriptionResponse struct {
	*subscription.Subscription
	Secret string `json:"secret"`
}

func (h *Handler) createSubscription(w http.ResponseWriter, r *http.Request) {
	var in subscription.Input
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sub, err := h.manager.CreateSubscription(r.Context(), in)
	if err != nil {
		var vErr *subscription.ValidationError
		var epErr *subscription.EndpointValidationError
		switch {
		case errors.As(err, &vErr):
			writeError(w, http.StatusBadRequest, vErr.Error())
		case errors.As(err, &epErr):
			writeError(w, http.StatusUnprocessableEntity, epErr.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusCreated, createSubscriptionResponse{
		Subscription: sub,
		Secret:       sub.Secret,
	})
}

func (h *Handler) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	opts := subscription.ListOpts{
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", 50),
	}

	if st := queryParam(r, "status"); st != "" {
		status := subscription.Status(st)
		opts.Status = &status
	}

	subs, err := h.manager.ListSubscriptions(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, subs)
}

func (h *Handler) getSubscription(w http.ResponseWriter, r *http.Request) {
	subID, err := id.ParseSubscriptionID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid subscription ID")
		return
	}

	sub, getErr := h.manager.GetSubscription(r.Context(), subID)
	if getErr != nil {
		if errors.Is(getErr, subscription.ErrNotFound) {
			writeError(w, http.StatusNotFound, "subscription not found")
			return
		}
		writeError(w, http.StatusInternalServerError, getErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, sub)
}

func (h *Handler) updateSubscription(w http.ResponseWriter, r *http.Request) {
	subID, err := id.ParseSubscriptionID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid subscription ID")
		return
	}

	var in subscription.Input
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sub, updateErr := h.manager.Subscriptions().Update(r.Context(), subID, in)
	if updateErr != nil {
		var vErr *subscription.ValidationError
		switch {
		case errors.Is(updateErr, subscription.ErrNotFound):
			writeError(w, http.StatusNotFound, "subscription not found")
		case errors.As(updateErr, &vErr):
			writeError(w, http.StatusBadRequest, vErr.Error())
		default:
			writeError(w, http.StatusInternalServerError, updateErr.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, sub)
}

func (h *Handler) deleteSubscription(w http.ResponseWriter, r *http.Request) {
	subID, err := id.ParseSubscriptionID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid subscription ID")
		return
	}

	if deleteErr := h.manager.DeleteSubscription(r.Context(), subID); deleteErr != nil {
		if errors.Is(deleteErr, subscription.ErrNotFound) {
			writeError(w, http.StatusNotFound, "subscription not found")
			return
		}
		writeError(w, http.StatusInternalServerError, deleteErr.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pauseSubscription(w http.ResponseWriter, r *http.Request) {
	h.setSubscriptionStatus(w, r, h.manager.Subscriptions().Pause)
}

func (h *Handler) resumeSubscription(w http.ResponseWriter, r *http.Request) {
	h.setSubscriptionStatus(w, r, h.manager.Subscriptions().Resume)
}

func (h *Handler) setSubscriptionStatus(w http.ResponseWriter, r *http.Request, fn func(context.Context, id.ID) error) {
	subID, err := id.ParseSubscriptionID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid subscription ID")
		return
	}

	if setErr := fn(r.Context(), subID); setErr != nil {
		if errors.Is(setErr, subscription.ErrNotFound) {
			writeError(w, http.StatusNotFound, "subscription not found")
			return
		}
		writeError(w, http.StatusInternalServerError, setErr.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) rotateSecret(w http.ResponseWriter, r *http.Request) {
	subID, err := id.ParseSubscriptionID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid subscription ID")
		return
	}

	newSecret, rotateErr := h.manager.Subscriptions().RotateSecret(r.Context(), subID)
	if rotateErr != nil {
		if errors.Is(rotateErr, subscription.ErrNotFound) {
			writeError(w, http.StatusNotFound, "subscription not found")
			return
		}
		writeError(w, http.StatusInternalServerError, rotateErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"secret": newSecret})
}

// subscriptionStatsResponse summarizes delivery outcomes for one subscription.
type subscriptionStatsResponse struct {
	SubscriptionID string     `json:"subscription_id"`
	DeliveryCount  int64      `json:"delivery_count"`
	FailureCount   int64      `json:"failure_count"`
	SuccessRate    float64    `json:"success_rate"`
	LastDeliveryAt *time.Time `json:"last_delivery_at,omitempty"`
}

func (h *Handler) getSubscriptionStats(w http.ResponseWriter, r *http.Request) {
	subID, err := id.ParseSubscriptionID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid subscription ID")
		return
	}

	sub, getErr := h.manager.GetSubscription(r.Context(), subID)
	if getErr != nil {
		if errors.Is(getErr, subscription.ErrNotFound) {
			writeError(w, http.StatusNotFound, "subscription not found")
			return
		}
		writeError(w, http.StatusInternalServerError, getErr.Error())
		return
	}

	resp := subscriptionStatsResponse{
		SubscriptionID: sub.ID.String(),
		DeliveryCount:  sub.DeliveryCount,
		FailureCount:   sub.FailureCount,
		SuccessRate:    1.0,
	}
	if sub.DeliveryCount > 0 {
		resp.SuccessRate = float64(sub.DeliveryCount-sub.FailureCount) / float64(sub.DeliveryCount)
	}
	resp.LastDeliveryAt = sub.LastDeliveryAt

	writeJSON(w, http.StatusOK, resp)
}

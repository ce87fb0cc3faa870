package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coreledger/dispatch"
	"github.com/coreledger/dispatch/event"
	"github.com/coreledger/dispatch/id"
)

type triggerEventRequest struct {
	Type          string            `json:"type"`
	Data          json.RawMessage   `json:"data"`
	SourceService string            `json:"source_service,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

func (h *Handler) triggerEvent(w http.ResponseWriter, r *http.Request) {
	var req triggerEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Type == "" {
		writeError(w, http.StatusBadRequest, "type is required")
		return
	}

	evt := &event.Event{
		Type:          req.Type,
		Data:          req.Data,
		SourceService: req.SourceService,
		CorrelationID: req.CorrelationID,
		Metadata:      req.Metadata,
	}

	if err := h.manager.TriggerEvent(r.Context(), evt); err != nil {
		switch {
		case errors.Is(err, dispatch.ErrEventTypeNotFound):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, dispatch.ErrEventTypeDeprecated):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, dispatch.ErrPayloadValidationFailed):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusAccepted, evt)
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	opts := event.ListOpts{
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", 50),
		Type:   queryParam(r, "type"),
	}

	if from := queryParam(r, "from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid 'from' time format (use RFC3339)")
			return
		}
		opts.From = &t
	}
	if to := queryParam(r, "to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid 'to' time format (use RFC3339)")
			return
		}
		opts.To = &t
	}

	events, err := h.manager.Store().ListEvents(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) getEvent(w http.ResponseWriter, r *http.Request) {
	evtID, err := id.ParseEventID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event ID")
		return
	}

	evt, getErr := h.manager.Store().GetEvent(r.Context(), evtID)
	if getErr != nil {
		if errors.Is(getErr, event.ErrNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		writeError(w, http.StatusInternalServerError, getErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, evt)
}

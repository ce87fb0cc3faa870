package api

import (
	"net/http"
)

type statsResponse struct {
	PendingRetries int64 `json:"pending_retries"`
	DLQSize        int64 `json:"dlq_size"`
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	pending, err := h.manager.Store().CountPendingRetries(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	dlqCount, err := h.manager.Store().CountDLQ(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		PendingRetries: pending,
		DLQSize:        dlqCount,
	})
}

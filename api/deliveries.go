package api

import (
	"net/http"

	"github.com/coreledger/dispatch/delivery"
	"github.com/coreledger/dispatch/id"
)

func (h *Handler) listDeliveries(w http.ResponseWriter, r *http.Request) {
	subID, err := id.ParseSubscriptionID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid subscription ID")
		return
	}

	opts := delivery.ListOpts{
		Offset:         queryInt(r, "offset", 0),
		Limit:          queryInt(r, "limit", 50),
		SubscriptionID: &subID,
	}

	if st := queryParam(r, "status"); st != "" {
		status := delivery.Status(st)
		opts.Status = &status
	}

	deliveries, listErr := h.manager.Deliveries().List(r.Context(), opts)
	if listErr != nil {
		writeError(w, http.StatusInternalServerError, listErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, deliveries)
}

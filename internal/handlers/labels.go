package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/xelth-com/argoxlabels/internal/apperr"
	"github.com/xelth-com/argoxlabels/internal/metrics"
	"github.com/xelth-com/argoxlabels/internal/models"
	"github.com/xelth-com/argoxlabels/internal/services/lookup"
)

// findLabels resolves the {orderId} route variable and runs the lookup
func (r *Router) findLabels(req *http.Request) (int64, []models.ProductionLabel, error) {
	orderID, err := lookup.ParseOrderID(mux.Vars(req)["orderId"])
	if err != nil {
		return 0, nil, err
	}
	if r.finder == nil {
		return orderID, nil, apperr.New(apperr.KindStorageConfig, "lookups are not configured on this server", nil)
	}
	records, err := r.finder.Find(req.Context(), orderID)
	metrics.RecordLookup(len(records), err)
	return orderID, records, err
}

// getLabels returns every stored record of a production order
func (r *Router) getLabels(w http.ResponseWriter, req *http.Request) {
	_, records, err := r.findLabels(req)
	if err != nil {
		respondAppError(w, err, nil)
		return
	}
	respondJSON(w, http.StatusOK, records)
}

package router

import (
	"net/http"

	"github.com/Renal37/orderbridge/internal/middlewares"
	"github.com/Renal37/orderbridge/internal/models"
)

// TriggerSync starts a polling cycle out of schedule.
func TriggerSync(w http.ResponseWriter, r *http.Request) {
	trigger, ok := middlewares.LookupService[models.SyncTrigger](r, middlewares.SyncTriggerKey)
	if !ok {
		http.Error(w, "polling is not active for this merchant", http.StatusServiceUnavailable)
		return
	}

	if !trigger.TriggerNow() {
		http.Error(w, "a polling cycle is already running", http.StatusConflict)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// GetSyncSummary returns the counters of the last finished cycle.
func GetSyncSummary(w http.ResponseWriter, r *http.Request) {
	trigger, ok := middlewares.LookupService[models.SyncTrigger](r, middlewares.SyncTriggerKey)
	if !ok {
		http.Error(w, "polling is not active for this merchant", http.StatusServiceUnavailable)
		return
	}

	summary, ok := trigger.LastSummary()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	middlewares.EncodeJSONResponse(w, http.StatusOK, summary)
}

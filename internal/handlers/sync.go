package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/xelth-com/argoxlabels/internal/apperr"
	"github.com/xelth-com/argoxlabels/internal/services/labelsync"
	"github.com/xelth-com/argoxlabels/internal/websocket"
)

// SyncRequest is the body of POST /api/sync
type SyncRequest struct {
	Action string             `json:"action"`
	Config *labelsync.Request `json:"config"`
}

// SyncResponse is returned when a run succeeds
type SyncResponse struct {
	Count         int      `json:"count"`
	Logs          []string `json:"logs"`
	RunID         string   `json:"runId"`
	FailedBatches int      `json:"failedBatches"`
}

// triggerSync runs one sync and returns its full log
func (r *Router) triggerSync(w http.ResponseWriter, req *http.Request) {
	if r.syncer == nil {
		respondAppError(w, apperr.New(apperr.KindStorageConfig, "sync is not configured on this server", nil), nil)
		return
	}

	var body SyncRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondAppError(w, apperr.New(apperr.KindMalformedInput, "request body is not valid JSON", err), nil)
		return
	}
	if body.Action != "sync" {
		respondAppError(w, apperr.New(apperr.KindMalformedInput, "unsupported action "+quote(body.Action), nil), nil)
		return
	}
	if body.Config == nil {
		respondAppError(w, apperr.New(apperr.KindMalformedInput, "missing config object", nil), nil)
		return
	}

	// The run outlives a dropped client connection; it is bounded by its own timeout
	ctx, cancel := context.WithTimeout(context.WithoutCancel(req.Context()), r.opts.SyncTimeout)
	defer cancel()

	result, err := r.syncer.Trigger(ctx, *body.Config, nil)
	if err != nil {
		respondAppError(w, err, result)
		return
	}

	respondJSON(w, http.StatusOK, SyncResponse{
		Count:         result.RecordsWritten,
		Logs:          result.LogLines,
		RunID:         result.RunID,
		FailedBatches: result.FailedBatches,
	})
}

// serveSyncLog upgrades to a websocket receiving SYNC_LOG and SYNC_DONE messages
func (r *Router) serveSyncLog(w http.ResponseWriter, req *http.Request) {
	if r.hub == nil {
		respondError(w, http.StatusServiceUnavailable, "Live sync log is not available")
		return
	}
	websocket.ServeWs(r.hub, w, req)
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"athens/internal/apperr"
	"athens/internal/attendance"
	"athens/internal/offline"
)

// SyncOfflineData applies a device change batch. Every change is answered
// individually; the response never carries an overall failure for a
// partially rejected batch.
func SyncOfflineData(syncer *offline.Syncer, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, actor, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		var batch offline.Batch
		if err := decodeJSON(r, &batch); err != nil {
			respondError(w, r, lg, err)
			return
		}
		if len(batch.Changes) == 0 {
			respondError(w, r, lg, apperr.ValidationFailed("changes must not be empty"))
			return
		}
		res := syncer.Apply(scope, actor, batch)
		lg.Infow("offline sync",
			"tenant", scope.TenantID, "device", batch.DeviceID,
			"applied", len(res.Applied), "rejected", len(res.Rejected))
		respondJSON(w, res)
	}
}

type bulkAttendanceRequest struct {
	Events []attendance.EventInput `json:"events"`
}

// BulkAttendance ingests a batch of attendance events idempotently.
func BulkAttendance(ing *attendance.Ingester, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, _, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		var req bulkAttendanceRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, r, lg, err)
			return
		}
		if len(req.Events) == 0 {
			respondError(w, r, lg, apperr.ValidationFailed("events must not be empty"))
			return
		}
		res, err := ing.Ingest(scope, req.Events)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		lg.Infow("attendance bulk ingest",
			"tenant", scope.TenantID,
			"created", len(res.Created), "duplicates", len(res.Duplicates), "rejected", len(res.Rejected))
		respondJSON(w, res)
	}
}

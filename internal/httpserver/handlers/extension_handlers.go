package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"athens/internal/apperr"
	"athens/internal/models"
	"athens/internal/ptw"
)

type extensionRequest struct {
	NewEnd        time.Time `json:"new_end"`
	NewWorkNature *string   `json:"new_work_nature"`
	Reason        string    `json:"reason"`
}

// RequestExtension records a pending extension on an approved or active
// permit. The server derives extension hours and the work-nature impact.
func RequestExtension(eng *ptw.Engine, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, actor, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		var req extensionRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, r, lg, err)
			return
		}
		var permit models.Permit
		if err := scope.Scoped(eng.DB()).First(&permit, "id = ?", chi.URLParam(r, "id")).Error; err != nil {
			respondError(w, r, lg, apperr.NotFound("permit"))
			return
		}
		if !actor.SeesProject(permit.ProjectID) {
			respondError(w, r, lg, apperr.PermissionDenied("project out of scope"))
			return
		}
		ext, err := ptw.RequestExtension(eng.DB(), scope, permit, req.NewEnd, req.NewWorkNature, req.Reason, actor.UserID, eng.Location())
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		w.WriteHeader(http.StatusCreated)
		respondJSON(w, ext)
	}
}

// ListExtensions returns a permit's extension requests, newest first.
func ListExtensions(eng *ptw.Engine, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, _, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		var exts []models.PermitExtension
		err = scope.Scoped(eng.DB()).
			Where("permit_id = ?", chi.URLParam(r, "id")).
			Order("created_at desc").
			Find(&exts).Error
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, map[string]any{"extensions": exts})
	}
}

type extensionDecisionRequest struct {
	Action   string `json:"action"` // approve | reject
	Comments string `json:"comments"`
}

// DecideExtension lets an approver settle a pending extension. Only an
// approve-capable actor may decide.
func DecideExtension(eng *ptw.Engine, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, actor, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		var req extensionDecisionRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, r, lg, err)
			return
		}
		if req.Action != "approve" && req.Action != "reject" {
			respondError(w, r, lg, apperr.ValidationFailed("action must be approve or reject"))
			return
		}
		if !actor.CanApprove() && !actor.IsMaster() {
			respondError(w, r, lg, apperr.PermissionDenied("not eligible to decide extensions"))
			return
		}
		ext, err := ptw.DecideExtension(eng.DB(), scope, chi.URLParam(r, "extID"), req.Action == "approve", req.Comments, actor.UserID)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, ext)
	}
}

package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"athens/internal/apperr"
	"athens/internal/models"
	"athens/internal/ptw"
)

// ListIsolationLibrary returns the reusable isolation points of a project.
func ListIsolationLibrary(eng *ptw.Engine, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, _, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		q := scope.Scoped(eng.DB().Model(&models.IsolationPointLibrary{})).Where("is_active")
		if p := r.URL.Query().Get("project_id"); p != "" {
			q = q.Where("project_id = ?", p)
		}
		var points []models.IsolationPointLibrary
		if err := q.Order("point_code asc").Find(&points).Error; err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, map[string]any{"points": points})
	}
}

type createLibraryPointRequest struct {
	ProjectID        string             `json:"project_id"`
	PointCode        string             `json:"point_code"`
	Description      string             `json:"description"`
	PointType        string             `json:"point_type"`
	EnergyType       string             `json:"energy_type"`
	Location         string             `json:"location"`
	RequiresLock     *bool              `json:"requires_lock"`
	DefaultLockCount int                `json:"default_lock_count"`
	PPERequired      models.StringArray `json:"ppe_required"`
}

// CreateIsolationLibraryPoint registers a reusable point. point_code is
// unique per project.
func CreateIsolationLibraryPoint(eng *ptw.Engine, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, _, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		var req createLibraryPointRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, r, lg, err)
			return
		}
		if req.ProjectID == "" || req.PointCode == "" {
			respondError(w, r, lg, apperr.ValidationFailed("project_id and point_code required"))
			return
		}
		point := models.IsolationPointLibrary{
			TenantID:         scope.TenantID,
			ProjectID:        req.ProjectID,
			PointCode:        req.PointCode,
			Description:      req.Description,
			PointType:        req.PointType,
			EnergyType:       req.EnergyType,
			Location:         req.Location,
			RequiresLock:     true,
			DefaultLockCount: req.DefaultLockCount,
			PPERequired:      req.PPERequired,
			IsActive:         true,
		}
		if req.RequiresLock != nil {
			point.RequiresLock = *req.RequiresLock
		}
		if point.PointType == "" {
			point.PointType = "valve"
		}
		if point.EnergyType == "" {
			point.EnergyType = "mechanical"
		}
		if point.DefaultLockCount < 1 {
			point.DefaultLockCount = 1
		}
		if err := eng.DB().Create(&point).Error; err != nil {
			respondError(w, r, lg, apperr.Conflict("point_code already exists for this project"))
			return
		}
		w.WriteHeader(http.StatusCreated)
		respondJSON(w, point)
	}
}

type assignPointRequest struct {
	LibraryPointID string `json:"library_point_id"`
	PointCode      string `json:"point_code"`
	Description    string `json:"description"`
	Required       *bool  `json:"required"`
}

// AssignIsolationPoint attaches a library or custom point to a permit.
func AssignIsolationPoint(eng *ptw.Engine, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, actor, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		var req assignPointRequest
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
		if models.Terminal(permit.Status) {
			respondError(w, r, lg, apperr.ValidationFailed("permit is closed"))
			return
		}
		required := true
		if req.Required != nil {
			required = *req.Required
		}
		point, err := ptw.AssignPoint(eng.DB(), scope, permit, req.LibraryPointID, req.PointCode, req.Description, required)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		w.WriteHeader(http.StatusCreated)
		respondJSON(w, point)
	}
}

// ListPermitIsolationPoints returns the points attached to a permit.
func ListPermitIsolationPoints(eng *ptw.Engine, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, _, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		var points []models.PermitIsolationPoint
		err = scope.Scoped(eng.DB()).
			Where("permit_id = ?", chi.URLParam(r, "id")).
			Order("created_at asc").
			Find(&points).Error
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, map[string]any{"points": points})
	}
}

type isolationActionRequest struct {
	PointID     string   `json:"point_id"`
	Action      string   `json:"action"`
	LockApplied bool     `json:"lock_applied"`
	LockIDs     []string `json:"lock_ids"`
	Notes       string   `json:"notes"`
}

// UpdateIsolation applies one isolation lifecycle action to a point under
// the two-person rule.
func UpdateIsolation(eng *ptw.Engine, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, actor, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		var req isolationActionRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, r, lg, err)
			return
		}
		if req.PointID == "" || req.Action == "" {
			respondError(w, r, lg, apperr.ValidationFailed("point_id and action required"))
			return
		}
		permitID := chi.URLParam(r, "id")
		var out models.PermitIsolationPoint
		err = eng.DB().Transaction(func(tx *gorm.DB) error {
			var permit models.Permit
			if err := scope.Scoped(tx).First(&permit, "id = ?", permitID).Error; err != nil {
				return apperr.NotFound("permit")
			}
			if !actor.SeesProject(permit.ProjectID) {
				return apperr.PermissionDenied("project out of scope")
			}
			var point models.PermitIsolationPoint
			if err := scope.Scoped(tx).First(&point, "id = ? AND permit_id = ?", req.PointID, permitID).Error; err != nil {
				return apperr.NotFound("isolation point")
			}
			if err := ptw.GuardIsolationAction(permit.Status, point, req.Action, actor.UserID, req.LockApplied); err != nil {
				return err
			}
			ptw.ApplyIsolationAction(&point, req.Action, actor.UserID, req.LockApplied, req.LockIDs, req.Notes, time.Now().UTC())
			if err := tx.Save(&point).Error; err != nil {
				return err
			}
			out = point
			return nil
		})
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, out)
	}
}

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"athens/internal/apperr"
	"athens/internal/models"
	"athens/internal/ptw"
)

type gasReadingRequest struct {
	GasType         string  `json:"gas_type"`
	Reading         float64 `json:"reading"`
	Unit            string  `json:"unit"`
	AcceptableRange string  `json:"acceptable_range"`
	EquipmentUsed   string  `json:"equipment_used"`
}

// AddGasReading appends a gas reading; the verdict is derived from the
// acceptable range server-side.
func AddGasReading(eng *ptw.Engine, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, actor, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		var req gasReadingRequest
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
		reading, err := ptw.AddGasReading(eng.DB(), scope, permit, req.GasType, req.Reading, req.Unit, req.AcceptableRange, req.EquipmentUsed, actor.UserID)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		if reading.Status == models.GasUnsafe {
			lg.Warnw("unsafe gas reading", "permit", permit.PermitNumber, "gas", reading.GasType, "value", reading.Reading)
		}
		w.WriteHeader(http.StatusCreated)
		respondJSON(w, reading)
	}
}

// ListGasReadings returns a permit's readings oldest first.
func ListGasReadings(eng *ptw.Engine, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, _, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		var readings []models.GasReading
		err = scope.Scoped(eng.DB()).
			Where("permit_id = ?", chi.URLParam(r, "id")).
			Order("tested_at asc").
			Find(&readings).Error
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, map[string]any{"readings": readings})
	}
}

type closeoutRequest struct {
	Checklist map[string]bool `json:"checklist"`
	Remarks   string          `json:"remarks"`
	Complete  bool            `json:"complete"`
}

// UpdateCloseout merges checklist marks into the permit closeout and,
// when asked, completes it against the template's required items.
func UpdateCloseout(eng *ptw.Engine, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, actor, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		var req closeoutRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, r, lg, err)
			return
		}
		s, err := ptw.LoadSnapshot(eng.DB(), scope, chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		if !actor.SeesProject(s.Permit.ProjectID) {
			respondError(w, r, lg, apperr.PermissionDenied("project out of scope"))
			return
		}
		co, err := ptw.UpdateCloseout(eng.DB(), scope, s, req.Checklist, req.Remarks, req.Complete, actor.UserID)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, co)
	}
}

// GetCloseout returns the permit's closeout record, if any.
func GetCloseout(eng *ptw.Engine, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, _, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		var co models.PermitCloseout
		err = scope.Scoped(eng.DB()).
			Where("permit_id = ?", chi.URLParam(r, "id")).
			First(&co).Error
		if err != nil {
			respondError(w, r, lg, apperr.NotFound("closeout"))
			return
		}
		respondJSON(w, co)
	}
}

// ListCloseoutTemplates returns the tenant's closeout checklist templates.
func ListCloseoutTemplates(eng *ptw.Engine, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, _, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		q := scope.Scoped(eng.DB().Model(&models.CloseoutChecklistTemplate{}))
		if t := r.URL.Query().Get("permit_type_id"); t != "" {
			q = q.Where("permit_type_id = ?", t)
		}
		var templates []models.CloseoutChecklistTemplate
		if err := q.Order("created_at desc").Find(&templates).Error; err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, map[string]any{"templates": templates})
	}
}

type closeoutTemplateRequest struct {
	PermitTypeID string                        `json:"permit_type_id"`
	RiskLevel    *string                       `json:"risk_level"`
	Items        models.ChecklistTemplateItems `json:"items"`
}

// CreateCloseoutTemplate registers a checklist template for a permit type,
// optionally bound to one risk level.
func CreateCloseoutTemplate(eng *ptw.Engine, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, _, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		var req closeoutTemplateRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, r, lg, err)
			return
		}
		if req.PermitTypeID == "" || len(req.Items) == 0 {
			respondError(w, r, lg, apperr.ValidationFailed("permit_type_id and items required"))
			return
		}
		for _, item := range req.Items {
			if item.Key == "" {
				respondError(w, r, lg, apperr.ValidationFailed("every item needs a key"))
				return
			}
		}
		tpl := models.CloseoutChecklistTemplate{
			TenantID:     scope.TenantID,
			PermitTypeID: req.PermitTypeID,
			RiskLevel:    req.RiskLevel,
			Items:        req.Items,
			IsActive:     true,
		}
		if err := eng.DB().Create(&tpl).Error; err != nil {
			respondError(w, r, lg, err)
			return
		}
		w.WriteHeader(http.StatusCreated)
		respondJSON(w, tpl)
	}
}

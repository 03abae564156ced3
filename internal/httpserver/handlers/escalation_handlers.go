package handlers

import (
	"net/http"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"athens/internal/apperr"
	"athens/internal/models"
)

// ListEscalationRules returns the tenant's SLA escalation rules.
func ListEscalationRules(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, _, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		var rules []models.EscalationRule
		if err := scope.Scoped(db).Order("created_at desc").Find(&rules).Error; err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, map[string]any{"rules": rules})
	}
}

type escalationRuleRequest struct {
	PermitTypeID   *string `json:"permit_type_id"`
	StepName       string  `json:"step_name"`
	TimeLimitHours int     `json:"time_limit_hours"`
	EscalateToRole string  `json:"escalate_to_role"`
}

// CreateEscalationRule registers an SLA rule for a workflow step.
func CreateEscalationRule(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, _, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		var req escalationRuleRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, r, lg, err)
			return
		}
		if req.StepName == "" || req.EscalateToRole == "" || req.TimeLimitHours <= 0 {
			respondError(w, r, lg, apperr.ValidationFailed("step_name, escalate_to_role and a positive time_limit_hours required"))
			return
		}
		rule := models.EscalationRule{
			TenantID:       scope.TenantID,
			PermitTypeID:   req.PermitTypeID,
			StepName:       req.StepName,
			TimeLimitHours: req.TimeLimitHours,
			EscalateToRole: req.EscalateToRole,
			IsActive:       true,
		}
		if err := db.Create(&rule).Error; err != nil {
			respondError(w, r, lg, err)
			return
		}
		w.WriteHeader(http.StatusCreated)
		respondJSON(w, rule)
	}
}

// SchedulerStatus exposes the persisted run state of background jobs.
func SchedulerStatus(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var runs []models.SchedulerRun
		if err := db.Find(&runs).Error; err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, map[string]any{"jobs": runs})
	}
}

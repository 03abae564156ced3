package ptw

import (
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"athens/internal/apperr"
	"athens/internal/identity"
	"athens/internal/models"
	"athens/internal/tenant"
)

// EventSink receives lifecycle events after the owning transaction has
// committed. Webhook dispatch and the websocket hub implement it.
type EventSink interface {
	PermitEvent(event string, p models.Permit)
}

// NopSink drops events; tests use it.
type NopSink struct{}

func (NopSink) PermitEvent(string, models.Permit) {}

// Engine drives permit mutations: every write goes through a transaction
// with the optimistic version guard, an audit row, and a post-commit event.
type Engine struct {
	db   *gorm.DB
	lg   *zap.SugaredLogger
	sink EventSink
	loc  *time.Location
}

func NewEngine(db *gorm.DB, lg *zap.SugaredLogger, sink EventSink) *Engine {
	if sink == nil {
		sink = NopSink{}
	}
	return &Engine{db: db, lg: lg, sink: sink, loc: time.Local}
}

// DB exposes the underlying handle for read paths.
func (e *Engine) DB() *gorm.DB { return e.db }

// Location returns the engine's local timezone used for shift boundaries.
func (e *Engine) Location() *time.Location { return e.loc }

// CreateInput is the permit creation request after JSON decoding.
type CreateInput struct {
	PermitTypeID    string             `json:"permit_type_id"`
	ProjectID       string             `json:"project_id"`
	Title           string             `json:"title"`
	Description     string             `json:"description"`
	WorkLocation    string             `json:"work_location"`
	PlannedStart    time.Time          `json:"planned_start"`
	PlannedEnd      time.Time          `json:"planned_end"`
	WorkNature      string             `json:"work_nature"`
	RiskLevel       string             `json:"risk_level"`
	Probability     int                `json:"probability"`
	Severity        int                `json:"severity"`
	PPERequirements models.StringArray `json:"ppe_requirements"`
	SafetyChecklist json.RawMessage    `json:"safety_checklist"`
}

// Create validates and inserts a draft permit. The receiver is always the
// creator.
func (e *Engine) Create(scope tenant.Scope, actor identity.Facet, in CreateInput) (models.Permit, error) {
	if in.Title == "" {
		return models.Permit{}, apperr.ValidationFailed("title required")
	}
	if in.PermitTypeID == "" || in.ProjectID == "" {
		return models.Permit{}, apperr.ValidationFailed("permit_type_id and project_id required")
	}
	if !in.PlannedEnd.After(in.PlannedStart) {
		return models.Permit{}, apperr.ValidationFailed("planned_end must be after planned_start")
	}
	if !actor.SeesProject(in.ProjectID) {
		return models.Permit{}, apperr.PermissionDenied("project out of scope")
	}
	if in.WorkNature == "" {
		in.WorkNature = models.WorkNatureDay
	}
	if in.Probability < 1 {
		in.Probability = 1
	}
	if in.Severity < 1 {
		in.Severity = 1
	}

	var permit models.Permit
	insert := func() error {
		return e.db.Transaction(func(tx *gorm.DB) error {
			var pt models.PermitType
			if err := scope.Scoped(tx).First(&pt, "id = ? AND is_active", in.PermitTypeID).Error; err != nil {
				return apperr.NotFound("permit type")
			}
			var proj models.Project
			if err := scope.Scoped(tx).First(&proj, "id = ?", in.ProjectID).Error; err != nil {
				return apperr.NotFound("project")
			}
			number, err := NextPermitNumber(tx, scope, time.Now())
			if err != nil {
				return err
			}
			permit = models.Permit{
				TenantID:        scope.TenantID,
				ProjectID:       in.ProjectID,
				PermitTypeID:    in.PermitTypeID,
				PermitNumber:    number,
				Status:          models.StatusDraft,
				Version:         1,
				Title:           in.Title,
				Description:     in.Description,
				WorkLocation:    in.WorkLocation,
				PlannedStart:    in.PlannedStart.UTC(),
				PlannedEnd:      in.PlannedEnd.UTC(),
				WorkNature:      in.WorkNature,
				RiskLevel:       in.RiskLevel,
				Probability:     in.Probability,
				Severity:        in.Severity,
				RiskScore:       in.Probability * in.Severity,
				CreatedByID:     actor.UserID,
				ReceiverID:      actor.UserID,
				PPERequirements: in.PPERequirements,
				SafetyChecklist: models.JSONB(in.SafetyChecklist),
			}
			if len(permit.PPERequirements) == 0 {
				permit.PPERequirements = pt.MandatoryPPE
			}
			if err := tx.Create(&permit).Error; err != nil {
				return err
			}
			return appendAudit(tx, scope.TenantID, permit.ID, "created", actor.UserID, "", "", nil, strPtr(models.StatusDraft))
		})
	}

	// Two concurrent creates can race to the same sequence value; the
	// unique index on (tenant_id, permit_number) rejects one and the
	// insert runs again with a fresh number.
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		permit = models.Permit{}
		if err = insert(); err == nil || !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
	}
	if err != nil {
		return models.Permit{}, err
	}
	e.sink.PermitEvent(models.EventPermitCreated, permit)
	return permit, nil
}

// Transition moves a permit through the status graph. Exactly one of two
// concurrent transitions succeeds; the other sees a version conflict.
func (e *Engine) Transition(scope tenant.Scope, actor identity.Facet, permitID, target, comments, ip string) (models.Permit, error) {
	var out models.Permit
	err := e.db.Transaction(func(tx *gorm.DB) error {
		s, err := LoadSnapshot(tx, scope, permitID)
		if err != nil {
			return err
		}
		if !actor.SeesProject(s.Permit.ProjectID) {
			return apperr.PermissionDenied("project out of scope")
		}
		if err := GuardTransition(s, actor, target); err != nil {
			return err
		}

		now := time.Now().UTC()
		updates := map[string]any{
			"status":     target,
			"version":    s.Permit.Version + 1,
			"updated_at": now,
		}
		if target == models.StatusActive && s.Permit.ActualStart == nil {
			updates["actual_start"] = now
		}
		if target == models.StatusCompleted {
			updates["actual_end"] = now
		}
		res := scope.Scoped(tx.Model(&models.Permit{})).
			Where("id = ? AND version = ?", permitID, s.Permit.Version).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.VersionConflict(s.Permit.Version, s.Permit.Version)
		}

		from := s.Permit.Status
		if err := appendAudit(tx, scope.TenantID, permitID, "status_"+target, actor.UserID, comments, ip, &from, &target); err != nil {
			return err
		}
		if target == models.StatusApproved {
			if err := obsoleteSiblingSteps(tx, scope, permitID, "approval", actor.UserID, now); err != nil {
				return err
			}
		}
		return scope.Scoped(tx).First(&out, "id = ?", permitID).Error
	})
	if err != nil {
		return models.Permit{}, err
	}
	if event, ok := EventFor(target); ok {
		e.sink.PermitEvent(event, out)
	}
	return out, nil
}

// obsoleteSiblingSteps completes the actor's pending step and marks the
// remaining steps at the same level obsolete; parallel approvals need only
// one decision.
func obsoleteSiblingSteps(tx *gorm.DB, scope tenant.Scope, permitID, stepName, userID string, now time.Time) error {
	var steps []models.PermitWorkflowStep
	err := scope.Scoped(tx).
		Where("permit_id = ? AND step_name = ? AND status = ?", permitID, stepName, models.StepPending).
		Find(&steps).Error
	if err != nil || len(steps) == 0 {
		return err
	}
	level := steps[0].Level
	for _, st := range steps {
		if st.Level != level {
			continue
		}
		if st.AssigneeID != nil && *st.AssigneeID == userID {
			st.Status = models.StepCompleted
			st.CompletedByID = &userID
			st.CompletedAt = &now
		} else {
			st.Status = models.StepObsolete
		}
		st.UpdatedAt = now
		if err := tx.Save(&st).Error; err != nil {
			return err
		}
	}
	return nil
}

// AssignVerifier binds an eligible verifier to the permit.
func (e *Engine) AssignVerifier(scope tenant.Scope, actor identity.Facet, permitID, verifierID string) (models.Permit, error) {
	return e.assignRole(scope, actor, permitID, verifierID, "verifier")
}

// AssignApprover binds an eligible approver to the permit.
func (e *Engine) AssignApprover(scope tenant.Scope, actor identity.Facet, permitID, approverID string) (models.Permit, error) {
	return e.assignRole(scope, actor, permitID, approverID, "approver")
}

func (e *Engine) assignRole(scope tenant.Scope, actor identity.Facet, permitID, userID, role string) (models.Permit, error) {
	var out models.Permit
	err := e.db.Transaction(func(tx *gorm.DB) error {
		var permit models.Permit
		if err := scope.Scoped(tx).First(&permit, "id = ?", permitID).Error; err != nil {
			return apperr.NotFound("permit")
		}
		if models.Terminal(permit.Status) {
			return apperr.WorkflowError(permit.Status, permit.Status)
		}
		var u models.User
		if err := scope.Scoped(tx).First(&u, "id = ? AND is_active", userID).Error; err != nil {
			return apperr.NotFound("user")
		}
		f := identity.Facet{AdminType: u.AdminType, CompanyType: identity.CompanyType(u.AdminType), Grade: u.Grade}
		col := "verifier_id"
		if role == "approver" {
			col = "approver_id"
			if !f.CanApprove() {
				return apperr.ValidationFailed("user not eligible to approve")
			}
		} else if !f.CanVerify() {
			return apperr.ValidationFailed("user not eligible to verify")
		}

		res := scope.Scoped(tx.Model(&models.Permit{})).
			Where("id = ? AND version = ?", permitID, permit.Version).
			Updates(map[string]any{col: userID, "version": permit.Version + 1, "updated_at": time.Now().UTC()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.VersionConflict(permit.Version, permit.Version)
		}
		if err := appendAudit(tx, scope.TenantID, permitID, "assign_"+role, actor.UserID, "", "", nil, nil); err != nil {
			return err
		}
		return scope.Scoped(tx).First(&out, "id = ?", permitID).Error
	})
	return out, err
}

// Expire is the scheduler's time-driven transition; it bypasses the actor
// guards but keeps the version guard and audit trail.
func (e *Engine) Expire(scope tenant.Scope, permit models.Permit) (models.Permit, error) {
	if permit.Status != models.StatusApproved && permit.Status != models.StatusActive {
		return permit, apperr.WorkflowError(permit.Status, models.StatusExpired)
	}
	var out models.Permit
	err := e.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		res := scope.Scoped(tx.Model(&models.Permit{})).
			Where("id = ? AND version = ?", permit.ID, permit.Version).
			Updates(map[string]any{
				"status":     models.StatusExpired,
				"version":    permit.Version + 1,
				"updated_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.VersionConflict(permit.Version, permit.Version)
		}
		from := permit.Status
		to := models.StatusExpired
		if err := appendAudit(tx, permit.TenantID, permit.ID, "auto_expired", permit.CreatedByID, "planned end passed", "", &from, &to); err != nil {
			return err
		}
		return scope.Scoped(tx).First(&out, "id = ?", permit.ID).Error
	})
	if err != nil {
		return permit, err
	}
	e.sink.PermitEvent(models.EventPermitExpired, out)
	return out, nil
}

// UpdateInput lists the mutable fields of a draft permit.
type UpdateInput struct {
	Title           *string            `json:"title"`
	Description     *string            `json:"description"`
	WorkLocation    *string            `json:"work_location"`
	PlannedStart    *time.Time         `json:"planned_start"`
	PlannedEnd      *time.Time         `json:"planned_end"`
	WorkNature      *string            `json:"work_nature"`
	RiskLevel       *string            `json:"risk_level"`
	Probability     *int               `json:"probability"`
	Severity        *int               `json:"severity"`
	PPERequirements models.StringArray `json:"ppe_requirements"`
	SafetyChecklist json.RawMessage    `json:"safety_checklist"`
	TenantID        string             `json:"tenant_id"`
}

// Update patches a permit before it enters review. Any attempt to move the
// row between tenants is rejected.
func (e *Engine) Update(scope tenant.Scope, actor identity.Facet, permitID string, in UpdateInput) (models.Permit, error) {
	var out models.Permit
	err := e.db.Transaction(func(tx *gorm.DB) error {
		var permit models.Permit
		if err := scope.Scoped(tx).First(&permit, "id = ?", permitID).Error; err != nil {
			return apperr.NotFound("permit")
		}
		if err := tenant.GuardImmutable(permit.TenantID, in.TenantID); err != nil {
			return err
		}
		if permit.Status != models.StatusDraft && permit.Status != models.StatusSubmitted {
			return apperr.ValidationFailed("only draft or submitted permits can be edited")
		}
		if actor.UserID != permit.CreatedByID && !actor.IsMaster() {
			return apperr.PermissionDenied("only the creator may edit")
		}

		updates := map[string]any{"version": permit.Version + 1, "updated_at": time.Now().UTC()}
		if in.Title != nil {
			updates["title"] = *in.Title
		}
		if in.Description != nil {
			updates["description"] = *in.Description
		}
		if in.WorkLocation != nil {
			updates["work_location"] = *in.WorkLocation
		}
		if in.PlannedStart != nil {
			updates["planned_start"] = in.PlannedStart.UTC()
		}
		if in.PlannedEnd != nil {
			updates["planned_end"] = in.PlannedEnd.UTC()
		}
		if in.WorkNature != nil {
			updates["work_nature"] = *in.WorkNature
		}
		if in.RiskLevel != nil {
			updates["risk_level"] = *in.RiskLevel
		}
		prob, sev := permit.Probability, permit.Severity
		if in.Probability != nil {
			prob = *in.Probability
			updates["probability"] = prob
		}
		if in.Severity != nil {
			sev = *in.Severity
			updates["severity"] = sev
		}
		updates["risk_score"] = prob * sev
		if in.PPERequirements != nil {
			updates["ppe_requirements"] = in.PPERequirements
		}
		if in.SafetyChecklist != nil {
			updates["safety_checklist"] = models.JSONB(in.SafetyChecklist)
		}

		res := scope.Scoped(tx.Model(&models.Permit{})).
			Where("id = ? AND version = ?", permitID, permit.Version).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.VersionConflict(permit.Version, permit.Version)
		}
		if err := appendAudit(tx, scope.TenantID, permitID, "updated", actor.UserID, "", "", nil, nil); err != nil {
			return err
		}
		return scope.Scoped(tx).First(&out, "id = ?", permitID).Error
	})
	return out, err
}

func strPtr(s string) *string { return &s }

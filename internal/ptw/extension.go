package ptw

import (
	"time"

	"gorm.io/gorm"

	"athens/internal/apperr"
	"athens/internal/models"
	"athens/internal/tenant"
)

// Shift boundaries used by the work-nature derivation: day work runs up to
// 18:00 local, night work up to 08:00 local.
const (
	dayShiftEndHour   = 18
	nightShiftEndHour = 8
)

// AffectsWorkNature reports whether the added stretch of work crosses the
// permit's shift boundary: day work crossing 18:00 local, night work
// crossing 08:00 local into daytime. The whole interval from the original
// end to the new end counts, so a day permit extended past midnight into
// the next morning still ran through 18:00. Permits covering both shifts
// are never affected.
func AffectsWorkNature(workNature string, originalEnd, newEnd time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.Local
	}
	var boundary int
	switch workNature {
	case models.WorkNatureDay:
		boundary = dayShiftEndHour
	case models.WorkNatureNight:
		boundary = nightShiftEndHour
	default:
		return false
	}
	from := originalEnd.In(loc)
	next := time.Date(from.Year(), from.Month(), from.Day(), boundary, 0, 0, 0, loc)
	if next.Before(from) {
		next = next.AddDate(0, 0, 1)
	}
	return !next.After(newEnd.In(loc))
}

// RequestExtension records a pending extension with derived fields.
func RequestExtension(db *gorm.DB, scope tenant.Scope, permit models.Permit, newEnd time.Time, newWorkNature *string, reason, userID string, loc *time.Location) (models.PermitExtension, error) {
	if permit.Status != models.StatusApproved && permit.Status != models.StatusActive {
		return models.PermitExtension{}, apperr.ValidationFailed("only approved or active permits can be extended")
	}
	if !newEnd.After(permit.PlannedEnd) {
		return models.PermitExtension{}, apperr.ValidationFailed("new_end must be after the current planned end")
	}
	if reason == "" {
		return models.PermitExtension{}, apperr.ValidationFailed("reason required")
	}
	ext := models.PermitExtension{
		TenantID:          scope.TenantID,
		PermitID:          permit.ID,
		OriginalEnd:       permit.PlannedEnd,
		NewEnd:            newEnd,
		ExtensionHours:    newEnd.Sub(permit.PlannedEnd).Hours(),
		NewWorkNature:     newWorkNature,
		Reason:            reason,
		Status:            models.DecisionPending,
		AffectsWorkNature: AffectsWorkNature(permit.WorkNature, permit.PlannedEnd, newEnd, loc),
		RequestedByID:     userID,
	}
	if err := db.Create(&ext).Error; err != nil {
		return models.PermitExtension{}, err
	}
	return ext, nil
}

// DecideExtension approves or rejects a pending extension. Approval moves
// the permit's planned end (and work nature, when requested) under the
// optimistic version guard.
func DecideExtension(db *gorm.DB, scope tenant.Scope, extID string, approve bool, comments, userID string) (models.PermitExtension, error) {
	var ext models.PermitExtension
	err := scope.Scoped(db).First(&ext, "id = ?", extID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return ext, apperr.NotFound("extension")
		}
		return ext, err
	}
	if ext.Status != models.DecisionPending {
		return ext, apperr.ValidationFailed("extension already decided")
	}

	now := time.Now().UTC()
	ext.DecidedByID = &userID
	ext.DecidedAt = &now
	ext.DecisionComments = comments
	if !approve {
		ext.Status = models.DecisionRejected
		return ext, db.Save(&ext).Error
	}
	ext.Status = models.DecisionApproved

	return ext, db.Transaction(func(tx *gorm.DB) error {
		var permit models.Permit
		if err := scope.Scoped(tx).First(&permit, "id = ?", ext.PermitID).Error; err != nil {
			return err
		}
		updates := map[string]any{
			"planned_end": ext.NewEnd,
			"version":     permit.Version + 1,
			"updated_at":  now,
		}
		if ext.NewWorkNature != nil {
			updates["work_nature"] = *ext.NewWorkNature
		}
		res := scope.Scoped(tx.Model(&models.Permit{})).
			Where("id = ? AND version = ?", permit.ID, permit.Version).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict("permit changed concurrently")
		}
		return tx.Save(&ext).Error
	})
}

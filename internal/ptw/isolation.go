package ptw

import (
	"time"

	"gorm.io/gorm"

	"athens/internal/apperr"
	"athens/internal/models"
	"athens/internal/tenant"
)

// Isolation point actions.
const (
	IsoActionIsolate   = "isolate"
	IsoActionVerify    = "verify"
	IsoActionDeisolate = "deisolate"
)

// GuardIsolationAction is the pure rule set for the isolation lifecycle:
// assigned -> isolated -> verified -> deisolated, isolate and verify by
// distinct users, lock applied before verify where the point demands it,
// deisolation only while the permit is active or suspended.
func GuardIsolationAction(permitStatus string, point models.PermitIsolationPoint, action, userID string, lockApplied bool) error {
	switch action {
	case IsoActionIsolate:
		if point.Status != models.IsoAssigned {
			return apperr.ValidationFailed("point must be assigned before isolation")
		}
	case IsoActionVerify:
		if point.Status != models.IsoIsolated {
			return apperr.ValidationFailed("point must be isolated before verification")
		}
		if point.IsolatedByID != nil && *point.IsolatedByID == userID {
			return apperr.ValidationFailed("isolation and verification require distinct users")
		}
		if point.RequiresLock && !lockApplied && !point.LockApplied {
			return apperr.ValidationFailed("lock must be applied before verification")
		}
	case IsoActionDeisolate:
		if point.Status != models.IsoVerified && point.Status != models.IsoIsolated {
			return apperr.ValidationFailed("point is not isolated")
		}
		if permitStatus != models.StatusActive && permitStatus != models.StatusSuspended {
			return apperr.ValidationFailed("deisolation requires an active or suspended permit")
		}
	default:
		return apperr.ValidationFailed("unknown isolation action " + action)
	}
	return nil
}

// ApplyIsolationAction mutates the point in place after the guard passed.
func ApplyIsolationAction(point *models.PermitIsolationPoint, action, userID string, lockApplied bool, lockIDs []string, notes string, now time.Time) {
	switch action {
	case IsoActionIsolate:
		point.Status = models.IsoIsolated
		point.IsolatedByID = &userID
		point.IsolatedAt = &now
		if lockApplied {
			point.LockApplied = true
			point.LockIDs = lockIDs
			point.LockCount = len(lockIDs)
			if point.LockCount == 0 {
				point.LockCount = 1
			}
		}
	case IsoActionVerify:
		point.Status = models.IsoVerified
		point.VerifiedByID = &userID
		point.VerifiedAt = &now
		if lockApplied {
			point.LockApplied = true
		}
	case IsoActionDeisolate:
		point.Status = models.IsoDeisolated
		point.DeisolatedByID = &userID
		point.DeisolatedAt = &now
		point.LockApplied = false
	}
	if notes != "" {
		point.Notes = notes
	}
	point.UpdatedAt = now
}

// AssignPoint attaches a library point (or a free-form custom point when
// libraryPointID is empty) to a permit.
func AssignPoint(db *gorm.DB, scope tenant.Scope, permit models.Permit, libraryPointID, pointCode, description string, required bool) (models.PermitIsolationPoint, error) {
	point := models.PermitIsolationPoint{
		TenantID:    scope.TenantID,
		PermitID:    permit.ID,
		PointCode:   pointCode,
		Description: description,
		Required:    required,
		Status:      models.IsoAssigned,
	}
	if libraryPointID != "" {
		var lib models.IsolationPointLibrary
		err := scope.Scoped(db).First(&lib, "id = ?", libraryPointID).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return point, apperr.NotFound("isolation point")
			}
			return point, err
		}
		point.LibraryPointID = &lib.ID
		point.PointCode = lib.PointCode
		point.PointType = lib.PointType
		point.EnergyType = lib.EnergyType
		point.RequiresLock = lib.RequiresLock
		if point.Description == "" {
			point.Description = lib.Description
		}
	}
	if point.PointCode == "" {
		return point, apperr.ValidationFailed("point_code required for custom isolation points")
	}
	if err := db.Create(&point).Error; err != nil {
		return point, err
	}
	return point, nil
}

package ptw

import (
	"gorm.io/gorm"

	"athens/internal/apperr"
	"athens/internal/models"
	"athens/internal/tenant"
)

// Snapshot is everything the pure decision logic needs about one permit.
type Snapshot struct {
	Permit     models.Permit
	Type       models.PermitType
	Points     []models.PermitIsolationPoint
	Readings   []models.GasReading
	Signatures []models.DigitalSignature
	Closeout   *models.PermitCloseout
}

// HasSignature reports whether any signature of the given type exists.
func (s Snapshot) HasSignature(sigType string) bool {
	for _, sig := range s.Signatures {
		if sig.SignatureType == sigType {
			return true
		}
	}
	return false
}

// SignedBy reports whether the given user has signed with the given type.
func (s Snapshot) SignedBy(sigType, userID string) bool {
	for _, sig := range s.Signatures {
		if sig.SignatureType == sigType && sig.SignatoryID == userID {
			return true
		}
	}
	return false
}

// LoadSnapshot fetches a permit and its satellites under tenant scope.
func LoadSnapshot(db *gorm.DB, scope tenant.Scope, permitID string) (Snapshot, error) {
	var s Snapshot
	err := scope.Scoped(db.Preload("PermitType")).First(&s.Permit, "id = ?", permitID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return s, apperr.NotFound("permit")
		}
		return s, err
	}
	if s.Permit.PermitType != nil {
		s.Type = *s.Permit.PermitType
	}
	if err := scope.Scoped(db).Where("permit_id = ?", permitID).Find(&s.Points).Error; err != nil {
		return s, err
	}
	if err := scope.Scoped(db).Where("permit_id = ?", permitID).Order("tested_at asc").Find(&s.Readings).Error; err != nil {
		return s, err
	}
	if err := scope.Scoped(db).Where("permit_id = ?", permitID).Find(&s.Signatures).Error; err != nil {
		return s, err
	}
	var co models.PermitCloseout
	err = scope.Scoped(db).Where("permit_id = ?", permitID).First(&co).Error
	if err == nil {
		s.Closeout = &co
	} else if err != gorm.ErrRecordNotFound {
		return s, err
	}
	return s, nil
}

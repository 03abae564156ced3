package ptw

import (
	"sort"
	"time"

	"gorm.io/gorm"

	"athens/internal/apperr"
	"athens/internal/models"
	"athens/internal/tenant"
)

// SelectCloseoutTemplate picks the active template for the permit type
// whose risk level matches the permit's, falling back to the active
// template with no risk level.
func SelectCloseoutTemplate(db *gorm.DB, scope tenant.Scope, permitTypeID, riskLevel string) (*models.CloseoutChecklistTemplate, error) {
	var tpl models.CloseoutChecklistTemplate
	err := scope.Scoped(db).
		Where("permit_type_id = ? AND is_active AND risk_level = ?", permitTypeID, riskLevel).
		First(&tpl).Error
	if err == nil {
		return &tpl, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	err = scope.Scoped(db).
		Where("permit_type_id = ? AND is_active AND risk_level IS NULL", permitTypeID).
		First(&tpl).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}

// MissingRequiredKeys lists template items with required=true whose
// checklist entry is not done, in stable order.
func MissingRequiredKeys(items models.ChecklistTemplateItems, state models.CloseoutState) []string {
	var missing []string
	for _, item := range items {
		if !item.Required {
			continue
		}
		if entry, ok := state[item.Key]; !ok || !entry.Done {
			missing = append(missing, item.Key)
		}
	}
	sort.Strings(missing)
	return missing
}

// UpdateCloseout merges checklist marks into the permit's closeout record,
// creating it against the best-matching template on first touch. Completion
// is append-only: a completed closeout rejects further changes.
func UpdateCloseout(db *gorm.DB, scope tenant.Scope, s Snapshot, marks map[string]bool, remarks string, complete bool, userID string) (*models.PermitCloseout, error) {
	now := time.Now().UTC()
	co := s.Closeout
	if co == nil {
		tpl, err := SelectCloseoutTemplate(db, scope, s.Permit.PermitTypeID, s.Permit.RiskLevel)
		if err != nil {
			return nil, err
		}
		co = &models.PermitCloseout{
			TenantID:  scope.TenantID,
			PermitID:  s.Permit.ID,
			Checklist: models.CloseoutState{},
		}
		if tpl != nil {
			co.TemplateID = &tpl.ID
		}
		if err := db.Create(co).Error; err != nil {
			return nil, err
		}
	}
	if co.Completed {
		return nil, apperr.ValidationFailed("closeout already completed")
	}

	if co.Checklist == nil {
		co.Checklist = models.CloseoutState{}
	}
	for key, done := range marks {
		entry := models.CloseoutItemState{Done: done}
		if done {
			entry.ByID = &userID
			entry.At = &now
		}
		co.Checklist[key] = entry
	}
	if remarks != "" {
		co.Remarks = remarks
	}

	if complete {
		var items models.ChecklistTemplateItems
		if co.TemplateID != nil {
			var tpl models.CloseoutChecklistTemplate
			if err := scope.Scoped(db).First(&tpl, "id = ?", *co.TemplateID).Error; err == nil {
				items = tpl.Items
			}
		}
		if missing := MissingRequiredKeys(items, co.Checklist); len(missing) > 0 {
			e := apperr.ValidationFailed("closeout_incomplete")
			return nil, e.With("missing", missing)
		}
		co.Completed = true
		co.CompletedByID = &userID
		co.CompletedAt = &now
	}

	co.UpdatedAt = now
	if err := db.Save(co).Error; err != nil {
		return nil, err
	}
	return co, nil
}

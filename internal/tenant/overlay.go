package tenant

import (
	"gorm.io/gorm"

	"athens/internal/apperr"
	"athens/internal/models"
)

// Overlay describes the widened visibility a collaboration grants on top
// of plain tenant scoping.
type Overlay struct {
	// Tenants holds the member tenant ids visible besides the caller's own.
	Tenants []string
	// ProjectIDs holds the member projects linked into the collaboration;
	// foreign rows are visible only inside linked projects.
	ProjectIDs []string
}

// ResolveOverlay checks membership and policy for (collab, domain, action).
// A caller outside the collaboration, or one whose policy does not cover
// the action, gets a nil overlay and falls back to tenant-only scope; WRITE
// without a WRITE policy is an explicit denial.
func ResolveOverlay(db *gorm.DB, scope Scope, collabID, domain, action string) (*Overlay, error) {
	var member models.CollaborationMember
	err := db.Where("collaboration_id = ? AND tenant_id = ?", collabID, scope.TenantID).
		First(&member).Error
	if err != nil {
		if action == models.CollabActionWrite {
			return nil, apperr.CollaborationWriteDenied()
		}
		return nil, nil
	}

	var policy models.CollaborationPolicy
	err = db.Where("collaboration_id = ? AND domain = ?", collabID, domain).
		First(&policy).Error
	if err != nil || !policy.AllowedActions.Contains(action) {
		if action == models.CollabActionWrite {
			return nil, apperr.CollaborationWriteDenied()
		}
		return nil, nil
	}

	var tenants []string
	if err := db.Model(&models.CollaborationMember{}).
		Where("collaboration_id = ?", collabID).
		Pluck("tenant_id", &tenants).Error; err != nil {
		return nil, err
	}
	var projects []string
	if err := db.Model(&models.CollaborationProjectLink{}).
		Where("collaboration_id = ?", collabID).
		Pluck("tenant_project_id", &projects).Error; err != nil {
		return nil, err
	}
	return &Overlay{Tenants: tenants, ProjectIDs: projects}, nil
}

// ScopedWithOverlay widens a query to collaboration rows: the caller's own
// tenant in full, plus linked projects of the other member tenants. A nil
// overlay degrades to plain tenant scope.
func (s Scope) ScopedWithOverlay(q *gorm.DB, ov *Overlay) *gorm.DB {
	if ov == nil || len(ov.Tenants) == 0 {
		return s.Scoped(q)
	}
	if len(ov.ProjectIDs) == 0 {
		return s.Scoped(q)
	}
	return q.Where(
		"tenant_id = ? OR (tenant_id IN ? AND project_id IN ?)",
		s.TenantID, ov.Tenants, ov.ProjectIDs,
	)
}

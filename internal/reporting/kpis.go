// Package reporting builds read-only KPI and exception views over the
// permit repositories. Everything is tenant-scoped and side-effect free.
package reporting

import (
	"time"

	"gorm.io/gorm"

	"athens/internal/escalation"
	"athens/internal/models"
	"athens/internal/tenant"
)

type TypeCount struct {
	PermitTypeID string `json:"permit_type_id"`
	Name         string `json:"name"`
	Count        int64  `json:"count"`
}

type KPIs struct {
	Total               int64            `json:"total"`
	ByStatus            map[string]int64 `json:"by_status"`
	OverdueVerification int64            `json:"overdue_verification"`
	OverdueApproval     int64            `json:"overdue_approval"`
	ExpiringSoon        int64            `json:"expiring_soon"`
	IsolationPending    int64            `json:"isolation_pending"`
	CloseoutPending     int64            `json:"closeout_pending"`
	TopPermitTypes      []TypeCount      `json:"top_permit_types"`
	IncidentRate        float64          `json:"incident_rate"`
	GeneratedAt         time.Time        `json:"generated_at"`
}

type Reporter struct {
	db  *gorm.DB
	cfg escalation.Config
}

func NewReporter(db *gorm.DB, cfg escalation.Config) *Reporter {
	return &Reporter{db: db, cfg: cfg}
}

// DB exposes the handle for callers composing their own read queries.
func (r *Reporter) DB() *gorm.DB { return r.db }

func (r *Reporter) base(scope tenant.Scope, projectID string) *gorm.DB {
	q := scope.Scoped(r.db.Model(&models.Permit{}))
	if projectID != "" {
		q = q.Where("project_id = ?", projectID)
	}
	return q
}

// KPIs aggregates the dashboard counters for a tenant (optionally one
// project).
func (r *Reporter) KPIs(scope tenant.Scope, projectID string) (KPIs, error) {
	now := time.Now().UTC()
	out := KPIs{ByStatus: map[string]int64{}, TopPermitTypes: []TypeCount{}, GeneratedAt: now}

	if err := r.base(scope, projectID).Count(&out.Total).Error; err != nil {
		return out, err
	}

	type statusCount struct {
		Status string
		N      int64
	}
	var rows []statusCount
	err := r.base(scope, projectID).
		Select("status, count(*) as n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return out, err
	}
	for _, row := range rows {
		out.ByStatus[row.Status] = row.N
	}

	vCutoff := now.Add(-r.cfg.VerificationSLA)
	if err := r.base(scope, projectID).
		Where("status = ? AND updated_at < ?", models.StatusSubmitted, vCutoff).
		Count(&out.OverdueVerification).Error; err != nil {
		return out, err
	}
	aCutoff := now.Add(-r.cfg.ApprovalSLA)
	if err := r.base(scope, projectID).
		Where("status = ? AND updated_at < ?", models.StatusUnderReview, aCutoff).
		Count(&out.OverdueApproval).Error; err != nil {
		return out, err
	}

	soonFrom, soonTo := r.cfg.ExpiringSoonWindow(now)
	if err := r.base(scope, projectID).
		Where("status IN ? AND planned_end BETWEEN ? AND ?",
			[]string{models.StatusApproved, models.StatusActive}, soonFrom, soonTo).
		Count(&out.ExpiringSoon).Error; err != nil {
		return out, err
	}

	if err := scope.Scoped(r.db.Model(&models.PermitIsolationPoint{})).
		Where("required AND status NOT IN ?", []string{models.IsoVerified, models.IsoDeisolated, models.IsoCancelled}).
		Distinct("permit_id").
		Count(&out.IsolationPending).Error; err != nil {
		return out, err
	}

	if err := r.base(scope, projectID).
		Where("status = ? AND id NOT IN (?)", models.StatusActive,
			scope.Scoped(r.db.Model(&models.PermitCloseout{})).Where("completed").Select("permit_id")).
		Count(&out.CloseoutPending).Error; err != nil {
		return out, err
	}

	err = r.base(scope, projectID).
		Select("permits.permit_type_id, permit_types.name, count(*) as count").
		Joins("JOIN permit_types ON permit_types.id = permits.permit_type_id").
		Group("permits.permit_type_id, permit_types.name").
		Order("count desc").
		Limit(5).
		Scan(&out.TopPermitTypes).Error
	if err != nil {
		return out, err
	}

	if out.Total > 0 {
		var incidents int64
		q := scope.Scoped(r.db.Model(&models.Incident{})).
			Where("work_permit_number IN (?)", r.base(scope, projectID).Select("permit_number"))
		if err := q.Count(&incidents).Error; err != nil {
			return out, err
		}
		out.IncidentRate = float64(incidents) / float64(out.Total) * 100
	}
	return out, nil
}

type Summary struct {
	From      time.Time        `json:"from"`
	To        time.Time        `json:"to"`
	Created   int64            `json:"created"`
	Completed int64            `json:"completed"`
	Cancelled int64            `json:"cancelled"`
	Expired   int64            `json:"expired"`
	ByStatus  map[string]int64 `json:"by_status"`
}

// Summary counts permit activity inside a date range.
func (r *Reporter) Summary(scope tenant.Scope, projectID string, from, to time.Time) (Summary, error) {
	out := Summary{From: from, To: to, ByStatus: map[string]int64{}}
	ranged := func() *gorm.DB {
		return r.base(scope, projectID).Where("created_at BETWEEN ? AND ?", from, to)
	}
	if err := ranged().Count(&out.Created).Error; err != nil {
		return out, err
	}
	if err := ranged().Where("status = ?", models.StatusCompleted).Count(&out.Completed).Error; err != nil {
		return out, err
	}
	if err := ranged().Where("status = ?", models.StatusCancelled).Count(&out.Cancelled).Error; err != nil {
		return out, err
	}
	if err := ranged().Where("status = ?", models.StatusExpired).Count(&out.Expired).Error; err != nil {
		return out, err
	}
	type statusCount struct {
		Status string
		N      int64
	}
	var rows []statusCount
	if err := ranged().Select("status, count(*) as n").Group("status").Scan(&rows).Error; err != nil {
		return out, err
	}
	for _, row := range rows {
		out.ByStatus[row.Status] = row.N
	}
	return out, nil
}

type Exceptions struct {
	OverdueVerification []models.Permit `json:"overdue_verification"`
	OverdueApproval     []models.Permit `json:"overdue_approval"`
	ExpiringSoon        []models.Permit `json:"expiring_soon"`
	Expired             []models.Permit `json:"expired"`
}

// Exceptions lists the permits behind the KPI exception counters.
func (r *Reporter) Exceptions(scope tenant.Scope, projectID string) (Exceptions, error) {
	now := time.Now().UTC()
	var out Exceptions

	err := r.base(scope, projectID).
		Where("status = ? AND updated_at < ?", models.StatusSubmitted, now.Add(-r.cfg.VerificationSLA)).
		Order("updated_at asc").
		Find(&out.OverdueVerification).Error
	if err != nil {
		return out, err
	}
	err = r.base(scope, projectID).
		Where("status = ? AND updated_at < ?", models.StatusUnderReview, now.Add(-r.cfg.ApprovalSLA)).
		Order("updated_at asc").
		Find(&out.OverdueApproval).Error
	if err != nil {
		return out, err
	}
	soonFrom, soonTo := r.cfg.ExpiringSoonWindow(now)
	err = r.base(scope, projectID).
		Where("status IN ? AND planned_end BETWEEN ? AND ?",
			[]string{models.StatusApproved, models.StatusActive}, soonFrom, soonTo).
		Order("planned_end asc").
		Find(&out.ExpiringSoon).Error
	if err != nil {
		return out, err
	}
	err = r.base(scope, projectID).
		Where("status = ?", models.StatusExpired).
		Order("updated_at desc").
		Limit(100).
		Find(&out.Expired).Error
	return out, err
}

package models

import "time"

// Incident is the slim tenant-scoped record the KPI views join against;
// the full incident module lives outside the PTW core.
type Incident struct {
	ID                 string     `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TenantID           string     `gorm:"type:uuid;not null;index" json:"tenant_id"`
	ProjectID          *string    `gorm:"type:uuid;index" json:"project_id,omitempty"`
	Title              string     `gorm:"not null" json:"title"`
	Severity           string     `json:"severity"`
	WorkPermitNumber   *string    `gorm:"index" json:"work_permit_number,omitempty"`
	OccurredAt         time.Time  `json:"occurred_at"`
	ReportedByID       *string    `gorm:"type:uuid" json:"reported_by,omitempty"`
	ClosedAt           *time.Time `json:"closed_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

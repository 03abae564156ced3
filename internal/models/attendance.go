package models

import "time"

// Attendance modules.
const (
	ModuleRegular  = "REGULAR"
	ModuleTraining = "TRAINING"
	ModuleTBT      = "TBT"
)

// Attendance event types.
const (
	EventCheckIn  = "CHECK_IN"
	EventCheckOut = "CHECK_OUT"
)

// Attendance capture methods.
const (
	MethodSelfConfirm = "SELF_CONFIRM"
	MethodPIN         = "PIN"
	MethodQR          = "QR"
	MethodFace        = "FACE"
	MethodNFC         = "NFC"
)

// AttendanceEvent rows are idempotent per (tenant, client_event_id); the
// same client event id may exist in two tenants.
type AttendanceEvent struct {
	ID            string    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TenantID      string    `gorm:"type:uuid;not null;uniqueIndex:uq_attendance_client_event,priority:1" json:"tenant_id"`
	ClientEventID string    `gorm:"not null;uniqueIndex:uq_attendance_client_event,priority:2" json:"client_event_id"`
	ProjectID     *string   `gorm:"type:uuid;index" json:"project_id,omitempty"`
	WorkerID      *string   `gorm:"type:uuid" json:"worker_id,omitempty"`
	Module        string    `gorm:"not null" json:"module"`
	ModuleRefID   string    `gorm:"not null" json:"module_ref_id"`
	EventType     string    `gorm:"not null" json:"event_type"`
	OccurredAt    time.Time `gorm:"not null" json:"occurred_at"`
	DeviceID      string    `json:"device_id"`
	Offline       bool      `gorm:"not null;default:false" json:"offline"`
	Method        string    `gorm:"not null;default:SELF_CONFIRM" json:"method"`
	Location      JSONB     `gorm:"type:jsonb;default:'{}'::jsonb" json:"location,omitempty"`
	Payload       JSONB     `gorm:"type:jsonb;default:'{}'::jsonb" json:"payload,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type TrainingSession struct {
	ID          string     `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TenantID    string     `gorm:"type:uuid;not null;index" json:"tenant_id"`
	ProjectID   string     `gorm:"type:uuid;not null;index" json:"project_id"`
	Title       string     `gorm:"not null" json:"title"`
	JoinCode    string     `gorm:"size:12" json:"-"`
	QRToken     string     `gorm:"size:64" json:"-"`
	QRExpiresAt *time.Time `json:"qr_expires_at,omitempty"`
	StartsAt    time.Time  `json:"starts_at"`
	IsActive    bool       `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type ToolboxTalk struct {
	ID          string    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TenantID    string    `gorm:"type:uuid;not null;index" json:"tenant_id"`
	ProjectID   string    `gorm:"type:uuid;not null;index" json:"project_id"`
	Topic       string    `gorm:"not null" json:"topic"`
	ScheduledAt time.Time `json:"scheduled_at"`
	ConductedBy *string   `gorm:"type:uuid" json:"conducted_by,omitempty"`
	IsActive    bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

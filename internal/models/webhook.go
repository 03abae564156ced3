package models

import "time"

// Webhook trigger events.
const (
	EventPermitCreated   = "permit_created"
	EventPermitSubmitted = "permit_submitted"
	EventPermitVerified  = "permit_verified"
	EventPermitApproved  = "permit_approved"
	EventPermitRejected  = "permit_rejected"
	EventPermitActivated = "permit_activated"
	EventPermitCompleted = "permit_completed"
	EventPermitExpired   = "permit_expired"
)

// Delivery log statuses.
const (
	DeliveryQueued  = "queued"
	DeliverySuccess = "success"
	DeliveryFailed  = "failed"
)

type WebhookEndpoint struct {
	ID        string      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TenantID  string      `gorm:"type:uuid;not null;index" json:"tenant_id"`
	ProjectID *string     `gorm:"type:uuid" json:"project_id,omitempty"`
	Name      string      `gorm:"not null" json:"name"`
	URL       string      `gorm:"not null" json:"url"`
	Secret    string      `gorm:"not null" json:"-"`
	Enabled   bool        `gorm:"not null;default:true" json:"enabled"`
	Events    StringArray `gorm:"type:jsonb;default:'[]'::jsonb" json:"events"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// WebhookDeliveryLog is append-only; DedupeKey collapses repeats within an
// hour bucket.
type WebhookDeliveryLog struct {
	ID            int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID      string     `gorm:"type:uuid;not null;index" json:"tenant_id"`
	WebhookID     string     `gorm:"type:uuid;not null;index" json:"webhook_id"`
	Event         string     `gorm:"not null" json:"event"`
	PermitID      *string    `gorm:"type:uuid" json:"permit_id,omitempty"`
	DedupeKey     string     `gorm:"size:64;not null;uniqueIndex" json:"dedupe_key"`
	Payload       JSONB      `gorm:"type:jsonb;default:'{}'::jsonb" json:"payload"`
	Status        string     `gorm:"not null;default:queued;index" json:"status"`
	ResponseCode  *int       `json:"response_code,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	RetryCount    int        `gorm:"not null;default:0" json:"retry_count"`
	NextAttemptAt *time.Time `gorm:"index" json:"next_attempt_at,omitempty"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

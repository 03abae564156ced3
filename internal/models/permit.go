package models

import "time"

// Permit workflow statuses.
const (
	StatusDraft               = "draft"
	StatusSubmitted           = "submitted"
	StatusPendingVerification = "pending_verification"
	StatusUnderReview         = "under_review"
	StatusPendingApproval     = "pending_approval"
	StatusApproved            = "approved"
	StatusActive              = "active"
	StatusSuspended           = "suspended"
	StatusCompleted           = "completed"
	StatusCancelled           = "cancelled"
	StatusExpired             = "expired"
	StatusRejected            = "rejected"
)

// Work nature values.
const (
	WorkNatureDay   = "day"
	WorkNatureNight = "night"
	WorkNatureBoth  = "both"
)

// Permit type categories.
const (
	CategoryHotWork      = "hot_work"
	CategoryConfined     = "confined_space"
	CategoryElectrical   = "electrical"
	CategoryHeight       = "height"
	CategoryExcavation   = "excavation"
	CategoryChemical     = "chemical"
	CategoryCraneLifting = "crane_lifting"
	CategoryColdWork     = "cold_work"
	CategorySpecialized  = "specialized"
	CategoryAirline      = "airline"
	CategoryBiological   = "biological"
)

// Signature types.
const (
	SigRequestor     = "requestor"
	SigVerifier      = "verifier"
	SigApprover      = "approver"
	SigIssuer        = "issuer"
	SigReceiver      = "receiver"
	SigSafetyOfficer = "safety_officer"
	SigAreaManager   = "area_manager"
	SigWitness       = "witness"
)

// Isolation point lifecycle.
const (
	IsoAssigned   = "assigned"
	IsoIsolated   = "isolated"
	IsoVerified   = "verified"
	IsoDeisolated = "deisolated"
	IsoCancelled  = "cancelled"
)

// Gas reading verdicts.
const (
	GasSafe   = "safe"
	GasUnsafe = "unsafe"
)

// Extension / workflow step decisions.
const (
	DecisionPending  = "pending"
	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)

// Workflow step statuses.
const (
	StepPending   = "pending"
	StepCompleted = "completed"
	StepObsolete  = "obsolete"
)

type PermitType struct {
	ID                            string      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TenantID                      string      `gorm:"type:uuid;not null;index" json:"tenant_id"`
	Name                          string      `gorm:"not null" json:"name"`
	Category                      string      `gorm:"not null" json:"category"`
	RiskLevel                     string      `json:"risk_level"`
	ValidityHours                 int         `gorm:"not null;default:8" json:"validity_hours"`
	RequiresGasTesting            bool        `gorm:"not null;default:false" json:"requires_gas_testing"`
	RequiresStructuredIsolation   bool        `gorm:"not null;default:false" json:"requires_structured_isolation"`
	RequiresFireWatch             bool        `gorm:"not null;default:false" json:"requires_fire_watch"`
	RequiresDeisolationOnCloseout bool        `gorm:"not null;default:false" json:"requires_deisolation_on_closeout"`
	RequiresIssuerSignature       bool        `gorm:"not null;default:false" json:"requires_issuer_signature"`
	RequiresReceiverSignature     bool        `gorm:"not null;default:false" json:"requires_receiver_signature"`
	MandatoryPPE                  StringArray `gorm:"type:jsonb;default:'[]'::jsonb" json:"mandatory_ppe"`
	FormTemplate                  JSONB       `gorm:"type:jsonb;default:'{}'::jsonb" json:"form_template"`
	ProjectOverridesEnabled       bool        `gorm:"not null;default:false" json:"project_overrides_enabled"`
	IsActive                      bool        `gorm:"not null;default:true" json:"is_active"`
	CreatedAt                     time.Time   `json:"created_at"`
	UpdatedAt                     time.Time   `json:"updated_at"`
}

type PermitTypeTemplateOverride struct {
	ID               string    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TenantID         string    `gorm:"type:uuid;not null;index" json:"tenant_id"`
	ProjectID        string    `gorm:"type:uuid;not null;uniqueIndex:uq_type_override,priority:1" json:"project_id"`
	PermitTypeID     string    `gorm:"type:uuid;not null;uniqueIndex:uq_type_override,priority:2" json:"permit_type_id"`
	OverrideTemplate JSONB     `gorm:"type:jsonb;default:'{}'::jsonb" json:"override_template"`
	OverridePrefill  JSONB     `gorm:"type:jsonb;default:'{}'::jsonb" json:"override_prefill"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type Permit struct {
	ID           string `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TenantID     string `gorm:"type:uuid;not null;index;index:idx_permits_tenant_status,priority:1;uniqueIndex:uq_permit_number,priority:1" json:"tenant_id"`
	ProjectID    string `gorm:"type:uuid;not null;index" json:"project_id"`
	PermitTypeID string `gorm:"type:uuid;not null" json:"permit_type_id"`
	PermitNumber string `gorm:"not null;uniqueIndex:uq_permit_number,priority:2" json:"permit_number"`

	Status  string `gorm:"not null;default:draft;index:idx_permits_tenant_status,priority:2" json:"status"`
	Version int    `gorm:"not null;default:1" json:"version"`

	Title        string `gorm:"not null" json:"title"`
	Description  string `json:"description"`
	WorkLocation string `json:"work_location"`

	PlannedStart time.Time  `gorm:"not null" json:"planned_start"`
	PlannedEnd   time.Time  `gorm:"not null" json:"planned_end"`
	ActualStart  *time.Time `json:"actual_start,omitempty"`
	ActualEnd    *time.Time `json:"actual_end,omitempty"`
	WorkNature   string     `gorm:"not null;default:day" json:"work_nature"`

	RiskLevel   string `json:"risk_level"`
	Probability int    `gorm:"not null;default:1" json:"probability"`
	Severity    int    `gorm:"not null;default:1" json:"severity"`
	RiskScore   int    `gorm:"not null;default:1" json:"risk_score"`

	CreatedByID string  `gorm:"type:uuid;not null" json:"created_by"`
	VerifierID  *string `gorm:"type:uuid" json:"verifier_id,omitempty"`
	ApproverID  *string `gorm:"type:uuid" json:"approver_id,omitempty"`
	IssuerID    *string `gorm:"type:uuid" json:"issuer_id,omitempty"`
	// ReceiverID always equals CreatedByID.
	ReceiverID string `gorm:"type:uuid;not null" json:"receiver_id"`

	PPERequirements StringArray `gorm:"type:jsonb;default:'[]'::jsonb" json:"ppe_requirements"`
	// SafetyChecklist is heterogeneous in the wild (map, list or null);
	// normalize through ParseChecklist before inspecting it.
	SafetyChecklist JSONB `gorm:"type:jsonb" json:"safety_checklist"`

	PermitType *PermitType `gorm:"foreignKey:PermitTypeID" json:"permit_type,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`
}

// Terminal reports whether no further workflow transition may leave s.
func Terminal(s string) bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusExpired, StatusRejected:
		return true
	}
	return false
}

type IsolationPointLibrary struct {
	ID               string      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TenantID         string      `gorm:"type:uuid;not null;index" json:"tenant_id"`
	ProjectID        string      `gorm:"type:uuid;not null;uniqueIndex:uq_iso_point_code,priority:1" json:"project_id"`
	PointCode        string      `gorm:"not null;uniqueIndex:uq_iso_point_code,priority:2" json:"point_code"`
	Description      string      `json:"description"`
	PointType        string      `gorm:"not null;default:valve" json:"point_type"`
	EnergyType       string      `gorm:"not null;default:mechanical" json:"energy_type"`
	Location         string      `json:"location"`
	RequiresLock     bool        `gorm:"not null;default:true" json:"requires_lock"`
	DefaultLockCount int         `gorm:"not null;default:1" json:"default_lock_count"`
	PPERequired      StringArray `gorm:"type:jsonb;default:'[]'::jsonb" json:"ppe_required"`
	IsActive         bool        `gorm:"not null;default:true" json:"is_active"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

type PermitIsolationPoint struct {
	ID             string      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TenantID       string      `gorm:"type:uuid;not null;index" json:"tenant_id"`
	PermitID       string      `gorm:"type:uuid;not null;index" json:"permit_id"`
	LibraryPointID *string     `gorm:"type:uuid" json:"library_point_id,omitempty"`
	PointCode      string      `gorm:"not null" json:"point_code"`
	PointType      string      `json:"point_type"`
	EnergyType     string      `json:"energy_type"`
	Description    string      `json:"description"`
	Required       bool        `gorm:"not null;default:true" json:"required"`
	RequiresLock   bool        `gorm:"not null;default:true" json:"requires_lock"`
	Status         string      `gorm:"not null;default:assigned" json:"status"`
	LockApplied    bool        `gorm:"not null;default:false" json:"lock_applied"`
	LockCount      int         `gorm:"not null;default:0" json:"lock_count"`
	LockIDs        StringArray `gorm:"type:jsonb;default:'[]'::jsonb" json:"lock_ids"`
	IsolatedByID   *string     `gorm:"type:uuid" json:"isolated_by,omitempty"`
	IsolatedAt     *time.Time  `json:"isolated_at,omitempty"`
	VerifiedByID   *string     `gorm:"type:uuid" json:"verified_by,omitempty"`
	VerifiedAt     *time.Time  `json:"verified_at,omitempty"`
	DeisolatedByID *string     `gorm:"type:uuid" json:"deisolated_by,omitempty"`
	DeisolatedAt   *time.Time  `json:"deisolated_at,omitempty"`
	Notes          string      `json:"notes"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

type GasReading struct {
	ID              string    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TenantID        string    `gorm:"type:uuid;not null;index" json:"tenant_id"`
	PermitID        string    `gorm:"type:uuid;not null;index" json:"permit_id"`
	GasType         string    `gorm:"not null" json:"gas_type"`
	Reading         float64   `gorm:"not null" json:"reading"`
	Unit            string    `json:"unit"`
	AcceptableRange string    `json:"acceptable_range"`
	Status          string    `gorm:"not null" json:"status"`
	TestedByID      string    `gorm:"type:uuid;not null" json:"tested_by"`
	TestedAt        time.Time `gorm:"not null" json:"tested_at"`
	EquipmentUsed   string    `json:"equipment_used"`
	CreatedAt       time.Time `json:"created_at"`
}

type CloseoutChecklistTemplate struct {
	ID           string                 `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TenantID     string                 `gorm:"type:uuid;not null;index" json:"tenant_id"`
	PermitTypeID string                 `gorm:"type:uuid;not null;index" json:"permit_type_id"`
	RiskLevel    *string                `json:"risk_level,omitempty"`
	Items        ChecklistTemplateItems `gorm:"type:jsonb;default:'[]'::jsonb" json:"items"`
	IsActive     bool                   `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

type PermitCloseout struct {
	ID            string        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TenantID      string        `gorm:"type:uuid;not null;index" json:"tenant_id"`
	PermitID      string        `gorm:"type:uuid;not null;uniqueIndex" json:"permit_id"`
	TemplateID    *string       `gorm:"type:uuid" json:"template_id,omitempty"`
	Checklist     CloseoutState `gorm:"type:jsonb;default:'{}'::jsonb" json:"checklist"`
	Remarks       string        `json:"remarks"`
	Completed     bool          `gorm:"not null;default:false" json:"completed"`
	CompletedByID *string       `gorm:"type:uuid" json:"completed_by,omitempty"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

type DigitalSignature struct {
	ID            string    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TenantID      string    `gorm:"type:uuid;not null;index" json:"tenant_id"`
	PermitID      string    `gorm:"type:uuid;not null;uniqueIndex:uq_signature,priority:1" json:"permit_id"`
	SignatureType string    `gorm:"not null;uniqueIndex:uq_signature,priority:2" json:"signature_type"`
	SignatoryID   string    `gorm:"type:uuid;not null;uniqueIndex:uq_signature,priority:3" json:"signatory_id"`
	SignedAt      time.Time `gorm:"not null" json:"signed_at"`
	SignatureData string    `json:"-"`
	IPAddress     string    `json:"ip_address,omitempty"`
	DeviceInfo    string    `json:"device_info,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// PermitAudit is append-only.
type PermitAudit struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID   string    `gorm:"type:uuid;not null;index" json:"tenant_id"`
	PermitID   string    `gorm:"type:uuid;not null;index" json:"permit_id"`
	Action     string    `gorm:"not null" json:"action"`
	UserID     string    `gorm:"type:uuid;not null" json:"user_id"`
	FromStatus *string   `json:"from_status,omitempty"`
	ToStatus   *string   `json:"to_status,omitempty"`
	Comments   string    `json:"comments"`
	IPAddress  string    `json:"ip_address,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type PermitExtension struct {
	ID                string     `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TenantID          string     `gorm:"type:uuid;not null;index" json:"tenant_id"`
	PermitID          string     `gorm:"type:uuid;not null;index" json:"permit_id"`
	OriginalEnd       time.Time  `gorm:"not null" json:"original_end"`
	NewEnd            time.Time  `gorm:"not null" json:"new_end"`
	ExtensionHours    float64    `gorm:"not null" json:"extension_hours"`
	NewWorkNature     *string    `json:"new_work_nature,omitempty"`
	Reason            string     `gorm:"not null" json:"reason"`
	Status            string     `gorm:"not null;default:pending" json:"status"`
	AffectsWorkNature bool       `gorm:"not null;default:false" json:"affects_work_nature"`
	RequestedByID     string     `gorm:"type:uuid;not null" json:"requested_by"`
	DecidedByID       *string    `gorm:"type:uuid" json:"decided_by,omitempty"`
	DecidedAt         *time.Time `json:"decided_at,omitempty"`
	DecisionComments  string     `json:"decision_comments"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// PermitWorkflowStep tracks parallel approval steps at the same level; one
// completion marks siblings obsolete.
type PermitWorkflowStep struct {
	ID            string     `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TenantID      string     `gorm:"type:uuid;not null;index" json:"tenant_id"`
	PermitID      string     `gorm:"type:uuid;not null;index" json:"permit_id"`
	StepName      string     `gorm:"not null" json:"step_name"`
	Level         int        `gorm:"not null;default:1" json:"level"`
	Role          string     `json:"role"`
	AssigneeID    *string    `gorm:"type:uuid" json:"assignee_id,omitempty"`
	Status        string     `gorm:"not null;default:pending" json:"status"`
	CompletedByID *string    `gorm:"type:uuid" json:"completed_by,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type EscalationRule struct {
	ID             string    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TenantID       string    `gorm:"type:uuid;not null;index" json:"tenant_id"`
	PermitTypeID   *string   `gorm:"type:uuid" json:"permit_type_id,omitempty"`
	StepName       string    `gorm:"not null" json:"step_name"`
	TimeLimitHours int       `gorm:"not null" json:"time_limit_hours"`
	EscalateToRole string    `gorm:"not null" json:"escalate_to_role"`
	IsActive       bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// EscalationNotice dedupes overdue notifications by (permit, step, day).
type EscalationNotice struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID       string    `gorm:"type:uuid;not null;index" json:"tenant_id"`
	PermitID       string    `gorm:"type:uuid;not null;uniqueIndex:uq_escalation_notice,priority:1" json:"permit_id"`
	Step           string    `gorm:"not null;uniqueIndex:uq_escalation_notice,priority:2" json:"step"`
	OverdueDay     string    `gorm:"size:10;not null;uniqueIndex:uq_escalation_notice,priority:3" json:"overdue_day"`
	NotifiedUserID *string   `gorm:"type:uuid" json:"notified_user_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

package models

import "time"

// User types.
const (
	UserTypeAdminUser    = "adminuser"
	UserTypeProjectAdmin = "projectadmin"
	UserTypeMaster       = "master"
)

// Admin types. The *user variants collapse onto their company type in
// identity.CompanyType.
const (
	AdminTypeMaster         = "master"
	AdminTypeClient         = "client"
	AdminTypeEPC            = "epc"
	AdminTypeContractor     = "contractor"
	AdminTypeClientUser     = "clientuser"
	AdminTypeEPCUser        = "epcuser"
	AdminTypeContractorUser = "contractoruser"
)

type Tenant struct {
	ID             string      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name           string      `gorm:"not null" json:"name"`
	MasterAdminID  *string     `gorm:"type:uuid" json:"master_admin_id,omitempty"`
	EnabledModules StringArray `gorm:"type:jsonb;default:'[]'::jsonb" json:"enabled_modules"`
	EnabledMenus   StringArray `gorm:"type:jsonb;default:'[]'::jsonb" json:"enabled_menus"`
	IsActive       bool        `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

type Project struct {
	ID        string    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TenantID  string    `gorm:"type:uuid;not null;index" json:"tenant_id"`
	Name      string    `gorm:"not null" json:"name"`
	Code      string    `json:"code"`
	Location  string    `json:"location"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type User struct {
	ID           string    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TenantID     string    `gorm:"type:uuid;not null;index" json:"tenant_id"`
	ProjectID    *string   `gorm:"type:uuid;index" json:"project_id,omitempty"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	FullName     string    `json:"full_name"`
	UserType     string    `gorm:"not null;default:adminuser" json:"user_type"`
	AdminType    string    `gorm:"not null;default:contractoruser" json:"admin_type"`
	Grade        string    `gorm:"size:1" json:"grade"`
	CompanyName  string    `json:"company_name"`
	CreatedByID  *string   `gorm:"type:uuid" json:"created_by,omitempty"`
	IsActive     bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Session struct {
	JTI       string     `gorm:"primaryKey;size:64" json:"jti"`
	UserID    string     `gorm:"type:uuid;index;not null" json:"user_id"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Collaboration actions a share policy may grant.
const (
	CollabActionRead  = "READ"
	CollabActionWrite = "WRITE"
)

// CollaborationProject is a cross-tenant share overlay. Member tenants see
// each other's rows for the domains a policy opens up.
type CollaborationProject struct {
	ID            string    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name          string    `gorm:"not null" json:"name"`
	OwnerTenantID string    `gorm:"type:uuid;not null;index" json:"owner_tenant_id"`
	IsActive      bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type CollaborationMember struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CollaborationID string    `gorm:"type:uuid;not null;uniqueIndex:uq_collab_member,priority:1" json:"collaboration_id"`
	TenantID        string    `gorm:"type:uuid;not null;uniqueIndex:uq_collab_member,priority:2" json:"tenant_id"`
	Role            string    `gorm:"not null;default:member" json:"role"`
	CreatedAt       time.Time `json:"created_at"`
}

type CollaborationPolicy struct {
	ID              int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	CollaborationID string      `gorm:"type:uuid;not null;uniqueIndex:uq_collab_policy,priority:1" json:"collaboration_id"`
	Domain          string      `gorm:"not null;uniqueIndex:uq_collab_policy,priority:2" json:"domain"`
	AllowedActions  StringArray `gorm:"type:jsonb;default:'[]'::jsonb" json:"allowed_actions"`
	CreatedAt       time.Time   `json:"created_at"`
}

// CollaborationProjectLink binds a member tenant's own project into the
// collaboration so overlay queries can widen to it.
type CollaborationProjectLink struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CollaborationID string    `gorm:"type:uuid;not null;index" json:"collaboration_id"`
	TenantID        string    `gorm:"type:uuid;not null" json:"tenant_id"`
	TenantProjectID string    `gorm:"type:uuid;not null" json:"tenant_project_id"`
	CreatedAt       time.Time `json:"created_at"`
}

// SchedulerRun persists per-job run state so escalation progress survives
// restarts.
type SchedulerRun struct {
	JobName       string     `gorm:"primaryKey;size:64" json:"job_name"`
	LastRunAt     time.Time  `json:"last_run_at"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
	LastError     string     `json:"last_error"`
}

// Package identity classifies a request principal into role capabilities
// and checks project scoping. Everything here is pure.
package identity

import (
	"athens/internal/auth"
	"athens/internal/models"
)

// Facet is the resolved actor profile handlers authorize against.
type Facet struct {
	UserID      string
	TenantID    string
	ProjectID   string
	UserType    string
	AdminType   string
	CompanyType string
	Grade       string
}

// FromClaims builds a facet from authenticated claims.
func FromClaims(c auth.Claims) Facet {
	return Facet{
		UserID:      c.Subject,
		TenantID:    c.TenantID,
		ProjectID:   c.ProjectID,
		UserType:    c.UserType,
		AdminType:   c.AdminType,
		CompanyType: CompanyType(c.AdminType),
		Grade:       c.Grade,
	}
}

// CompanyType collapses the *user admin types onto their company.
func CompanyType(adminType string) string {
	switch adminType {
	case models.AdminTypeClientUser:
		return models.AdminTypeClient
	case models.AdminTypeEPCUser:
		return models.AdminTypeEPC
	case models.AdminTypeContractorUser:
		return models.AdminTypeContractor
	}
	return adminType
}

// IsMaster reports whether the actor bypasses project scoping.
func (f Facet) IsMaster() bool {
	return f.UserType == models.UserTypeMaster || f.AdminType == models.AdminTypeMaster
}

// CanVerify: epc or client company, grade B or C.
func (f Facet) CanVerify() bool {
	if f.CompanyType != models.AdminTypeEPC && f.CompanyType != models.AdminTypeClient {
		return false
	}
	return f.Grade == "B" || f.Grade == "C"
}

// CanApprove: epc or client company, grade A or B.
func (f Facet) CanApprove() bool {
	if f.CompanyType != models.AdminTypeEPC && f.CompanyType != models.AdminTypeClient {
		return false
	}
	return f.Grade == "A" || f.Grade == "B"
}

// SeesProject reports whether the actor may touch rows of the given
// project. Masters see every project of their tenant; rows without a
// project restriction are visible to all tenant members.
func (f Facet) SeesProject(projectID string) bool {
	if f.IsMaster() {
		return true
	}
	if projectID == "" || f.ProjectID == "" {
		return true
	}
	return f.ProjectID == projectID
}

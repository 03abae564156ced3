package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"athens/internal/auth"
	"athens/internal/models"
)

func TestCompanyTypeCollapse(t *testing.T) {
	assert.Equal(t, models.AdminTypeClient, CompanyType(models.AdminTypeClientUser))
	assert.Equal(t, models.AdminTypeEPC, CompanyType(models.AdminTypeEPCUser))
	assert.Equal(t, models.AdminTypeContractor, CompanyType(models.AdminTypeContractorUser))
	assert.Equal(t, models.AdminTypeMaster, CompanyType(models.AdminTypeMaster))
	assert.Equal(t, models.AdminTypeEPC, CompanyType(models.AdminTypeEPC))
}

func TestCanVerifyGrades(t *testing.T) {
	f := Facet{CompanyType: models.AdminTypeEPC}
	for grade, want := range map[string]bool{"A": false, "B": true, "C": true, "D": false, "": false} {
		f.Grade = grade
		assert.Equal(t, want, f.CanVerify(), grade)
	}
	// Contractors never verify, whatever the grade.
	assert.False(t, Facet{CompanyType: models.AdminTypeContractor, Grade: "B"}.CanVerify())
	assert.True(t, Facet{CompanyType: models.AdminTypeClient, Grade: "C"}.CanVerify())
}

func TestCanApproveGrades(t *testing.T) {
	f := Facet{CompanyType: models.AdminTypeClient}
	for grade, want := range map[string]bool{"A": true, "B": true, "C": false, "": false} {
		f.Grade = grade
		assert.Equal(t, want, f.CanApprove(), grade)
	}
	assert.False(t, Facet{CompanyType: models.AdminTypeContractor, Grade: "A"}.CanApprove())
}

func TestSeesProject(t *testing.T) {
	assert.True(t, Facet{UserType: models.UserTypeMaster, ProjectID: "p1"}.SeesProject("p2"))
	assert.True(t, Facet{ProjectID: "p1"}.SeesProject("p1"))
	assert.False(t, Facet{ProjectID: "p1"}.SeesProject("p2"))
	// Unscoped actors and unscoped rows are both visible.
	assert.True(t, Facet{}.SeesProject("p2"))
	assert.True(t, Facet{ProjectID: "p1"}.SeesProject(""))
}

func TestFromClaims(t *testing.T) {
	f := FromClaims(auth.Claims{
		Subject:   "u1",
		TenantID:  "t1",
		UserType:  models.UserTypeAdminUser,
		AdminType: models.AdminTypeEPCUser,
		Grade:     "B",
	})
	assert.Equal(t, "u1", f.UserID)
	assert.Equal(t, models.AdminTypeEPC, f.CompanyType)
	assert.True(t, f.CanVerify())
	assert.True(t, f.CanApprove())
	assert.False(t, f.IsMaster())
}

//go:build integration

package ptw

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"athens/internal/apperr"
	"athens/internal/identity"
	"athens/internal/models"
	"athens/internal/tenant"
	"athens/internal/testdb"
)

type engineFixture struct {
	db      *gorm.DB
	eng     *Engine
	scope   tenant.Scope
	creator identity.Facet
	project models.Project
	ptype   models.PermitType
}

func newEngineFixture(t *testing.T) engineFixture {
	t.Helper()
	gdb := testdb.Open(t)

	tnt := models.Tenant{Name: "Acme Refinery", IsActive: true}
	require.NoError(t, gdb.Create(&tnt).Error)
	proj := models.Project{TenantID: tnt.ID, Name: "Unit 400 Turnaround", IsActive: true}
	require.NoError(t, gdb.Create(&proj).Error)
	pt := models.PermitType{
		TenantID: tnt.ID, Name: "Cold Work", Category: models.CategoryColdWork,
		RiskLevel: "low", ValidityHours: 24, IsActive: true,
	}
	require.NoError(t, gdb.Create(&pt).Error)
	u := models.User{
		TenantID: tnt.ID, Email: "creator@acme.test", PasswordHash: "x",
		UserType: models.UserTypeAdminUser, AdminType: models.AdminTypeContractorUser,
		Grade: "C", IsActive: true,
	}
	require.NoError(t, gdb.Create(&u).Error)

	return engineFixture{
		db:    gdb,
		eng:   NewEngine(gdb, zap.NewNop().Sugar(), nil),
		scope: tenant.Scope{TenantID: tnt.ID},
		creator: identity.Facet{
			UserID: u.ID, TenantID: tnt.ID,
			UserType: u.UserType, AdminType: u.AdminType,
			CompanyType: identity.CompanyType(u.AdminType), Grade: u.Grade,
		},
		project: proj,
		ptype:   pt,
	}
}

func (f engineFixture) draft(t *testing.T) models.Permit {
	t.Helper()
	p, err := f.eng.Create(f.scope, f.creator, CreateInput{
		PermitTypeID: f.ptype.ID,
		ProjectID:    f.project.ID,
		Title:        "flush line 4B",
		PlannedStart: time.Now().Add(time.Hour),
		PlannedEnd:   time.Now().Add(9 * time.Hour),
	})
	require.NoError(t, err)
	return p
}

func TestConcurrentTransitionsExactlyOneWins(t *testing.T) {
	f := newEngineFixture(t)
	p := f.draft(t)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.eng.Transition(f.scope, f.creator, p.ID, models.StatusSubmitted, "", "")
		}(i)
	}
	wg.Wait()

	var ok, failed int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		failed++
		ae, isApp := apperr.As(err)
		require.True(t, isApp, "loser surfaces a domain error, got %v", err)
		assert.Contains(t, []string{apperr.CodeConflict, apperr.CodeWorkflowError}, ae.Code)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, failed)

	var row models.Permit
	require.NoError(t, f.scope.Scoped(f.db).First(&row, "id = ?", p.ID).Error)
	assert.Equal(t, models.StatusSubmitted, row.Status)
	assert.Equal(t, 2, row.Version, "exactly one version bump")
}

func TestStaleVersionIsAConflict(t *testing.T) {
	f := newEngineFixture(t)
	p := f.draft(t)

	require.NoError(t, f.db.Model(&models.Permit{}).Where("id = ?", p.ID).
		Update("status", models.StatusApproved).Error)
	p.Status = models.StatusApproved

	// Another writer commits first; the held struct is now stale.
	require.NoError(t, f.db.Model(&models.Permit{}).Where("id = ?", p.ID).
		Update("version", p.Version+1).Error)

	_, err := f.eng.Expire(f.scope, p)
	require.Error(t, err)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeConflict, ae.Code)
	assert.Contains(t, ae.Details, "server_version")
}

func TestCreateAllocatesDistinctNumbersUnderContention(t *testing.T) {
	f := newEngineFixture(t)

	first := f.draft(t)
	second := f.draft(t)
	assert.NotEqual(t, first.PermitNumber, second.PermitNumber)

	permits := make([]models.Permit, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			permits[i], errs[i] = f.eng.Create(f.scope, f.creator, CreateInput{
				PermitTypeID: f.ptype.ID,
				ProjectID:    f.project.ID,
				Title:        "concurrent create",
				PlannedStart: time.Now().Add(time.Hour),
				PlannedEnd:   time.Now().Add(9 * time.Hour),
			})
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.NotEqual(t, permits[0].PermitNumber, permits[1].PermitNumber)
}

//go:build integration

package attendance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"athens/internal/models"
	"athens/internal/tenant"
	"athens/internal/testdb"
)

func seedTenantProject(t *testing.T, gdb *gorm.DB) (models.Tenant, models.Project) {
	t.Helper()
	tnt := models.Tenant{Name: "Acme Refinery", IsActive: true}
	require.NoError(t, gdb.Create(&tnt).Error)
	proj := models.Project{TenantID: tnt.ID, Name: "Unit 400 Turnaround", IsActive: true}
	require.NoError(t, gdb.Create(&proj).Error)
	return tnt, proj
}

func TestIngestReplayIsIdempotent(t *testing.T) {
	gdb := testdb.Open(t)
	ing := NewIngester(gdb, zap.NewNop().Sugar())
	tnt, proj := seedTenantProject(t, gdb)
	scope := tenant.Scope{TenantID: tnt.ID}

	ev := EventInput{
		ClientEventID: "dev1-0001",
		Module:        models.ModuleRegular,
		ModuleRefID:   proj.ID,
		EventType:     models.EventCheckIn,
		OccurredAt:    time.Now(),
		DeviceID:      "dev1",
		Offline:       true,
	}

	res, err := ing.Ingest(scope, []EventInput{ev})
	require.NoError(t, err)
	assert.Equal(t, []string{"dev1-0001"}, res.Created)
	assert.Empty(t, res.Duplicates)

	// The retried batch reports a duplicate instead of a second row.
	res, err = ing.Ingest(scope, []EventInput{ev})
	require.NoError(t, err)
	assert.Empty(t, res.Created)
	assert.Equal(t, []string{"dev1-0001"}, res.Duplicates)

	var count int64
	require.NoError(t, gdb.Model(&models.AttendanceEvent{}).
		Where("tenant_id = ? AND client_event_id = ?", tnt.ID, ev.ClientEventID).
		Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestIngestSameClientEventIDInTwoTenants(t *testing.T) {
	gdb := testdb.Open(t)
	ing := NewIngester(gdb, zap.NewNop().Sugar())
	tntA, projA := seedTenantProject(t, gdb)
	tntB, projB := seedTenantProject(t, gdb)

	ev := func(projID string) EventInput {
		return EventInput{
			ClientEventID: "shared-0001",
			Module:        models.ModuleRegular,
			ModuleRefID:   projID,
			EventType:     models.EventCheckIn,
			OccurredAt:    time.Now(),
		}
	}

	resA, err := ing.Ingest(tenant.Scope{TenantID: tntA.ID}, []EventInput{ev(projA.ID)})
	require.NoError(t, err)
	assert.Len(t, resA.Created, 1)

	resB, err := ing.Ingest(tenant.Scope{TenantID: tntB.ID}, []EventInput{ev(projB.ID)})
	require.NoError(t, err)
	assert.Len(t, resB.Created, 1, "uniqueness is per tenant, not global")

	var count int64
	require.NoError(t, gdb.Model(&models.AttendanceEvent{}).
		Where("client_event_id = ?", "shared-0001").Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestIngestRejectionsNeverAbortTheBatch(t *testing.T) {
	gdb := testdb.Open(t)
	ing := NewIngester(gdb, zap.NewNop().Sugar())
	tnt, proj := seedTenantProject(t, gdb)
	scope := tenant.Scope{TenantID: tnt.ID}

	good := EventInput{
		ClientEventID: "dev1-ok",
		Module:        models.ModuleRegular,
		ModuleRefID:   proj.ID,
		EventType:     models.EventCheckIn,
		OccurredAt:    time.Now(),
	}
	bad := EventInput{
		ClientEventID: "dev1-bad",
		Module:        models.ModuleTBT,
		ModuleRefID:   proj.ID,
		EventType:     models.EventCheckOut,
		OccurredAt:    time.Now(),
	}

	res, err := ing.Ingest(scope, []EventInput{bad, good})
	require.NoError(t, err)
	assert.Equal(t, []string{"dev1-ok"}, res.Created)
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, ReasonCheckInOnly, res.Rejected[0].Reason)
}

package ptw

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"athens/internal/models"
)

func TestGuardIsolationLifecycleOrder(t *testing.T) {
	point := models.PermitIsolationPoint{Status: models.IsoAssigned}

	// Cannot verify or deisolate before isolating.
	assert.Error(t, GuardIsolationAction(models.StatusActive, point, IsoActionVerify, "u2", false))
	assert.Error(t, GuardIsolationAction(models.StatusActive, point, IsoActionDeisolate, "u2", false))

	assert.NoError(t, GuardIsolationAction(models.StatusApproved, point, IsoActionIsolate, "u1", true))

	point.Status = models.IsoIsolated
	assert.Error(t, GuardIsolationAction(models.StatusApproved, point, IsoActionIsolate, "u1", false))
}

func TestGuardIsolationTwoPersonRule(t *testing.T) {
	point := models.PermitIsolationPoint{
		Status:       models.IsoIsolated,
		IsolatedByID: strp("u1"),
		LockApplied:  true,
	}
	err := GuardIsolationAction(models.StatusApproved, point, IsoActionVerify, "u1", false)
	require.Error(t, err)
	assert.NoError(t, GuardIsolationAction(models.StatusApproved, point, IsoActionVerify, "u2", false))
}

func TestGuardIsolationLockBeforeVerify(t *testing.T) {
	point := models.PermitIsolationPoint{
		Status:       models.IsoIsolated,
		IsolatedByID: strp("u1"),
		RequiresLock: true,
	}
	assert.Error(t, GuardIsolationAction(models.StatusApproved, point, IsoActionVerify, "u2", false))
	// Lock applied in the verify call itself is acceptable.
	assert.NoError(t, GuardIsolationAction(models.StatusApproved, point, IsoActionVerify, "u2", true))
}

func TestGuardDeisolationNeedsLivePermit(t *testing.T) {
	point := models.PermitIsolationPoint{Status: models.IsoVerified}
	assert.Error(t, GuardIsolationAction(models.StatusApproved, point, IsoActionDeisolate, "u1", false))
	assert.Error(t, GuardIsolationAction(models.StatusCompleted, point, IsoActionDeisolate, "u1", false))
	assert.NoError(t, GuardIsolationAction(models.StatusActive, point, IsoActionDeisolate, "u1", false))
	assert.NoError(t, GuardIsolationAction(models.StatusSuspended, point, IsoActionDeisolate, "u1", false))
}

func TestGuardIsolationUnknownAction(t *testing.T) {
	point := models.PermitIsolationPoint{Status: models.IsoAssigned}
	assert.Error(t, GuardIsolationAction(models.StatusActive, point, "explode", "u1", false))
}

func TestApplyIsolationActionStampsActors(t *testing.T) {
	now := time.Now().UTC()
	point := models.PermitIsolationPoint{Status: models.IsoAssigned}

	ApplyIsolationAction(&point, IsoActionIsolate, "u1", true, []string{"L-1", "L-2"}, "locked out", now)
	assert.Equal(t, models.IsoIsolated, point.Status)
	require.NotNil(t, point.IsolatedByID)
	assert.Equal(t, "u1", *point.IsolatedByID)
	assert.True(t, point.LockApplied)
	assert.Equal(t, 2, point.LockCount)
	assert.Equal(t, "locked out", point.Notes)

	ApplyIsolationAction(&point, IsoActionVerify, "u2", false, nil, "", now)
	assert.Equal(t, models.IsoVerified, point.Status)
	require.NotNil(t, point.VerifiedByID)
	assert.Equal(t, "u2", *point.VerifiedByID)

	ApplyIsolationAction(&point, IsoActionDeisolate, "u3", false, nil, "", now)
	assert.Equal(t, models.IsoDeisolated, point.Status)
	assert.False(t, point.LockApplied)
	require.NotNil(t, point.DeisolatedByID)
	assert.Equal(t, "u3", *point.DeisolatedByID)
}

func TestApplyIsolationLockWithoutIDsCountsOne(t *testing.T) {
	point := models.PermitIsolationPoint{Status: models.IsoAssigned}
	ApplyIsolationAction(&point, IsoActionIsolate, "u1", true, nil, "", time.Now())
	assert.Equal(t, 1, point.LockCount)
}

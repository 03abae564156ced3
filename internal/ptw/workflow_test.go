package ptw

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"athens/internal/apperr"
	"athens/internal/identity"
	"athens/internal/models"
)

func strp(s string) *string { return &s }

func draftSnapshot() Snapshot {
	return Snapshot{
		Permit: models.Permit{
			ID:          "p1",
			TenantID:    "t1",
			ProjectID:   "proj1",
			Status:      models.StatusDraft,
			Version:     1,
			CreatedByID: "creator",
			ReceiverID:  "creator",
		},
		Type: models.PermitType{ID: "pt1", Name: "Cold Work"},
	}
}

func sign(s *Snapshot, sigType, userID string) {
	s.Signatures = append(s.Signatures, models.DigitalSignature{
		PermitID: s.Permit.ID, SignatureType: sigType, SignatoryID: userID,
	})
}

func TestCanTransitionGraph(t *testing.T) {
	assert.True(t, CanTransition(models.StatusDraft, models.StatusSubmitted))
	assert.True(t, CanTransition(models.StatusSubmitted, models.StatusPendingVerification))
	assert.True(t, CanTransition(models.StatusPendingVerification, models.StatusUnderReview))
	assert.True(t, CanTransition(models.StatusUnderReview, models.StatusPendingApproval))
	assert.True(t, CanTransition(models.StatusPendingApproval, models.StatusApproved))
	assert.True(t, CanTransition(models.StatusApproved, models.StatusActive))
	assert.True(t, CanTransition(models.StatusActive, models.StatusSuspended))
	assert.True(t, CanTransition(models.StatusSuspended, models.StatusActive))
	assert.True(t, CanTransition(models.StatusActive, models.StatusCompleted))

	assert.False(t, CanTransition(models.StatusDraft, models.StatusApproved))
	assert.False(t, CanTransition(models.StatusApproved, models.StatusDraft))
	assert.False(t, CanTransition(models.StatusCompleted, models.StatusActive))
}

func TestCanTransitionCancelFromAnyNonTerminal(t *testing.T) {
	for _, from := range []string{
		models.StatusDraft, models.StatusSubmitted, models.StatusPendingVerification,
		models.StatusUnderReview, models.StatusPendingApproval, models.StatusApproved,
		models.StatusActive, models.StatusSuspended,
	} {
		assert.True(t, CanTransition(from, models.StatusCancelled), from)
	}
	for _, from := range []string{
		models.StatusCompleted, models.StatusCancelled, models.StatusExpired, models.StatusRejected,
	} {
		assert.False(t, CanTransition(from, models.StatusCancelled), from)
	}
}

func TestGuardSubmitOnlyCreator(t *testing.T) {
	s := draftSnapshot()
	err := GuardTransition(s, identity.Facet{UserID: "someone_else"}, models.StatusSubmitted)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodePermissionDenied, ae.Code)

	assert.NoError(t, GuardTransition(s, identity.Facet{UserID: "creator"}, models.StatusSubmitted))
}

func TestGuardPendingVerificationNeedsSignatureAndVerifier(t *testing.T) {
	s := draftSnapshot()
	s.Permit.Status = models.StatusSubmitted
	creator := identity.Facet{UserID: "creator"}

	err := GuardTransition(s, creator, models.StatusPendingVerification)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeValidationFailed, ae.Code)
	assert.Contains(t, ae.Details["missing"], models.SigRequestor)

	sign(&s, models.SigRequestor, "creator")
	err = GuardTransition(s, creator, models.StatusPendingVerification)
	ae, ok = apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "verifier not assigned", ae.Message)

	s.Permit.VerifierID = strp("verifier")
	assert.NoError(t, GuardTransition(s, creator, models.StatusPendingVerification))
}

func TestGuardUnderReviewOnlyAssignedVerifier(t *testing.T) {
	s := draftSnapshot()
	s.Permit.Status = models.StatusPendingVerification
	s.Permit.VerifierID = strp("verifier")

	err := GuardTransition(s, identity.Facet{UserID: "creator"}, models.StatusUnderReview)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodePermissionDenied, ae.Code)

	assert.NoError(t, GuardTransition(s, identity.Facet{UserID: "verifier"}, models.StatusUnderReview))
}

func TestGuardApprovalRequiresReadiness(t *testing.T) {
	s := draftSnapshot()
	s.Permit.Status = models.StatusPendingApproval
	s.Permit.VerifierID = strp("verifier")
	s.Permit.ApproverID = strp("approver")
	s.Type.RequiresGasTesting = true
	approver := identity.Facet{UserID: "approver"}

	// Approver signature missing.
	err := GuardTransition(s, approver, models.StatusApproved)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Contains(t, ae.Details["missing"], models.SigApprover)

	sign(&s, models.SigRequestor, "creator")
	sign(&s, models.SigVerifier, "verifier")
	sign(&s, models.SigApprover, "approver")

	// Gas testing demanded but no readings yet.
	err = GuardTransition(s, approver, models.StatusApproved)
	ae, ok = apperr.As(err)
	require.True(t, ok)
	assert.Contains(t, ae.Details["missing"], ReasonGasReadingsMissing)

	s.Readings = []models.GasReading{{GasType: "O2", Status: models.GasSafe}}
	assert.NoError(t, GuardTransition(s, approver, models.StatusApproved))
}

func TestGuardSuspendResumeRoles(t *testing.T) {
	s := draftSnapshot()
	s.Permit.Status = models.StatusActive
	s.Permit.VerifierID = strp("verifier")
	s.Permit.ApproverID = strp("approver")

	err := GuardTransition(s, identity.Facet{UserID: "creator"}, models.StatusSuspended)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodePermissionDenied, ae.Code)

	assert.NoError(t, GuardTransition(s, identity.Facet{UserID: "approver"}, models.StatusSuspended))

	s.Permit.Status = models.StatusSuspended
	assert.NoError(t, GuardTransition(s, identity.Facet{UserID: "verifier"}, models.StatusActive))
	err = GuardTransition(s, identity.Facet{UserID: "creator"}, models.StatusActive)
	_, ok = apperr.As(err)
	assert.True(t, ok)
}

func TestGuardCompleteNeedsCloseout(t *testing.T) {
	s := draftSnapshot()
	s.Permit.Status = models.StatusActive
	actor := identity.Facet{UserID: "creator"}

	err := GuardTransition(s, actor, models.StatusCompleted)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Contains(t, ae.Details["missing"], ReasonCloseoutMissing)

	s.Closeout = &models.PermitCloseout{PermitID: "p1", Completed: false}
	err = GuardTransition(s, actor, models.StatusCompleted)
	ae, ok = apperr.As(err)
	require.True(t, ok)
	assert.Contains(t, ae.Details["missing"], ReasonCloseoutIncomplete)

	s.Closeout.Completed = true
	assert.NoError(t, GuardTransition(s, actor, models.StatusCompleted))
}

func TestGuardExpireIsSchedulerOnly(t *testing.T) {
	s := draftSnapshot()
	s.Permit.Status = models.StatusActive
	err := GuardTransition(s, identity.Facet{UserID: "creator"}, models.StatusExpired)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeWorkflowError, ae.Code)
}

func TestEventForMapping(t *testing.T) {
	for status, want := range map[string]string{
		models.StatusSubmitted:       models.EventPermitSubmitted,
		models.StatusPendingApproval: models.EventPermitVerified,
		models.StatusApproved:        models.EventPermitApproved,
		models.StatusRejected:        models.EventPermitRejected,
		models.StatusActive:          models.EventPermitActivated,
		models.StatusCompleted:       models.EventPermitCompleted,
		models.StatusExpired:         models.EventPermitExpired,
	} {
		got, ok := EventFor(status)
		require.True(t, ok, status)
		assert.Equal(t, want, got)
	}
	_, ok := EventFor(models.StatusDraft)
	assert.False(t, ok)
	_, ok = EventFor(models.StatusSuspended)
	assert.False(t, ok)
}

package ptw

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"athens/internal/apperr"
	"athens/internal/models"
)

func TestAssignedSignatory(t *testing.T) {
	p := models.Permit{
		CreatedByID: "creator",
		ReceiverID:  "creator",
		VerifierID:  strp("verifier"),
	}

	who, restricted := AssignedSignatory(p, models.SigRequestor)
	assert.True(t, restricted)
	assert.Equal(t, "creator", who)

	who, restricted = AssignedSignatory(p, models.SigVerifier)
	assert.True(t, restricted)
	assert.Equal(t, "verifier", who)

	// Approver not yet assigned: restricted with no assignee.
	who, restricted = AssignedSignatory(p, models.SigApprover)
	assert.True(t, restricted)
	assert.Empty(t, who)

	who, restricted = AssignedSignatory(p, models.SigReceiver)
	assert.True(t, restricted)
	assert.Equal(t, "creator", who)

	// Witness-style types are open to any tenant member.
	_, restricted = AssignedSignatory(p, models.SigWitness)
	assert.False(t, restricted)
	_, restricted = AssignedSignatory(p, models.SigSafetyOfficer)
	assert.False(t, restricted)
}

func TestGateActionInitiateWorkflow(t *testing.T) {
	s := draftSnapshot()
	err := GateAction(s, "initiate_workflow")
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeValidationFailed, ae.Code)
	assert.Equal(t, []string{models.SigRequestor}, ae.Details["missing"])

	sign(&s, models.SigRequestor, "creator")
	assert.NoError(t, GateAction(s, "initiate_workflow"))
}

func TestGateActionActivateFollowsTypeFlags(t *testing.T) {
	s := draftSnapshot()

	// Nothing required for plain types.
	assert.NoError(t, GateAction(s, "activate"))

	s.Type.RequiresIssuerSignature = true
	s.Type.RequiresReceiverSignature = true
	err := GateAction(s, "activate")
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{models.SigIssuer, models.SigReceiver}, ae.Details["missing"])

	sign(&s, models.SigIssuer, "issuer")
	err = GateAction(s, "activate")
	ae, ok = apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, []string{models.SigReceiver}, ae.Details["missing"])

	sign(&s, models.SigReceiver, "creator")
	assert.NoError(t, GateAction(s, "activate"))
}

func TestGateActionUnknownActionNeedsNothing(t *testing.T) {
	assert.NoError(t, GateAction(draftSnapshot(), "frobnicate"))
}

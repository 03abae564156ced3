package ptw

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"athens/internal/models"
)

// hotWorkSnapshot models a high-risk permit type with every subsystem
// switched on.
func hotWorkSnapshot() Snapshot {
	s := draftSnapshot()
	s.Type = models.PermitType{
		ID:                            "pt-hot",
		Name:                          "Hot Work",
		RequiresGasTesting:            true,
		RequiresStructuredIsolation:   true,
		RequiresDeisolationOnCloseout: true,
		RequiresIssuerSignature:       true,
		RequiresReceiverSignature:     true,
		MandatoryPPE:                  models.StringArray{"helmet", "fire_retardant_suit"},
	}
	s.Permit.Status = models.StatusPendingApproval
	return s
}

func TestEvaluateEmptyHotWorkPermit(t *testing.T) {
	r := Evaluate(hotWorkSnapshot())

	assert.True(t, r.Requires.GasTesting)
	assert.True(t, r.Requires.StructuredIsolation)
	assert.False(t, r.Ready.CanApprove)
	assert.ElementsMatch(t, []string{
		ReasonGasReadingsMissing,
		ReasonIsoPointsNotAssigned,
		ReasonRequestorSigMissing,
		ReasonVerifierSigMissing,
	}, r.Missing.Approve)

	assert.False(t, r.Ready.CanActivate)
	assert.Contains(t, r.Missing.Activate, ReasonNotApproved)
	assert.Contains(t, r.Missing.Activate, ReasonIssuerSigMissing)
	assert.Contains(t, r.Missing.Activate, ReasonReceiverSigMissing)

	assert.False(t, r.Ready.CanComplete)
	assert.Contains(t, r.Missing.Complete, ReasonCloseoutMissing)
}

func TestEvaluateFullyReadyHotWork(t *testing.T) {
	s := hotWorkSnapshot()
	s.Permit.Status = models.StatusActive
	sign(&s, models.SigRequestor, "creator")
	sign(&s, models.SigVerifier, "verifier")
	sign(&s, models.SigIssuer, "issuer")
	sign(&s, models.SigReceiver, "creator")
	s.Readings = []models.GasReading{
		{GasType: "O2", Status: models.GasSafe, TestedAt: time.Now()},
		{GasType: "CO", Status: models.GasSafe, TestedAt: time.Now()},
	}
	s.Points = []models.PermitIsolationPoint{
		{PointCode: "V-101", Required: true, Status: models.IsoDeisolated},
	}
	s.Closeout = &models.PermitCloseout{Completed: true}

	r := Evaluate(s)
	assert.True(t, r.Ready.CanApprove)
	assert.Empty(t, r.Missing.Approve)
	assert.True(t, r.Ready.CanComplete)
	assert.Empty(t, r.Missing.Complete)
}

func TestEvaluateLatestReadingPerGasDominates(t *testing.T) {
	s := hotWorkSnapshot()
	sign(&s, models.SigRequestor, "creator")
	sign(&s, models.SigVerifier, "verifier")
	s.Points = []models.PermitIsolationPoint{
		{PointCode: "V-1", Required: true, Status: models.IsoVerified},
	}
	base := time.Now()

	// Old unsafe reading superseded by a newer safe one.
	s.Readings = []models.GasReading{
		{GasType: "O2", Status: models.GasUnsafe, TestedAt: base},
		{GasType: "O2", Status: models.GasSafe, TestedAt: base.Add(time.Hour)},
	}
	r := Evaluate(s)
	assert.True(t, r.Details.Gas.Safe)
	assert.NotContains(t, r.Missing.Approve, ReasonGasUnsafe)
	assert.Equal(t, map[string]string{"O2": models.GasSafe}, r.Details.Gas.LatestByGas)

	// Newer unsafe reading dominates an older safe one.
	s.Readings = []models.GasReading{
		{GasType: "O2", Status: models.GasSafe, TestedAt: base},
		{GasType: "O2", Status: models.GasUnsafe, TestedAt: base.Add(time.Hour)},
	}
	r = Evaluate(s)
	assert.False(t, r.Details.Gas.Safe)
	assert.Contains(t, r.Missing.Activate, ReasonGasUnsafe)
}

func TestEvaluateIsolationVerification(t *testing.T) {
	s := hotWorkSnapshot()
	sign(&s, models.SigRequestor, "creator")
	sign(&s, models.SigVerifier, "verifier")
	s.Readings = []models.GasReading{{GasType: "O2", Status: models.GasSafe, TestedAt: time.Now()}}

	s.Points = []models.PermitIsolationPoint{
		{PointCode: "V-1", Required: true, Status: models.IsoVerified},
		{PointCode: "V-2", Required: true, Status: models.IsoIsolated},
		{PointCode: "V-3", Required: false, Status: models.IsoAssigned},
		{PointCode: "V-4", Required: true, Status: models.IsoCancelled},
	}
	r := Evaluate(s)
	assert.Equal(t, 3, r.Details.Isolation.Assigned) // cancelled excluded
	assert.Equal(t, 2, r.Details.Isolation.RequiredPoints)
	assert.Equal(t, 1, r.Details.Isolation.Verified)
	assert.Equal(t, []string{"V-2"}, r.Details.Isolation.Unverified)
	assert.Contains(t, r.Missing.Approve, ReasonIsoPointsNotVerified)
}

func TestEvaluateDeisolationPendingBlocksCompletion(t *testing.T) {
	s := hotWorkSnapshot()
	s.Permit.Status = models.StatusActive
	s.Closeout = &models.PermitCloseout{Completed: true}
	s.Points = []models.PermitIsolationPoint{
		{PointCode: "V-1", Required: true, Status: models.IsoVerified},
	}
	r := Evaluate(s)
	assert.Contains(t, r.Missing.Complete, ReasonDeisolationPending)

	s.Points[0].Status = models.IsoDeisolated
	r = Evaluate(s)
	assert.True(t, r.Ready.CanComplete)
}

func TestEvaluateChecklistShapes(t *testing.T) {
	s := draftSnapshot()

	s.Permit.SafetyChecklist = models.JSONB(`{"fire_watch":true,"area_clear":false}`)
	r := Evaluate(s)
	assert.Equal(t, "map", r.Details.Checklist.Shape)
	assert.Equal(t, 2, r.Details.Checklist.Items)
	assert.Equal(t, 1, r.Details.Checklist.Done)

	s.Permit.SafetyChecklist = models.JSONB(`["fire_watch","area_clear"]`)
	r = Evaluate(s)
	assert.Equal(t, "list", r.Details.Checklist.Shape)
	assert.Equal(t, 2, r.Details.Checklist.Items)
	assert.Equal(t, 0, r.Details.Checklist.Done)

	s.Permit.SafetyChecklist = nil
	r = Evaluate(s)
	assert.Equal(t, "none", r.Details.Checklist.Shape)
}

func TestEvaluatePPEGaps(t *testing.T) {
	s := hotWorkSnapshot()
	s.Permit.PPERequirements = models.StringArray{"helmet"}
	r := Evaluate(s)
	assert.Equal(t, []string{"fire_retardant_suit"}, r.Details.PPE.Missing)
}

func TestEvaluateMissingSlicesNeverNil(t *testing.T) {
	s := draftSnapshot()
	s.Permit.Status = models.StatusApproved
	sign(&s, models.SigRequestor, "creator")
	sign(&s, models.SigVerifier, "verifier")
	s.Closeout = &models.PermitCloseout{Completed: true}

	r := Evaluate(s)
	require.NotNil(t, r.Missing.Approve)
	require.NotNil(t, r.Missing.Activate)
	require.NotNil(t, r.Missing.Complete)
	assert.True(t, r.Ready.CanActivate)
}

package ptw

import (
	"athens/internal/models"
)

// Missing-reason codes surfaced in readiness documents.
const (
	ReasonGasReadingsMissing   = "gas_readings_missing"
	ReasonGasUnsafe            = "gas_unsafe"
	ReasonIsoPointsNotAssigned = "isolation_points_not_assigned"
	ReasonIsoPointsNotVerified = "isolation_points_not_verified"
	ReasonRequestorSigMissing  = "signature_requestor_missing"
	ReasonVerifierSigMissing   = "signature_verifier_missing"
	ReasonIssuerSigMissing     = "issuer_signature_missing"
	ReasonReceiverSigMissing   = "receiver_signature_missing"
	ReasonNotApproved          = "not_approved"
	ReasonCloseoutMissing      = "closeout_missing"
	ReasonCloseoutIncomplete   = "closeout_incomplete"
	ReasonDeisolationPending   = "deisolation_pending"
)

type Readiness struct {
	Requires RequiresDoc `json:"requires"`
	Ready    ReadyDoc    `json:"readiness"`
	Missing  MissingDoc  `json:"missing"`
	Details  DetailsDoc  `json:"details"`
}

type RequiresDoc struct {
	GasTesting          bool `json:"gas_testing"`
	StructuredIsolation bool `json:"structured_isolation"`
	Closeout            bool `json:"closeout"`
}

type ReadyDoc struct {
	CanVerify   bool `json:"can_verify"`
	CanApprove  bool `json:"can_approve"`
	CanActivate bool `json:"can_activate"`
	CanComplete bool `json:"can_complete"`
}

type MissingDoc struct {
	Approve  []string `json:"approve"`
	Activate []string `json:"activate"`
	Complete []string `json:"complete"`
}

type DetailsDoc struct {
	Gas       GasDetail       `json:"gas"`
	Isolation IsolationDetail `json:"isolation"`
	PPE       PPEDetail       `json:"ppe"`
	Checklist ChecklistDetail `json:"checklist"`
	Closeout  CloseoutDetail  `json:"closeout"`
}

type GasDetail struct {
	Required    bool              `json:"required"`
	Safe        bool              `json:"safe"`
	Readings    int               `json:"readings"`
	SafeCount   int               `json:"safe_count"`
	UnsafeCount int               `json:"unsafe_count"`
	LatestByGas map[string]string `json:"latest_by_gas,omitempty"`
}

type IsolationDetail struct {
	Required       bool     `json:"required"`
	Assigned       int      `json:"assigned"`
	RequiredPoints int      `json:"required_points"`
	Verified       int      `json:"verified"`
	Unverified     []string `json:"unverified,omitempty"`
}

type PPEDetail struct {
	Mandatory []string `json:"mandatory"`
	Listed    []string `json:"listed"`
	Missing   []string `json:"missing,omitempty"`
}

type ChecklistDetail struct {
	Shape string `json:"shape"`
	Items int    `json:"items"`
	Done  int    `json:"done"`
}

type CloseoutDetail struct {
	Exists      bool     `json:"exists"`
	Completed   bool     `json:"completed"`
	MissingKeys []string `json:"missing_keys,omitempty"`
}

// Evaluate computes the readiness document for a permit snapshot. It has
// no side effects and tolerates every safety_checklist shape.
func Evaluate(s Snapshot) Readiness {
	var r Readiness
	r.Requires.GasTesting = s.Type.RequiresGasTesting
	r.Requires.StructuredIsolation = s.Type.RequiresStructuredIsolation
	r.Requires.Closeout = true

	r.Details.Gas = gasDetail(s)
	r.Details.Isolation = isolationDetail(s)
	r.Details.PPE = ppeDetail(s)
	r.Details.Checklist = checklistDetail(s)
	r.Details.Closeout = closeoutDetail(s)

	// verify gate: requestor signed, verifier assigned.
	r.Ready.CanVerify = s.HasSignature(models.SigRequestor) && s.Permit.VerifierID != nil

	// approve gate.
	if s.Type.RequiresGasTesting {
		if r.Details.Gas.SafeCount == 0 {
			r.Missing.Approve = append(r.Missing.Approve, ReasonGasReadingsMissing)
		}
		if !r.Details.Gas.Safe && r.Details.Gas.UnsafeCount > 0 {
			r.Missing.Approve = append(r.Missing.Approve, ReasonGasUnsafe)
		}
	}
	if s.Type.RequiresStructuredIsolation {
		if r.Details.Isolation.RequiredPoints == 0 {
			r.Missing.Approve = append(r.Missing.Approve, ReasonIsoPointsNotAssigned)
		} else if len(r.Details.Isolation.Unverified) > 0 {
			r.Missing.Approve = append(r.Missing.Approve, ReasonIsoPointsNotVerified)
		}
	}
	if !s.HasSignature(models.SigRequestor) {
		r.Missing.Approve = append(r.Missing.Approve, ReasonRequestorSigMissing)
	}
	if !s.HasSignature(models.SigVerifier) {
		r.Missing.Approve = append(r.Missing.Approve, ReasonVerifierSigMissing)
	}
	r.Ready.CanApprove = len(r.Missing.Approve) == 0

	// activate gate.
	if s.Permit.Status != models.StatusApproved {
		r.Missing.Activate = append(r.Missing.Activate, ReasonNotApproved)
	}
	if s.Type.RequiresGasTesting && !r.Details.Gas.Safe {
		r.Missing.Activate = append(r.Missing.Activate, ReasonGasUnsafe)
	}
	if s.Type.RequiresIssuerSignature && !s.HasSignature(models.SigIssuer) {
		r.Missing.Activate = append(r.Missing.Activate, ReasonIssuerSigMissing)
	}
	if s.Type.RequiresReceiverSignature && !s.HasSignature(models.SigReceiver) {
		r.Missing.Activate = append(r.Missing.Activate, ReasonReceiverSigMissing)
	}
	r.Ready.CanActivate = len(r.Missing.Activate) == 0

	// complete gate.
	if s.Closeout == nil {
		r.Missing.Complete = append(r.Missing.Complete, ReasonCloseoutMissing)
	} else if !s.Closeout.Completed {
		r.Missing.Complete = append(r.Missing.Complete, ReasonCloseoutIncomplete)
	}
	if s.Type.RequiresDeisolationOnCloseout && deisolationPending(s.Points) {
		r.Missing.Complete = append(r.Missing.Complete, ReasonDeisolationPending)
	}
	r.Ready.CanComplete = len(r.Missing.Complete) == 0

	if r.Missing.Approve == nil {
		r.Missing.Approve = []string{}
	}
	if r.Missing.Activate == nil {
		r.Missing.Activate = []string{}
	}
	if r.Missing.Complete == nil {
		r.Missing.Complete = []string{}
	}
	return r
}

func gasDetail(s Snapshot) GasDetail {
	d := GasDetail{Required: s.Type.RequiresGasTesting, Safe: true}
	latest := map[string]models.GasReading{}
	for _, g := range s.Readings {
		d.Readings++
		if g.Status == models.GasSafe {
			d.SafeCount++
		} else {
			d.UnsafeCount++
		}
		prev, ok := latest[g.GasType]
		if !ok || g.TestedAt.After(prev.TestedAt) {
			latest[g.GasType] = g
		}
	}
	if len(latest) > 0 {
		d.LatestByGas = make(map[string]string, len(latest))
		for t, g := range latest {
			d.LatestByGas[t] = g.Status
			if g.Status == models.GasUnsafe {
				d.Safe = false
			}
		}
	}
	if d.SafeCount == 0 && s.Type.RequiresGasTesting {
		d.Safe = false
	}
	return d
}

func isolationDetail(s Snapshot) IsolationDetail {
	d := IsolationDetail{Required: s.Type.RequiresStructuredIsolation}
	for _, p := range s.Points {
		if p.Status == models.IsoCancelled {
			continue
		}
		d.Assigned++
		if !p.Required {
			continue
		}
		d.RequiredPoints++
		if p.Status == models.IsoVerified || p.Status == models.IsoDeisolated {
			d.Verified++
		} else {
			d.Unverified = append(d.Unverified, p.PointCode)
		}
	}
	return d
}

func ppeDetail(s Snapshot) PPEDetail {
	d := PPEDetail{Mandatory: s.Type.MandatoryPPE, Listed: s.Permit.PPERequirements}
	for _, m := range s.Type.MandatoryPPE {
		if !s.Permit.PPERequirements.Contains(m) {
			d.Missing = append(d.Missing, m)
		}
	}
	return d
}

func checklistDetail(s Snapshot) ChecklistDetail {
	c := models.ParseChecklist(s.Permit.SafetyChecklist)
	d := ChecklistDetail{Items: len(c.Keys())}
	switch c.Kind {
	case models.ChecklistMap:
		d.Shape = "map"
		for _, k := range c.Keys() {
			if c.Done(k) {
				d.Done++
			}
		}
	case models.ChecklistList:
		d.Shape = "list"
	default:
		d.Shape = "none"
	}
	return d
}

func closeoutDetail(s Snapshot) CloseoutDetail {
	if s.Closeout == nil {
		return CloseoutDetail{}
	}
	return CloseoutDetail{
		Exists:      true,
		Completed:   s.Closeout.Completed,
		MissingKeys: []string{},
	}
}

// deisolationPending reports whether any required point that was isolated
// has not returned to deisolated.
func deisolationPending(points []models.PermitIsolationPoint) bool {
	for _, p := range points {
		if !p.Required || p.Status == models.IsoCancelled {
			continue
		}
		if p.Status != models.IsoDeisolated && p.Status != models.IsoAssigned {
			return true
		}
	}
	return false
}

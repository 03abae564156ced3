// Package ptw implements the permit-to-work engine: the status graph, the
// readiness evaluator, the signature gate, and the isolation/gas/closeout
// subcores. The decision logic is pure; Engine wires it to the database.
package ptw

import (
	"athens/internal/apperr"
	"athens/internal/identity"
	"athens/internal/models"
)

// transitions is the permit status graph. cancelled is reachable from any
// non-terminal status and handled separately in CanTransition.
var transitions = map[string][]string{
	models.StatusDraft:               {models.StatusSubmitted},
	models.StatusSubmitted:           {models.StatusPendingVerification},
	models.StatusPendingVerification: {models.StatusUnderReview, models.StatusRejected},
	models.StatusUnderReview:         {models.StatusPendingApproval, models.StatusRejected},
	models.StatusPendingApproval:     {models.StatusApproved, models.StatusRejected},
	models.StatusApproved:            {models.StatusActive, models.StatusExpired},
	models.StatusActive:              {models.StatusCompleted, models.StatusSuspended, models.StatusExpired},
	models.StatusSuspended:           {models.StatusActive},
}

// CanTransition reports whether the status graph allows from -> to.
func CanTransition(from, to string) bool {
	if to == models.StatusCancelled {
		return !models.Terminal(from)
	}
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// GuardTransition checks every gate for a transition: graph membership,
// actor authority, signatures, and readiness. It is pure over the snapshot.
func GuardTransition(s Snapshot, actor identity.Facet, to string) error {
	from := s.Permit.Status
	if !CanTransition(from, to) {
		return apperr.WorkflowError(from, to)
	}

	switch to {
	case models.StatusCancelled:
		if actor.UserID != s.Permit.CreatedByID && !isAssigned(s.Permit.ApproverID, actor.UserID) {
			return apperr.PermissionDenied("only the creator or approver may cancel")
		}
		return nil

	case models.StatusSubmitted:
		if actor.UserID != s.Permit.CreatedByID {
			return apperr.PermissionDenied("only the creator may submit")
		}
		return nil

	case models.StatusPendingVerification:
		if !s.HasSignature(models.SigRequestor) {
			return missingSignatures(models.SigRequestor)
		}
		if s.Permit.VerifierID == nil {
			return apperr.ValidationFailed("verifier not assigned")
		}
		return nil

	case models.StatusUnderReview:
		if !isAssigned(s.Permit.VerifierID, actor.UserID) {
			return apperr.PermissionDenied("only the assigned verifier may start review")
		}
		return nil

	case models.StatusPendingApproval:
		if !s.HasSignature(models.SigVerifier) {
			return missingSignatures(models.SigVerifier)
		}
		if s.Permit.ApproverID == nil {
			return apperr.ValidationFailed("approver not assigned")
		}
		return nil

	case models.StatusApproved:
		if !s.HasSignature(models.SigApprover) {
			return missingSignatures(models.SigApprover)
		}
		r := Evaluate(s)
		if !r.Ready.CanApprove {
			e := apperr.ValidationFailed("permit not ready for approval")
			return e.With("missing", r.Missing.Approve)
		}
		return nil

	case models.StatusActive:
		if from == models.StatusSuspended {
			if !isAssigned(s.Permit.ApproverID, actor.UserID) && !isAssigned(s.Permit.VerifierID, actor.UserID) {
				return apperr.PermissionDenied("only the approver or verifier may resume")
			}
			return nil
		}
		r := Evaluate(s)
		if !r.Ready.CanActivate {
			e := apperr.ValidationFailed("permit not ready for activation")
			return e.With("missing", r.Missing.Activate)
		}
		return nil

	case models.StatusSuspended:
		if !isAssigned(s.Permit.ApproverID, actor.UserID) && !isAssigned(s.Permit.VerifierID, actor.UserID) {
			return apperr.PermissionDenied("only the approver or verifier may suspend")
		}
		return nil

	case models.StatusCompleted:
		r := Evaluate(s)
		if !r.Ready.CanComplete {
			e := apperr.ValidationFailed("permit not ready for completion")
			return e.With("missing", r.Missing.Complete)
		}
		return nil

	case models.StatusRejected:
		switch from {
		case models.StatusPendingVerification:
			if !isAssigned(s.Permit.VerifierID, actor.UserID) {
				return apperr.PermissionDenied("only the assigned verifier may reject")
			}
		default:
			if !isAssigned(s.Permit.ApproverID, actor.UserID) && !isAssigned(s.Permit.VerifierID, actor.UserID) {
				return apperr.PermissionDenied("only the verifier or approver may reject")
			}
		}
		return nil

	case models.StatusExpired:
		// Time-driven only; the scheduler calls Engine.Expire directly.
		return apperr.WorkflowError(from, to)
	}
	return apperr.WorkflowError(from, to)
}

// EventFor maps a reached status to the webhook trigger event, if any.
func EventFor(to string) (string, bool) {
	switch to {
	case models.StatusSubmitted:
		return models.EventPermitSubmitted, true
	case models.StatusPendingApproval:
		return models.EventPermitVerified, true
	case models.StatusApproved:
		return models.EventPermitApproved, true
	case models.StatusRejected:
		return models.EventPermitRejected, true
	case models.StatusActive:
		return models.EventPermitActivated, true
	case models.StatusCompleted:
		return models.EventPermitCompleted, true
	case models.StatusExpired:
		return models.EventPermitExpired, true
	}
	return "", false
}

func isAssigned(assignee *string, userID string) bool {
	return assignee != nil && *assignee == userID
}

func missingSignatures(types ...string) error {
	e := apperr.ValidationFailed("required signatures missing")
	return e.With("missing", types)
}

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"athens/internal/apperr"
	"athens/internal/models"
	"athens/internal/ptw"
)

type submitRequest struct {
	VerifierID    string `json:"verifier_id"`
	SignatureData string `json:"signature_data"`
	Comments      string `json:"comments"`
}

// SubmitPermit moves a draft into the workflow. The requestor signature can
// ride along in the same call; once a verifier is assigned the permit lands
// in pending_verification directly.
func SubmitPermit(eng *ptw.Engine, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, actor, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		var req submitRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, r, lg, err)
			return
		}
		permitID := chi.URLParam(r, "id")

		if req.SignatureData != "" {
			s, err := ptw.LoadSnapshot(eng.DB(), scope, permitID)
			if err != nil {
				respondError(w, r, lg, err)
				return
			}
			_, err = ptw.AddSignature(eng.DB(), scope, s, models.SigRequestor, actor.UserID, req.SignatureData, clientIP(r), r.UserAgent())
			if err != nil {
				respondError(w, r, lg, err)
				return
			}
		}
		if req.VerifierID != "" {
			if _, err := eng.AssignVerifier(scope, actor, permitID, req.VerifierID); err != nil {
				respondError(w, r, lg, err)
				return
			}
		}

		permit, err := eng.Transition(scope, actor, permitID, models.StatusSubmitted, req.Comments, clientIP(r))
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		if permit.VerifierID != nil {
			permit, err = eng.Transition(scope, actor, permitID, models.StatusPendingVerification, "", clientIP(r))
			if err != nil {
				respondError(w, r, lg, err)
				return
			}
		}
		respondJSON(w, permit)
	}
}

type assignRequest struct {
	UserID string `json:"user_id"`
}

// AssignVerifier binds a verifier. A submitted permit with its requestor
// signature in place advances to pending_verification in the same call.
func AssignVerifier(eng *ptw.Engine, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, actor, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		var req assignRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, r, lg, err)
			return
		}
		if req.UserID == "" {
			respondError(w, r, lg, apperr.ValidationFailed("user_id required"))
			return
		}
		permitID := chi.URLParam(r, "id")
		permit, err := eng.AssignVerifier(scope, actor, permitID, req.UserID)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		if permit.Status == models.StatusSubmitted {
			permit, err = eng.Transition(scope, actor, permitID, models.StatusPendingVerification, "", clientIP(r))
			if err != nil {
				respondError(w, r, lg, err)
				return
			}
		}
		respondJSON(w, permit)
	}
}

// AssignApprover binds an approver.
func AssignApprover(eng *ptw.Engine, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, actor, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		var req assignRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, r, lg, err)
			return
		}
		if req.UserID == "" {
			respondError(w, r, lg, apperr.ValidationFailed("user_id required"))
			return
		}
		permit, err := eng.AssignApprover(scope, actor, chi.URLParam(r, "id"), req.UserID)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, permit)
	}
}

type decisionRequest struct {
	Action        string `json:"action"` // approve | reject
	Comments      string `json:"comments"`
	SignatureData string `json:"signature_data"`
	ApproverID    string `json:"approver_id"`
}

// VerifyPermit is the verifier's decision. Approval signs as verifier,
// claims the review and forwards the permit to pending_approval, assigning
// the approver when named in the request.
func VerifyPermit(eng *ptw.Engine, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, actor, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		var req decisionRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, r, lg, err)
			return
		}
		permitID := chi.URLParam(r, "id")

		if req.Action == "reject" {
			permit, err := eng.Transition(scope, actor, permitID, models.StatusRejected, req.Comments, clientIP(r))
			if err != nil {
				respondError(w, r, lg, err)
				return
			}
			respondJSON(w, permit)
			return
		}
		if req.Action != "approve" {
			respondError(w, r, lg, apperr.ValidationFailed("action must be approve or reject"))
			return
		}

		permit, err := eng.Transition(scope, actor, permitID, models.StatusUnderReview, req.Comments, clientIP(r))
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		s, err := ptw.LoadSnapshot(eng.DB(), scope, permitID)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		_, err = ptw.AddSignature(eng.DB(), scope, s, models.SigVerifier, actor.UserID, req.SignatureData, clientIP(r), r.UserAgent())
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		if req.ApproverID != "" {
			if _, err := eng.AssignApprover(scope, actor, permitID, req.ApproverID); err != nil {
				respondError(w, r, lg, err)
				return
			}
		}
		permit, err = eng.Transition(scope, actor, permitID, models.StatusPendingApproval, "", clientIP(r))
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, permit)
	}
}

// ApprovePermit is the approver's decision. Approval signs as approver and
// runs the full readiness gate before the permit reaches approved.
func ApprovePermit(eng *ptw.Engine, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, actor, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		var req decisionRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, r, lg, err)
			return
		}
		permitID := chi.URLParam(r, "id")

		if req.Action == "reject" {
			permit, err := eng.Transition(scope, actor, permitID, models.StatusRejected, req.Comments, clientIP(r))
			if err != nil {
				respondError(w, r, lg, err)
				return
			}
			respondJSON(w, permit)
			return
		}
		if req.Action != "approve" {
			respondError(w, r, lg, apperr.ValidationFailed("action must be approve or reject"))
			return
		}

		s, err := ptw.LoadSnapshot(eng.DB(), scope, permitID)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		_, err = ptw.AddSignature(eng.DB(), scope, s, models.SigApprover, actor.UserID, req.SignatureData, clientIP(r), r.UserAgent())
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		permit, err := eng.Transition(scope, actor, permitID, models.StatusApproved, req.Comments, clientIP(r))
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, permit)
	}
}

// transitionHandler builds a handler for one fixed target status.
func transitionHandler(eng *ptw.Engine, lg *zap.SugaredLogger, target string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, actor, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		var body struct {
			Comments string `json:"comments"`
		}
		_ = decodeJSON(r, &body)
		permit, err := eng.Transition(scope, actor, chi.URLParam(r, "id"), target, body.Comments, clientIP(r))
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, permit)
	}
}

// ActivatePermit starts work on an approved permit. The activation
// signatures the permit type requires must be in place.
func ActivatePermit(eng *ptw.Engine, lg *zap.SugaredLogger) http.HandlerFunc {
	return transitionHandler(eng, lg, models.StatusActive)
}

// SuspendPermit pauses an active permit.
func SuspendPermit(eng *ptw.Engine, lg *zap.SugaredLogger) http.HandlerFunc {
	return transitionHandler(eng, lg, models.StatusSuspended)
}

// ResumePermit reactivates a suspended permit.
func ResumePermit(eng *ptw.Engine, lg *zap.SugaredLogger) http.HandlerFunc {
	return transitionHandler(eng, lg, models.StatusActive)
}

// CompletePermit closes work after the closeout gate passes.
func CompletePermit(eng *ptw.Engine, lg *zap.SugaredLogger) http.HandlerFunc {
	return transitionHandler(eng, lg, models.StatusCompleted)
}

type signatureRequest struct {
	SignatureType string `json:"signature_type"`
	SignatureData string `json:"signature_data"`
	DeviceInfo    string `json:"device_info"`
}

// AddSignature records a digital signature on the permit.
func AddSignature(eng *ptw.Engine, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, actor, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		var req signatureRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, r, lg, err)
			return
		}
		if req.SignatureType == "" {
			respondError(w, r, lg, apperr.ValidationFailed("signature_type required"))
			return
		}
		s, err := ptw.LoadSnapshot(eng.DB(), scope, chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		device := req.DeviceInfo
		if device == "" {
			device = r.UserAgent()
		}
		sig, err := ptw.AddSignature(eng.DB(), scope, s, req.SignatureType, actor.UserID, req.SignatureData, clientIP(r), device)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		w.WriteHeader(http.StatusCreated)
		respondJSON(w, sig)
	}
}

// GetReadiness returns the full readiness document for a permit.
func GetReadiness(eng *ptw.Engine, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, actor, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		s, err := ptw.LoadSnapshot(eng.DB(), scope, chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		if !actor.SeesProject(s.Permit.ProjectID) {
			respondError(w, r, lg, apperr.PermissionDenied("project out of scope"))
			return
		}
		respondJSON(w, ptw.Evaluate(s))
	}
}

package ptw

import (
	"time"

	"gorm.io/gorm"

	"athens/internal/apperr"
	"athens/internal/models"
	"athens/internal/tenant"
)

// AssignedSignatory returns the one user allowed to produce a signature of
// the given type on the permit. The second return is false for witness-style
// types that any tenant member may add.
func AssignedSignatory(p models.Permit, sigType string) (string, bool) {
	switch sigType {
	case models.SigRequestor:
		return p.CreatedByID, true
	case models.SigVerifier:
		if p.VerifierID != nil {
			return *p.VerifierID, true
		}
		return "", true
	case models.SigApprover:
		if p.ApproverID != nil {
			return *p.ApproverID, true
		}
		return "", true
	case models.SigIssuer:
		if p.IssuerID != nil {
			return *p.IssuerID, true
		}
		return "", true
	case models.SigReceiver:
		return p.ReceiverID, true
	}
	return "", false
}

// requiredSignatures lists the signature types an action demands.
func requiredSignatures(t models.PermitType, action string) []string {
	switch action {
	case "initiate_workflow":
		return []string{models.SigRequestor}
	case "verify":
		return []string{models.SigVerifier}
	case "approve":
		return []string{models.SigApprover}
	case "activate":
		var req []string
		if t.RequiresIssuerSignature {
			req = append(req, models.SigIssuer)
		}
		if t.RequiresReceiverSignature {
			req = append(req, models.SigReceiver)
		}
		return req
	}
	return nil
}

// GateAction asserts the signatures an action requires are present.
func GateAction(s Snapshot, action string) error {
	required := requiredSignatures(s.Type, action)
	var missing []string
	for _, sigType := range required {
		if !s.HasSignature(sigType) {
			missing = append(missing, sigType)
		}
	}
	if len(missing) > 0 {
		e := apperr.ValidationFailed("required signatures missing")
		return e.With("required", required).With("missing", missing)
	}
	return nil
}

// AddSignature records a signature. It is idempotent per (permit, type,
// signatory): a repeat by the same user returns the existing row; an actor
// other than the assigned signatory is denied.
func AddSignature(db *gorm.DB, scope tenant.Scope, s Snapshot, sigType, userID, data, ip, device string) (models.DigitalSignature, error) {
	assignee, restricted := AssignedSignatory(s.Permit, sigType)
	if restricted {
		if assignee == "" {
			return models.DigitalSignature{}, apperr.SignatureError("no assignee for signature type " + sigType)
		}
		if assignee != userID {
			return models.DigitalSignature{}, apperr.PermissionDenied("not the assigned signatory for " + sigType)
		}
	}

	var existing models.DigitalSignature
	err := scope.Scoped(db).
		Where("permit_id = ? AND signature_type = ? AND signatory_id = ?", s.Permit.ID, sigType, userID).
		First(&existing).Error
	if err == nil {
		return existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return models.DigitalSignature{}, err
	}

	sig := models.DigitalSignature{
		TenantID:      scope.TenantID,
		PermitID:      s.Permit.ID,
		SignatureType: sigType,
		SignatoryID:   userID,
		SignedAt:      time.Now().UTC(),
		SignatureData: data,
		IPAddress:     ip,
		DeviceInfo:    device,
	}
	if err := db.Create(&sig).Error; err != nil {
		return models.DigitalSignature{}, err
	}
	return sig, nil
}

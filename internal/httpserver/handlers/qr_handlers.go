package handlers

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"athens/internal/apperr"
	"athens/internal/cache"
	"athens/internal/models"
	"athens/internal/ptw"
)

func qrSecret() []byte {
	if s := os.Getenv("QR_SECRET"); s != "" {
		return []byte(s)
	}
	return []byte(os.Getenv("JWT_SECRET"))
}

type qrResponse struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IssueQR returns a signed QR payload for a permit. The encoded code is
// cached per (permit, version) so re-issues inside the window are cheap.
func IssueQR(eng *ptw.Engine, c *cache.Cache, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, actor, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		var permit models.Permit
		err = scope.Scoped(eng.DB().Preload("PermitType")).
			First(&permit, "id = ?", chi.URLParam(r, "id")).Error
		if err != nil {
			respondError(w, r, lg, apperr.NotFound("permit"))
			return
		}
		if !actor.SeesProject(permit.ProjectID) {
			respondError(w, r, lg, apperr.PermissionDenied("project out of scope"))
			return
		}
		typeName := ""
		if permit.PermitType != nil {
			typeName = permit.PermitType.Name
		}

		key := "qr:" + permit.ID + ":" + permit.Status + ":" + strconv.Itoa(permit.Version)
		var resp qrResponse
		if c.GetJSON(r.Context(), key, &resp) {
			respondJSON(w, resp)
			return
		}
		now := time.Now()
		resp = qrResponse{
			Code:      ptw.EncodeQR(qrSecret(), permit, typeName, now),
			ExpiresAt: now.UTC().Add(24 * time.Hour),
		}
		c.SetJSON(r.Context(), key, resp)
		respondJSON(w, resp)
	}
}

type qrScanResponse struct {
	Valid  bool           `json:"valid"`
	Reason string         `json:"reason,omitempty"`
	Permit *models.Permit `json:"permit,omitempty"`
	Issued ptw.QRPayload  `json:"issued_snapshot"`
}

// ScanQR validates a scanned code and, for a valid one, returns the live
// permit state next to the issued snapshot so field crews see drift.
func ScanQR(eng *ptw.Engine, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, _, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		payload, reason := ptw.DecodeQR(qrSecret(), chi.URLParam(r, "code"), time.Now())
		if reason != "" {
			respondJSON(w, qrScanResponse{Valid: false, Reason: reason, Issued: payload})
			return
		}
		var permit models.Permit
		err = scope.Scoped(eng.DB().Preload("PermitType")).
			First(&permit, "id = ?", payload.PermitID).Error
		if err != nil {
			// Signed for another tenant or deleted; the code itself checked out.
			respondJSON(w, qrScanResponse{Valid: false, Reason: "not_found", Issued: payload})
			return
		}
		respondJSON(w, qrScanResponse{Valid: true, Permit: &permit, Issued: payload})
	}
}

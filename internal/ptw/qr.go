package ptw

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"athens/internal/models"
)

// QR validity window.
const qrTTL = 24 * time.Hour

// QR validation outcomes.
const (
	QRInvalidSignature = "invalid_signature"
	QRExpired          = "expired"
	QRMalformed        = "malformed"
)

// QRPayload is the signed permit snapshot embedded in a QR code.
type QRPayload struct {
	V            int    `json:"v"`
	PermitID     string `json:"permit_id"`
	PermitNumber string `json:"permit_number"`
	ProjectID    string `json:"project_id"`
	Type         string `json:"type"`
	Status       string `json:"status"`
	IssuedAt     int64  `json:"issued_at"`
	Expires      int64  `json:"expires"`
	Sig          string `json:"sig"`
}

func qrSignature(secret []byte, permitID, permitNumber, projectID string, issuedAt int64) string {
	mac := hmac.New(sha256.New, secret)
	fmt.Fprintf(mac, "%s|%s|%s|%d", permitID, permitNumber, projectID, issuedAt)
	return hex.EncodeToString(mac.Sum(nil))[:16]
}

// EncodeQR issues a signed, base64-encoded permit payload valid for 24h.
func EncodeQR(secret []byte, p models.Permit, typeName string, now time.Time) string {
	issued := now.UTC().Unix()
	payload := QRPayload{
		V:            2,
		PermitID:     p.ID,
		PermitNumber: p.PermitNumber,
		ProjectID:    p.ProjectID,
		Type:         typeName,
		Status:       p.Status,
		IssuedAt:     issued,
		Expires:      now.UTC().Add(qrTTL).Unix(),
		Sig:          qrSignature(secret, p.ID, p.PermitNumber, p.ProjectID, issued),
	}
	b, _ := json.Marshal(payload)
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeQR validates an encoded payload. On failure the second return
// names the reason (malformed, expired, invalid_signature).
func DecodeQR(secret []byte, encoded string, now time.Time) (QRPayload, string) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return QRPayload{}, QRMalformed
	}
	var payload QRPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.PermitID == "" {
		return QRPayload{}, QRMalformed
	}
	if now.UTC().Unix() >= payload.Expires {
		return payload, QRExpired
	}
	want := qrSignature(secret, payload.PermitID, payload.PermitNumber, payload.ProjectID, payload.IssuedAt)
	if !hmac.Equal([]byte(want), []byte(payload.Sig)) {
		return payload, QRInvalidSignature
	}
	return payload, ""
}

package ptw

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"athens/internal/models"
)

var qrTestSecret = []byte("test-secret")

func qrTestPermit() models.Permit {
	return models.Permit{
		ID:           "11111111-1111-1111-1111-111111111111",
		PermitNumber: "PTW-2026-00042",
		ProjectID:    "22222222-2222-2222-2222-222222222222",
		Status:       models.StatusActive,
	}
}

func TestQRRoundTrip(t *testing.T) {
	now := time.Now()
	code := EncodeQR(qrTestSecret, qrTestPermit(), "Hot Work", now)

	payload, reason := DecodeQR(qrTestSecret, code, now.Add(time.Hour))
	require.Empty(t, reason)
	assert.Equal(t, 2, payload.V)
	assert.Equal(t, "PTW-2026-00042", payload.PermitNumber)
	assert.Equal(t, "Hot Work", payload.Type)
	assert.Equal(t, models.StatusActive, payload.Status)
}

func TestQRExpiresAfterWindow(t *testing.T) {
	now := time.Now()
	code := EncodeQR(qrTestSecret, qrTestPermit(), "Hot Work", now)

	_, reason := DecodeQR(qrTestSecret, code, now.Add(24*time.Hour))
	assert.Equal(t, QRExpired, reason)

	_, reason = DecodeQR(qrTestSecret, code, now.Add(23*time.Hour))
	assert.Empty(t, reason)
}

func TestQRTamperedPayloadRejected(t *testing.T) {
	now := time.Now()
	code := EncodeQR(qrTestSecret, qrTestPermit(), "Hot Work", now)

	raw, err := base64.StdEncoding.DecodeString(code)
	require.NoError(t, err)
	var payload QRPayload
	require.NoError(t, json.Unmarshal(raw, &payload))
	payload.PermitNumber = "PTW-2026-99999"
	forged, err := json.Marshal(payload)
	require.NoError(t, err)

	_, reason := DecodeQR(qrTestSecret, base64.StdEncoding.EncodeToString(forged), now)
	assert.Equal(t, QRInvalidSignature, reason)
}

func TestQRWrongSecretRejected(t *testing.T) {
	now := time.Now()
	code := EncodeQR(qrTestSecret, qrTestPermit(), "Hot Work", now)
	_, reason := DecodeQR([]byte("other-secret"), code, now)
	assert.Equal(t, QRInvalidSignature, reason)
}

func TestQRMalformedInput(t *testing.T) {
	now := time.Now()
	_, reason := DecodeQR(qrTestSecret, "%%%not-base64%%%", now)
	assert.Equal(t, QRMalformed, reason)

	empty := base64.StdEncoding.EncodeToString([]byte(`{}`))
	_, reason = DecodeQR(qrTestSecret, empty, now)
	assert.Equal(t, QRMalformed, reason)
}

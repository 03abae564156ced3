package webhookd

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalJSONSortsKeys(t *testing.T) {
	got, err := CanonicalJSON(map[string]any{
		"zebra": 1,
		"alpha": map[string]any{"y": true, "x": false},
		"list":  []any{"b", "a"},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":{"x":false,"y":true},"list":["b","a"],"zebra":1}`, string(got))
}

func TestCanonicalJSONStableAcrossStructsAndMaps(t *testing.T) {
	type payload struct {
		B string `json:"b"`
		A int    `json:"a"`
	}
	fromStruct, err := CanonicalJSON(payload{B: "x", A: 1})
	require.NoError(t, err)
	fromMap, err := CanonicalJSON(map[string]any{"b": "x", "a": 1})
	require.NoError(t, err)
	assert.Equal(t, fromStruct, fromMap)
}

func TestCanonicalJSONNoHTMLEscaping(t *testing.T) {
	got, err := CanonicalJSON(map[string]any{"url": "https://a.example/x?a=1&b=2"})
	require.NoError(t, err)
	assert.Equal(t, `{"url":"https://a.example/x?a=1&b=2"}`, string(got))
}

func TestSignFormat(t *testing.T) {
	body := []byte(`{"event":"permit_approved"}`)
	got := Sign("topsecret", body)

	mac := hmac.New(sha256.New, []byte("topsecret"))
	mac.Write(body)
	want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	assert.Equal(t, want, got)

	assert.NotEqual(t, got, Sign("othersecret", body))
}

func TestDedupeKeyHourBucket(t *testing.T) {
	base := time.Date(2026, 5, 1, 10, 5, 0, 0, time.UTC)

	a := DedupeKey("permit_approved", "p1", base, "ep1")
	b := DedupeKey("permit_approved", "p1", base.Add(40*time.Minute), "ep1")
	assert.Equal(t, a, b, "same hour bucket collapses")

	c := DedupeKey("permit_approved", "p1", base.Add(time.Hour), "ep1")
	assert.NotEqual(t, a, c, "next hour is a fresh key")

	assert.NotEqual(t, a, DedupeKey("permit_rejected", "p1", base, "ep1"))
	assert.NotEqual(t, a, DedupeKey("permit_approved", "p2", base, "ep1"))
	assert.NotEqual(t, a, DedupeKey("permit_approved", "p1", base, "ep2"))
	assert.Len(t, a, 64)
}

func TestNextRetryDelayLadder(t *testing.T) {
	d, ok := NextRetryDelay(1)
	require.True(t, ok)
	assert.Equal(t, 1*time.Minute, d)

	d, ok = NextRetryDelay(2)
	require.True(t, ok)
	assert.Equal(t, 5*time.Minute, d)

	d, ok = NextRetryDelay(3)
	require.True(t, ok)
	assert.Equal(t, 30*time.Minute, d)

	d, ok = NextRetryDelay(4)
	require.True(t, ok)
	assert.Equal(t, 2*time.Hour, d)

	_, ok = NextRetryDelay(5)
	assert.False(t, ok, "fifth attempt is the last")
	_, ok = NextRetryDelay(6)
	assert.False(t, ok)
}

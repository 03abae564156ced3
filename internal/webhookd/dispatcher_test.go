package webhookd

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testDispatcher() *Dispatcher {
	return NewDispatcher(nil, zap.NewNop().Sugar())
}

func TestPostSignsAndDelivers(t *testing.T) {
	body := []byte(`{"event":"permit_approved","permit_id":"p1"}`)
	var gotSig, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(SignatureHeader)
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	code, err := testDispatcher().post(context.Background(), srv.URL, "topsecret", body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "application/json", gotType)
	assert.Equal(t, body, gotBody)
	assert.Equal(t, Sign("topsecret", body), gotSig)
}

func TestPostNon2xxIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	code, err := testDispatcher().post(context.Background(), srv.URL, "s", []byte(`{}`))
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Contains(t, err.Error(), "502")
}

func TestPostConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // nothing listening anymore

	code, err := testDispatcher().post(context.Background(), srv.URL, "s", []byte(`{}`))
	assert.Error(t, err)
	assert.Zero(t, code)
}

package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsUnwraps(t *testing.T) {
	wrapped := fmt.Errorf("loading permit: %w", NotFound("permit"))
	ae, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeNotFound, ae.Code)
	assert.Equal(t, http.StatusNotFound, ae.Status)

	_, ok = As(errors.New("plain"))
	assert.False(t, ok)
}

func TestWithCopiesDetails(t *testing.T) {
	base := ValidationFailed("bad payload")
	a := base.With("field", "permit_number")
	b := a.With("field", "title")

	assert.Nil(t, base.Details, "sentinel stays clean")
	assert.Equal(t, "permit_number", a.Details["field"])
	assert.Equal(t, "title", b.Details["field"])
	assert.Equal(t, base.Code, a.Code)
	assert.Equal(t, base.Status, b.Status)
}

func TestWorkflowErrorDetails(t *testing.T) {
	e := WorkflowError("draft", "approved")
	assert.Equal(t, CodeWorkflowError, e.Code)
	assert.Equal(t, "draft", e.Details["current_status"])
	assert.Equal(t, "approved", e.Details["target_status"])
	assert.Contains(t, e.Error(), "draft")
	assert.Contains(t, e.Error(), "approved")
}

func TestVersionConflict(t *testing.T) {
	e := VersionConflict(4, 2)
	assert.Equal(t, CodeConflict, e.Code)
	assert.Equal(t, http.StatusConflict, e.Status)
	assert.Equal(t, 4, e.Details["server_version"])
	assert.Equal(t, 2, e.Details["client_version"])
}

func TestStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, TenantContextMissing().Status)
	assert.Equal(t, http.StatusBadRequest, TenantImmutable().Status)
	assert.Equal(t, http.StatusForbidden, PermissionDenied("no").Status)
	assert.Equal(t, http.StatusForbidden, CollaborationWriteDenied().Status)
	assert.Equal(t, http.StatusBadRequest, SignatureError("missing").Status)
}

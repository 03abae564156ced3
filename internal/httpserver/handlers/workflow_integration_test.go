//go:build integration

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"athens/internal/apperr"
	"athens/internal/auth"
	"athens/internal/identity"
	"athens/internal/models"
	"athens/internal/ptw"
	"athens/internal/tenant"
	"athens/internal/testdb"
)

type submitFixture struct {
	db       *gorm.DB
	eng      *ptw.Engine
	scope    tenant.Scope
	creator  models.User
	verifier models.User
	permit   models.Permit
}

func newSubmitFixture(t *testing.T) submitFixture {
	t.Helper()
	gdb := testdb.Open(t)

	tnt := models.Tenant{Name: "Acme Refinery", IsActive: true}
	require.NoError(t, gdb.Create(&tnt).Error)
	proj := models.Project{TenantID: tnt.ID, Name: "Unit 400 Turnaround", IsActive: true}
	require.NoError(t, gdb.Create(&proj).Error)
	pt := models.PermitType{
		TenantID: tnt.ID, Name: "Cold Work", Category: models.CategoryColdWork,
		RiskLevel: "low", ValidityHours: 24, IsActive: true,
	}
	require.NoError(t, gdb.Create(&pt).Error)
	creator := models.User{
		TenantID: tnt.ID, Email: "creator@acme.test", PasswordHash: "x",
		UserType: models.UserTypeAdminUser, AdminType: models.AdminTypeContractorUser,
		Grade: "C", IsActive: true,
	}
	require.NoError(t, gdb.Create(&creator).Error)
	verifier := models.User{
		TenantID: tnt.ID, Email: "verifier@acme.test", PasswordHash: "x",
		UserType: models.UserTypeAdminUser, AdminType: models.AdminTypeEPCUser,
		Grade: "B", IsActive: true,
	}
	require.NoError(t, gdb.Create(&verifier).Error)

	eng := ptw.NewEngine(gdb, zap.NewNop().Sugar(), nil)
	scope := tenant.Scope{TenantID: tnt.ID}
	actor := identity.Facet{
		UserID: creator.ID, TenantID: tnt.ID,
		UserType: creator.UserType, AdminType: creator.AdminType,
		CompanyType: identity.CompanyType(creator.AdminType), Grade: creator.Grade,
	}
	p, err := eng.Create(scope, actor, ptw.CreateInput{
		PermitTypeID: pt.ID,
		ProjectID:    proj.ID,
		Title:        "flush line 4B",
		PlannedStart: time.Now().Add(time.Hour),
		PlannedEnd:   time.Now().Add(9 * time.Hour),
	})
	require.NoError(t, err)

	return submitFixture{db: gdb, eng: eng, scope: scope, creator: creator, verifier: verifier, permit: p}
}

func (f submitFixture) submit(t *testing.T, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	r := httptest.NewRequest(http.MethodPost, "/api/v1/ptw/permits/"+f.permit.ID+"/submit", bytes.NewReader(raw))

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", f.permit.ID)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	ctx = auth.WithClaims(ctx, auth.Claims{
		Subject:   f.creator.ID,
		TenantID:  f.creator.TenantID,
		UserType:  f.creator.UserType,
		AdminType: f.creator.AdminType,
		Grade:     f.creator.Grade,
	})

	w := httptest.NewRecorder()
	SubmitPermit(f.eng, zap.NewNop().Sugar())(w, r.WithContext(ctx))
	return w
}

func TestSubmitWithVerifierButNoSignatureIsRejected(t *testing.T) {
	f := newSubmitFixture(t)

	w := f.submit(t, map[string]any{"verifier_id": f.verifier.ID})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	var body struct {
		Error struct {
			Code    string         `json:"code"`
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, apperr.CodeValidationFailed, body.Error.Code)
	missing, ok := body.Error.Details["missing"].([]any)
	require.True(t, ok, "details carry the missing signature list: %s", w.Body.String())
	assert.Contains(t, missing, models.SigRequestor)

	// The submit itself committed; only the advance was refused.
	var row models.Permit
	require.NoError(t, f.scope.Scoped(f.db).First(&row, "id = ?", f.permit.ID).Error)
	assert.Equal(t, models.StatusSubmitted, row.Status)
}

func TestSubmitWithSignatureAndVerifierAdvances(t *testing.T) {
	f := newSubmitFixture(t)

	w := f.submit(t, map[string]any{
		"verifier_id":    f.verifier.ID,
		"signature_data": "data:image/png;base64,iVBORw0KGgo=",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got models.Permit
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, models.StatusPendingVerification, got.Status)

	var row models.Permit
	require.NoError(t, f.scope.Scoped(f.db).First(&row, "id = ?", f.permit.ID).Error)
	assert.Equal(t, models.StatusPendingVerification, row.Status)
	require.NotNil(t, row.VerifierID)
	assert.Equal(t, f.verifier.ID, *row.VerifierID)
}

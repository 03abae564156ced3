package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"athens/internal/apperr"
	"athens/internal/auth"
	"athens/internal/identity"
	"athens/internal/tenant"
)

func respondJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

type errorBody struct {
	Error *apperr.Error `json:"error"`
}

// respondError renders domain errors uniformly and hides everything else
// behind a 500 carrying only the request id.
func respondError(w http.ResponseWriter, r *http.Request, lg *zap.SugaredLogger, err error) {
	if ae, ok := apperr.As(err); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(ae.Status)
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		_ = enc.Encode(errorBody{Error: ae})
		return
	}
	reqID := middleware.GetReqID(r.Context())
	lg.Errorw("unhandled error", "request_id", reqID, "path", r.URL.Path, "error", err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":       "INTERNAL",
			"message":    "internal server error",
			"request_id": reqID,
		},
	})
}

func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.ValidationFailed("invalid JSON body: " + err.Error())
	}
	return nil
}

// requestScope resolves the tenant scope and actor facet for a request.
func requestScope(r *http.Request) (tenant.Scope, identity.Facet, error) {
	scope, err := tenant.Resolve(r)
	if err != nil {
		return tenant.Scope{}, identity.Facet{}, err
	}
	facet := identity.FromClaims(auth.FromContext(r.Context()))
	if facet.TenantID == "" {
		facet.TenantID = scope.TenantID
	}
	return scope, facet, nil
}

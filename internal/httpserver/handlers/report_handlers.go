package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"athens/internal/apperr"
	"athens/internal/cache"
	"athens/internal/models"
	"athens/internal/reporting"
	"athens/internal/tenant"
)

// GetKPIs serves the dashboard counters, cached briefly per tenant and
// permit high-water mark.
func GetKPIs(rep *reporting.Reporter, c *cache.Cache, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, _, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		projectID := r.URL.Query().Get("project_id")

		key := "kpi:" + scope.TenantID + ":" + projectID + ":" + permitHighWater(rep, scope)
		var out reporting.KPIs
		if c.GetJSON(r.Context(), key, &out) {
			respondJSON(w, out)
			return
		}
		out, err = rep.KPIs(scope, projectID)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		c.SetJSON(r.Context(), key, out)
		respondJSON(w, out)
	}
}

// permitHighWater returns the tenant's latest permit updated_at as a cache
// discriminator. An error degrades to the empty string and a short-lived
// shared key.
func permitHighWater(rep *reporting.Reporter, scope tenant.Scope) string {
	var ts time.Time
	err := scope.Scoped(rep.DB().Model(&models.Permit{})).
		Select("coalesce(max(updated_at), 'epoch'::timestamptz)").
		Scan(&ts).Error
	if err != nil {
		return ""
	}
	return ts.UTC().Format(time.RFC3339Nano)
}

// GetReportSummary counts permit activity in a date range (default the
// trailing 30 days).
func GetReportSummary(rep *reporting.Reporter, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, _, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		now := time.Now().UTC()
		from := now.AddDate(0, 0, -30)
		to := now
		if s := r.URL.Query().Get("date_from"); s != "" {
			ts, err := time.Parse("2006-01-02", s)
			if err != nil {
				respondError(w, r, lg, apperr.ValidationFailed("date_from must be YYYY-MM-DD"))
				return
			}
			from = ts
		}
		if s := r.URL.Query().Get("date_to"); s != "" {
			ts, err := time.Parse("2006-01-02", s)
			if err != nil {
				respondError(w, r, lg, apperr.ValidationFailed("date_to must be YYYY-MM-DD"))
				return
			}
			to = ts.AddDate(0, 0, 1)
		}
		if !to.After(from) {
			respondError(w, r, lg, apperr.ValidationFailed("date_to must be after date_from"))
			return
		}
		out, err := rep.Summary(scope, r.URL.Query().Get("project_id"), from, to)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, out)
	}
}

// GetReportExceptions lists the permits behind the exception counters.
func GetReportExceptions(rep *reporting.Reporter, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, _, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		out, err := rep.Exceptions(scope, r.URL.Query().Get("project_id"))
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, out)
	}
}

package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"athens/internal/apperr"
	"athens/internal/models"
	"athens/internal/ptw"
	"athens/internal/tenant"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func pagination(r *http.Request) (page, size int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	size, _ = strconv.Atoi(r.URL.Query().Get("page_size"))
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}

// ListPermits returns tenant permits with filters and pagination. A
// collaboration_id query widens the scope to linked projects of the other
// member tenants, read-only.
func ListPermits(eng *ptw.Engine, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, actor, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		db := eng.DB()
		q := db.Model(&models.Permit{})

		if collabID := r.URL.Query().Get("collaboration_id"); collabID != "" {
			ov, err := tenant.ResolveOverlay(db, scope, collabID, "ptw", models.CollabActionRead)
			if err != nil {
				respondError(w, r, lg, err)
				return
			}
			q = scope.ScopedWithOverlay(q, ov)
		} else {
			q = scope.Scoped(q)
		}

		query := r.URL.Query()
		if statuses, ok := query["status"]; ok && len(statuses) > 0 {
			q = q.Where("status IN ?", statuses)
		}
		if p := query.Get("project_id"); p != "" {
			q = q.Where("project_id = ?", p)
		}
		if rl := query.Get("risk_level"); rl != "" {
			q = q.Where("risk_level = ?", rl)
		}
		if t := query.Get("permit_type_id"); t != "" {
			q = q.Where("permit_type_id = ?", t)
		}
		if s := query.Get("search"); s != "" {
			like := "%" + s + "%"
			q = q.Where("permit_number ILIKE ? OR title ILIKE ? OR work_location ILIKE ?", like, like, like)
		}
		if from := query.Get("date_from"); from != "" {
			if ts, err := time.Parse("2006-01-02", from); err == nil {
				q = q.Where("planned_start >= ?", ts)
			}
		}
		if to := query.Get("date_to"); to != "" {
			if ts, err := time.Parse("2006-01-02", to); err == nil {
				q = q.Where("planned_start < ?", ts.AddDate(0, 0, 1))
			}
		}
		if !actor.IsMaster() && actor.ProjectID != "" {
			q = q.Where("project_id = ?", actor.ProjectID)
		}

		var total int64
		if err := q.Count(&total).Error; err != nil {
			respondError(w, r, lg, err)
			return
		}
		page, size := pagination(r)
		var permits []models.Permit
		err = q.Preload("PermitType").
			Order("created_at desc").
			Offset((page - 1) * size).
			Limit(size).
			Find(&permits).Error
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, map[string]any{
			"permits":   permits,
			"total":     total,
			"page":      page,
			"page_size": size,
		})
	}
}

// CreatePermit inserts a draft permit.
func CreatePermit(eng *ptw.Engine, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, actor, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		var in ptw.CreateInput
		if err := decodeJSON(r, &in); err != nil {
			respondError(w, r, lg, err)
			return
		}
		permit, err := eng.Create(scope, actor, in)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		lg.Infow("permit created", "permit", permit.PermitNumber, "tenant", scope.TenantID)
		w.WriteHeader(http.StatusCreated)
		respondJSON(w, permit)
	}
}

// GetPermit fetches one permit with its type.
func GetPermit(eng *ptw.Engine, lg *zap.SugaredLogger) http.HandlerFunc {
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
		respondJSON(w, permit)
	}
}

// UpdatePermit patches a draft or submitted permit.
func UpdatePermit(eng *ptw.Engine, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, actor, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		var in ptw.UpdateInput
		if err := decodeJSON(r, &in); err != nil {
			respondError(w, r, lg, err)
			return
		}
		permit, err := eng.Update(scope, actor, chi.URLParam(r, "id"), in)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, permit)
	}
}

// CancelPermit is the delete surface: permits are never removed, only
// cancelled.
func CancelPermit(eng *ptw.Engine, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, actor, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		permit, err := eng.Transition(scope, actor, chi.URLParam(r, "id"), models.StatusCancelled, r.URL.Query().Get("reason"), clientIP(r))
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, permit)
	}
}

// PermitAuditTrail lists the append-only audit rows of a permit, newest
// first.
func PermitAuditTrail(eng *ptw.Engine, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, _, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		permitID := chi.URLParam(r, "id")
		var permit models.Permit
		if err := scope.Scoped(eng.DB()).First(&permit, "id = ?", permitID).Error; err != nil {
			respondError(w, r, lg, apperr.NotFound("permit"))
			return
		}
		var rows []models.PermitAudit
		err = scope.Scoped(eng.DB()).
			Where("permit_id = ?", permitID).
			Order("created_at desc").
			Find(&rows).Error
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, map[string]any{"audit": rows, "count": len(rows)})
	}
}

// ListPermitTypes returns the tenant's active permit types.
func ListPermitTypes(eng *ptw.Engine, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, _, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		q := scope.Scoped(eng.DB().Model(&models.PermitType{})).Where("is_active")
		if c := r.URL.Query().Get("category"); c != "" {
			q = q.Where("category = ?", c)
		}
		var types []models.PermitType
		if err := q.Order("name asc").Find(&types).Error; err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, map[string]any{"permit_types": types})
	}
}

type createPermitTypeRequest struct {
	Name                          string             `json:"name"`
	Category                      string             `json:"category"`
	RiskLevel                     string             `json:"risk_level"`
	ValidityHours                 int                `json:"validity_hours"`
	RequiresGasTesting            bool               `json:"requires_gas_testing"`
	RequiresStructuredIsolation   bool               `json:"requires_structured_isolation"`
	RequiresFireWatch             bool               `json:"requires_fire_watch"`
	RequiresDeisolationOnCloseout bool               `json:"requires_deisolation_on_closeout"`
	RequiresIssuerSignature       bool               `json:"requires_issuer_signature"`
	RequiresReceiverSignature     bool               `json:"requires_receiver_signature"`
	MandatoryPPE                  models.StringArray `json:"mandatory_ppe"`
}

// CreatePermitType registers a permit type for the tenant. Master only;
// the router gates the route.
func CreatePermitType(eng *ptw.Engine, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, _, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		var req createPermitTypeRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, r, lg, err)
			return
		}
		if req.Name == "" || req.Category == "" {
			respondError(w, r, lg, apperr.ValidationFailed("name and category required"))
			return
		}
		if req.ValidityHours <= 0 {
			req.ValidityHours = 8
		}
		pt := models.PermitType{
			TenantID:                      scope.TenantID,
			Name:                          req.Name,
			Category:                      req.Category,
			RiskLevel:                     req.RiskLevel,
			ValidityHours:                 req.ValidityHours,
			RequiresGasTesting:            req.RequiresGasTesting,
			RequiresStructuredIsolation:   req.RequiresStructuredIsolation,
			RequiresFireWatch:             req.RequiresFireWatch,
			RequiresDeisolationOnCloseout: req.RequiresDeisolationOnCloseout,
			RequiresIssuerSignature:       req.RequiresIssuerSignature,
			RequiresReceiverSignature:     req.RequiresReceiverSignature,
			MandatoryPPE:                  req.MandatoryPPE,
			IsActive:                      true,
		}
		if err := eng.DB().Create(&pt).Error; err != nil {
			respondError(w, r, lg, err)
			return
		}
		w.WriteHeader(http.StatusCreated)
		respondJSON(w, pt)
	}
}

func clientIP(r *http.Request) string {
	return r.RemoteAddr
}

package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"athens/internal/apperr"
	"athens/internal/models"
)

// ListWebhooks returns the tenant's webhook endpoints. Secrets never leave
// the server after creation.
func ListWebhooks(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, _, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		var endpoints []models.WebhookEndpoint
		if err := scope.Scoped(db).Order("created_at desc").Find(&endpoints).Error; err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, map[string]any{"webhooks": endpoints})
	}
}

type createWebhookRequest struct {
	Name      string             `json:"name"`
	URL       string             `json:"url"`
	ProjectID *string            `json:"project_id"`
	Events    models.StringArray `json:"events"`
}

// CreateWebhook registers an endpoint and returns its generated secret
// exactly once.
func CreateWebhook(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, _, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		var req createWebhookRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, r, lg, err)
			return
		}
		if req.Name == "" || len(req.Events) == 0 {
			respondError(w, r, lg, apperr.ValidationFailed("name and events required"))
			return
		}
		u, err := url.Parse(req.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			respondError(w, r, lg, apperr.ValidationFailed("url must be an absolute http(s) URL"))
			return
		}
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			respondError(w, r, lg, err)
			return
		}
		ep := models.WebhookEndpoint{
			TenantID:  scope.TenantID,
			ProjectID: req.ProjectID,
			Name:      req.Name,
			URL:       req.URL,
			Secret:    hex.EncodeToString(secret),
			Enabled:   true,
			Events:    req.Events,
		}
		if err := db.Create(&ep).Error; err != nil {
			respondError(w, r, lg, err)
			return
		}
		w.WriteHeader(http.StatusCreated)
		respondJSON(w, map[string]any{"webhook": ep, "secret": ep.Secret})
	}
}

type updateWebhookRequest struct {
	Name    *string            `json:"name"`
	URL     *string            `json:"url"`
	Enabled *bool              `json:"enabled"`
	Events  models.StringArray `json:"events"`
}

// UpdateWebhook patches an endpoint; the secret is not rotatable here.
func UpdateWebhook(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, _, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		var req updateWebhookRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, r, lg, err)
			return
		}
		id := chi.URLParam(r, "id")
		var ep models.WebhookEndpoint
		if err := scope.Scoped(db).First(&ep, "id = ?", id).Error; err != nil {
			respondError(w, r, lg, apperr.NotFound("webhook"))
			return
		}
		updates := map[string]any{"updated_at": time.Now().UTC()}
		if req.Name != nil {
			updates["name"] = *req.Name
		}
		if req.URL != nil {
			u, err := url.Parse(*req.URL)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				respondError(w, r, lg, apperr.ValidationFailed("url must be an absolute http(s) URL"))
				return
			}
			updates["url"] = *req.URL
		}
		if req.Enabled != nil {
			updates["enabled"] = *req.Enabled
		}
		if req.Events != nil {
			updates["events"] = req.Events
		}
		if err := scope.Scoped(db.Model(&models.WebhookEndpoint{})).Where("id = ?", id).Updates(updates).Error; err != nil {
			respondError(w, r, lg, err)
			return
		}
		if err := scope.Scoped(db).First(&ep, "id = ?", id).Error; err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, ep)
	}
}

// DeleteWebhook removes an endpoint. Delivery logs stay for audit.
func DeleteWebhook(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, _, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		res := scope.Scoped(db).Delete(&models.WebhookEndpoint{}, "id = ?", chi.URLParam(r, "id"))
		if res.Error != nil {
			respondError(w, r, lg, res.Error)
			return
		}
		if res.RowsAffected == 0 {
			respondError(w, r, lg, apperr.NotFound("webhook"))
			return
		}
		respondJSON(w, map[string]string{"status": "deleted"})
	}
}

// ListWebhookDeliveries returns the delivery log of one endpoint, newest
// first, capped at 200 rows.
func ListWebhookDeliveries(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, _, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		id := chi.URLParam(r, "id")
		var ep models.WebhookEndpoint
		if err := scope.Scoped(db).First(&ep, "id = ?", id).Error; err != nil {
			respondError(w, r, lg, apperr.NotFound("webhook"))
			return
		}
		q := scope.Scoped(db).Where("webhook_id = ?", id)
		if s := r.URL.Query().Get("status"); s != "" {
			q = q.Where("status = ?", s)
		}
		var logs []models.WebhookDeliveryLog
		if err := q.Order("created_at desc").Limit(200).Find(&logs).Error; err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, map[string]any{"deliveries": logs})
	}
}

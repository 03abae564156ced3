package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"athens/internal/apperr"
	"athens/internal/auth"
	"athens/internal/models"
)

// ListUsers returns the caller's tenant users, optionally filtered by
// project and admin type.
func ListUsers(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, _, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		q := scope.Scoped(db.Model(&models.User{}))
		if p := r.URL.Query().Get("project_id"); p != "" {
			q = q.Where("project_id = ?", p)
		}
		if at := r.URL.Query().Get("admin_type"); at != "" {
			q = q.Where("admin_type = ?", at)
		}
		var users []models.User
		if err := q.Order("created_at desc").Find(&users).Error; err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, map[string]any{"users": users, "count": len(users)})
	}
}

type createUserRequest struct {
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	FullName    string  `json:"full_name"`
	ProjectID   *string `json:"project_id"`
	UserType    string  `json:"user_type"`
	AdminType   string  `json:"admin_type"`
	Grade       string  `json:"grade"`
	CompanyName string  `json:"company_name"`
}

// CreateUser provisions a user inside the caller's tenant. The tenant id
// always comes from the scope, never from the body.
func CreateUser(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, actor, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		var req createUserRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, r, lg, err)
			return
		}
		if req.Email == "" || len(req.Password) < 8 {
			respondError(w, r, lg, apperr.ValidationFailed("email and a password of at least 8 characters required"))
			return
		}
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		if req.UserType == "" {
			req.UserType = models.UserTypeAdminUser
		}
		if req.AdminType == "" {
			req.AdminType = models.AdminTypeContractorUser
		}
		u := models.User{
			TenantID:     scope.TenantID,
			ProjectID:    req.ProjectID,
			Email:        req.Email,
			PasswordHash: hash,
			FullName:     req.FullName,
			UserType:     req.UserType,
			AdminType:    req.AdminType,
			Grade:        req.Grade,
			CompanyName:  req.CompanyName,
			CreatedByID:  &actor.UserID,
			IsActive:     true,
		}
		if err := db.Create(&u).Error; err != nil {
			respondError(w, r, lg, apperr.Conflict("user with this email already exists"))
			return
		}
		w.WriteHeader(http.StatusCreated)
		respondJSON(w, u)
	}
}

// GetUser fetches one tenant user.
func GetUser(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, _, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		var u models.User
		if err := scope.Scoped(db).First(&u, "id = ?", chi.URLParam(r, "id")).Error; err != nil {
			respondError(w, r, lg, apperr.NotFound("user"))
			return
		}
		respondJSON(w, u)
	}
}

type updateUserRequest struct {
	FullName    *string `json:"full_name"`
	ProjectID   *string `json:"project_id"`
	Grade       *string `json:"grade"`
	CompanyName *string `json:"company_name"`
	IsActive    *bool   `json:"is_active"`
}

// UpdateUser patches mutable user fields. Deactivation revokes every open
// session of the user.
func UpdateUser(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, _, err := requestScope(r)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		var req updateUserRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, r, lg, err)
			return
		}
		id := chi.URLParam(r, "id")
		var u models.User
		if err := scope.Scoped(db).First(&u, "id = ?", id).Error; err != nil {
			respondError(w, r, lg, apperr.NotFound("user"))
			return
		}
		now := time.Now().UTC()
		updates := map[string]any{"updated_at": now}
		if req.FullName != nil {
			updates["full_name"] = *req.FullName
		}
		if req.ProjectID != nil {
			updates["project_id"] = *req.ProjectID
		}
		if req.Grade != nil {
			updates["grade"] = *req.Grade
		}
		if req.CompanyName != nil {
			updates["company_name"] = *req.CompanyName
		}
		if req.IsActive != nil {
			updates["is_active"] = *req.IsActive
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := scope.Scoped(tx.Model(&models.User{})).Where("id = ?", id).Updates(updates).Error; err != nil {
				return err
			}
			if req.IsActive != nil && !*req.IsActive {
				return tx.Model(&models.Session{}).
					Where("user_id = ? AND revoked_at IS NULL", id).
					Update("revoked_at", now).Error
			}
			return nil
		})
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		if err := scope.Scoped(db).First(&u, "id = ?", id).Error; err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, u)
	}
}

package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"athens/internal/apperr"
	"athens/internal/auth"
	"athens/internal/models"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      models.User `json:"user"`
}

// Login authenticates by email and password and persists a session row
// next to the issued token's jti.
func Login(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, r, lg, err)
			return
		}
		if req.Email == "" || req.Password == "" {
			respondError(w, r, lg, apperr.ValidationFailed("email and password required"))
			return
		}
		var u models.User
		if err := db.First(&u, "email = ? AND is_active", req.Email).Error; err != nil {
			respondError(w, r, lg, apperr.New(apperr.CodePermissionDenied, http.StatusUnauthorized, "invalid credentials"))
			return
		}
		if err := auth.CheckPassword(u.PasswordHash, req.Password); err != nil {
			respondError(w, r, lg, apperr.New(apperr.CodePermissionDenied, http.StatusUnauthorized, "invalid credentials"))
			return
		}
		token, jti, expiresAt, err := auth.Sign(u)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		sess := models.Session{JTI: jti, UserID: u.ID, ExpiresAt: expiresAt}
		if err := db.Create(&sess).Error; err != nil {
			respondError(w, r, lg, err)
			return
		}
		lg.Infow("login", "user", u.ID, "tenant", u.TenantID)
		respondJSON(w, loginResponse{Token: token, ExpiresAt: expiresAt, User: u})
	}
}

// Logout revokes the session behind the presented token.
func Logout(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := auth.FromContext(r.Context())
		now := time.Now().UTC()
		err := db.Model(&models.Session{}).
			Where("jti = ? AND revoked_at IS NULL", claims.JWTID).
			Update("revoked_at", now).Error
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, map[string]string{"status": "logged_out"})
	}
}

// Me returns the authenticated user's profile.
func Me(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := auth.FromContext(r.Context())
		var u models.User
		if err := db.First(&u, "id = ?", claims.Subject).Error; err != nil {
			respondError(w, r, lg, apperr.NotFound("user"))
			return
		}
		respondJSON(w, u)
	}
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword rotates the caller's password after verifying the current
// one, then revokes every other session of the user.
func ChangePassword(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req changePasswordRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, r, lg, err)
			return
		}
		if len(req.NewPassword) < 8 {
			respondError(w, r, lg, apperr.ValidationFailed("new_password must be at least 8 characters"))
			return
		}
		claims := auth.FromContext(r.Context())
		var u models.User
		if err := db.First(&u, "id = ?", claims.Subject).Error; err != nil {
			respondError(w, r, lg, apperr.NotFound("user"))
			return
		}
		if err := auth.CheckPassword(u.PasswordHash, req.CurrentPassword); err != nil {
			respondError(w, r, lg, apperr.PermissionDenied("current password incorrect"))
			return
		}
		hash, err := auth.HashPassword(req.NewPassword)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		now := time.Now().UTC()
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&models.User{}).Where("id = ?", u.ID).
				Updates(map[string]any{"password_hash": hash, "updated_at": now}).Error; err != nil {
				return err
			}
			return tx.Model(&models.Session{}).
				Where("user_id = ? AND jti <> ? AND revoked_at IS NULL", u.ID, claims.JWTID).
				Update("revoked_at", now).Error
		})
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, map[string]string{"status": "password_changed"})
	}
}

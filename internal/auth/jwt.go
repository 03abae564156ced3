package auth

import (
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"athens/internal/models"
)

func parseTTL() time.Duration {
	if s := os.Getenv("JWT_EXPIRES_IN"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return 24 * time.Hour
}

// Sign issues a token for the user. The jti is returned so the caller can
// persist a session row next to it.
func Sign(u models.User) (token string, jti string, expiresAt time.Time, err error) {
	key := []byte(os.Getenv("JWT_SECRET"))
	jti = uuid.NewString()
	expiresAt = time.Now().Add(parseTTL())
	claims := jwt.MapClaims{
		"sub":        u.ID,
		"tenant_id":  u.TenantID,
		"user_type":  u.UserType,
		"admin_type": u.AdminType,
		"grade":      u.Grade,
		"jti":        jti,
		"exp":        expiresAt.Unix(),
		"iat":        time.Now().Unix(),
	}
	if u.ProjectID != nil {
		claims["project_id"] = *u.ProjectID
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token, err = tok.SignedString(key)
	return token, jti, expiresAt, err
}

func Verify(tokenStr string) (Claims, error) {
	key := []byte(os.Getenv("JWT_SECRET"))
	tok, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return key, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !tok.Valid {
		return Claims{}, errors.New("invalid token")
	}
	mapc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, errors.New("invalid claims")
	}
	str := func(k string) string {
		s, _ := mapc[k].(string)
		return s
	}
	return Claims{
		Subject:   str("sub"),
		TenantID:  str("tenant_id"),
		ProjectID: str("project_id"),
		UserType:  str("user_type"),
		AdminType: str("admin_type"),
		Grade:     str("grade"),
		JWTID:     str("jti"),
	}, nil
}

package auth

import (
	"context"
)

type ctxKey string

const userKey ctxKey = "userClaims"

// Claims is the request principal: who, which tenant, which project, and
// the role facets the identity layer classifies on.
type Claims struct {
	Subject   string
	TenantID  string
	ProjectID string
	UserType  string
	AdminType string
	Grade     string
	JWTID     string
}

func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, userKey, c)
}

func FromContext(ctx context.Context) Claims {
	if v, ok := ctx.Value(userKey).(Claims); ok {
		return v
	}
	return Claims{}
}

func Subject(ctx context.Context) string {
	return FromContext(ctx).Subject
}

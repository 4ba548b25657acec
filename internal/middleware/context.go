package middleware

import (
	"context"

	"github.com/aslanbek/account-service/internal/entity"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

const userCtxKey = contextKey("current_user")

// WithUser attaches the resolved user to the request context for the
// remainder of the request's lifetime.
func WithUser(ctx context.Context, user *entity.User) context.Context {
	return context.WithValue(ctx, userCtxKey, user)
}

// UserFromContext returns the user attached by the auth middleware.
func UserFromContext(ctx context.Context) (*entity.User, bool) {
	user, ok := ctx.Value(userCtxKey).(*entity.User)
	return user, ok
}

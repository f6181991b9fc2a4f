package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/nabd-ai/vertex-backend/pkg/enums"
	"github.com/nabd-ai/vertex-backend/pkg/visibility"
)

type contextKey uint8

const (
	keyUserID contextKey = iota + 1
	keyRoles
	keyAccessID
)

func valueOf[T any](ctx context.Context, key contextKey) T {
	var zero T
	if ctx == nil {
		return zero
	}
	if v, ok := ctx.Value(key).(T); ok {
		return v
	}
	return zero
}

func with(ctx context.Context, key contextKey, v any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, v)
}

func UserIDFromContext(ctx context.Context) string { return valueOf[string](ctx, keyUserID) }

func RolesFromContext(ctx context.Context) []enums.UserRole {
	return valueOf[[]enums.UserRole](ctx, keyRoles)
}

// AccessIDFromContext returns the jti of the token that authenticated the request.
func AccessIDFromContext(ctx context.Context) string { return valueOf[string](ctx, keyAccessID) }

// CallerFromContext is false when no parsable, non-nil user id was seeded.
func CallerFromContext(ctx context.Context) (visibility.Caller, bool) {
	id, err := uuid.Parse(UserIDFromContext(ctx))
	if err != nil || id == uuid.Nil {
		return visibility.Caller{}, false
	}
	return visibility.Caller{UserID: id, Roles: RolesFromContext(ctx)}, true
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return with(ctx, keyUserID, userID)
}

func WithRoles(ctx context.Context, roles []enums.UserRole) context.Context {
	return with(ctx, keyRoles, roles)
}

func WithAccessID(ctx context.Context, jti string) context.Context {
	return with(ctx, keyAccessID, jti)
}

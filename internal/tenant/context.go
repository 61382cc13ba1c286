package tenant

import (
	"context"

	"github.com/google/uuid"

	"github.com/rodneygagnon/qckstrt/internal/models"
)

type contextKey string

const scopeKey contextKey = "scope"

// WithScope attaches the caller's user/tenant scope to ctx.
func WithScope(ctx context.Context, s models.Scope) context.Context {
	return context.WithValue(ctx, scopeKey, s)
}

// ScopeFromContext returns the scope set by WithScope. ok is false when no
// scope was attached or the attached scope is empty.
func ScopeFromContext(ctx context.Context) (models.Scope, bool) {
	s, ok := ctx.Value(scopeKey).(models.Scope)
	if !ok || s.Empty() {
		return models.Scope{}, false
	}
	return s, true
}

func UserIDFromContext(ctx context.Context) uuid.UUID {
	s, _ := ScopeFromContext(ctx)
	return s.UserID
}

func IDFromContext(ctx context.Context) uuid.UUID {
	s, _ := ScopeFromContext(ctx)
	return s.TenantID
}

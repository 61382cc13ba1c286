package tenant

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/rodneygagnon/qckstrt/internal/models"
)

func TestScopeRoundTrip(t *testing.T) {
	user, tenantID := uuid.New(), uuid.New()
	ctx := WithScope(context.Background(), models.Scope{UserID: user, TenantID: tenantID})

	s, ok := ScopeFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, user, s.UserID)
	assert.Equal(t, user, UserIDFromContext(ctx))
	assert.Equal(t, tenantID, IDFromContext(ctx))
}

func TestScopeMissing(t *testing.T) {
	_, ok := ScopeFromContext(context.Background())
	assert.False(t, ok)

	_, ok = ScopeFromContext(WithScope(context.Background(), models.Scope{}))
	assert.False(t, ok)
	assert.Equal(t, uuid.Nil, UserIDFromContext(context.Background()))
}

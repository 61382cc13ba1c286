package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rodneygagnon/qckstrt/internal/models"
	"github.com/rodneygagnon/qckstrt/internal/tenant"
)

const testSecret = "test-secret"

func serve(t *testing.T, header string) (*httptest.ResponseRecorder, models.Scope) {
	t.Helper()
	m, err := NewJWTMiddleware(testSecret)
	require.NoError(t, err)

	var got models.Scope
	h := m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = tenant.ScopeFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, got
}

func TestAuthenticateSetsScope(t *testing.T) {
	scope := models.Scope{UserID: uuid.New(), TenantID: uuid.New()}
	token, err := IssueToken(testSecret, scope, time.Hour)
	require.NoError(t, err)

	rec, got := serve(t, "Bearer "+token)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, scope, got)
}

func TestAuthenticateUserOnly(t *testing.T) {
	scope := models.Scope{UserID: uuid.New()}
	token, err := IssueToken(testSecret, scope, time.Hour)
	require.NoError(t, err)

	rec, got := serve(t, "Bearer "+token)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, uuid.Nil, got.TenantID)
}

func TestAuthenticateRejects(t *testing.T) {
	valid := models.Scope{UserID: uuid.New()}
	expired, err := IssueToken(testSecret, valid, -time.Minute)
	require.NoError(t, err)
	wrongKey, err := IssueToken("other", valid, time.Hour)
	require.NoError(t, err)
	badSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "alice"},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  string
		message string
	}{
		{"missing", "", "missing authorization token"},
		{"not bearer", "Basic abc", "missing authorization token"},
		{"expired", "Bearer " + expired, "token expired"},
		{"wrong key", "Bearer " + wrongKey, "invalid token"},
		{"bad subject", "Bearer " + badSub, "invalid user ID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := serve(t, tt.header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.message)
		})
	}
}

func TestNewJWTMiddlewareRequiresSecret(t *testing.T) {
	_, err := NewJWTMiddleware("")
	assert.ErrorIs(t, err, ErrMissingSecret)
}

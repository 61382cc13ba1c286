package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/rodneygagnon/qckstrt/internal/models"
	"github.com/rodneygagnon/qckstrt/internal/tenant"
)

var ErrMissingSecret = errors.New("jwt secret is required")

// Claims carries the caller's scope. Sub is the user id; TenantID is optional.
type Claims struct {
	TenantID string `json:"tenant_id,omitempty"`
	jwt.RegisteredClaims
}

// Scope converts the claims into a document scope.
func (c *Claims) Scope() (models.Scope, error) {
	userID, err := uuid.Parse(c.Subject)
	if err != nil {
		return models.Scope{}, fmt.Errorf("invalid user ID in token: %w", err)
	}
	scope := models.Scope{UserID: userID}
	if c.TenantID != "" {
		tenantID, err := uuid.Parse(c.TenantID)
		if err != nil {
			return models.Scope{}, fmt.Errorf("invalid tenant ID in token: %w", err)
		}
		scope.TenantID = tenantID
	}
	return scope, nil
}

type JWTMiddleware struct {
	secret []byte
}

func NewJWTMiddleware(secret string) (*JWTMiddleware, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &JWTMiddleware{secret: []byte(secret)}, nil
}

// IssueToken signs an HS256 token for scope. Used by the CLI and tests.
func IssueToken(secret string, scope models.Scope, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", ErrMissingSecret
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   scope.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if scope.TenantID != uuid.Nil {
		claims.TenantID = scope.TenantID.String()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func (m *JWTMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := extractBearerToken(r)
		if tokenStr == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization token")
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return m.secret, nil
		})
		if errors.Is(err, jwt.ErrTokenExpired) {
			writeError(w, http.StatusUnauthorized, "token expired")
			return
		}
		if err != nil || !token.Valid {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		scope, err := claims.Scope()
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}

		ctx := tenant.WithScope(r.Context(), scope)
		ctx = context.WithValue(ctx, claimsKey, claims)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type ctxKey string

const claimsKey ctxKey = "claims"

func ClaimsFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey).(*Claims)
	return c
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

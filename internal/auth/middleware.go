package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/carebridge/securitycore/internal/models"
	pkghttp "github.com/carebridge/securitycore/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// AccountContextKey is the key for storing token claims in context
	AccountContextKey contextKey = "account"
	// ClientContextKey is the key for the extracted caller identity
	ClientContextKey contextKey = "client"
)

// AuthMiddleware validates bearer tokens and injects claims into context
func AuthMiddleware(tm *TokenManager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				pkghttp.WriteUnauthorized(w, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				pkghttp.WriteUnauthorized(w, "invalid authorization header format")
				return
			}

			claims, err := tm.ValidateToken(parts[1])
			if err != nil {
				pkghttp.WriteUnauthorized(w, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), AccountContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole enforces role-based access. Must run after AuthMiddleware.
func RequireRole(role string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetAccountFromContext(r)
			if claims == nil {
				pkghttp.WriteUnauthorized(w, "unauthorized")
				return
			}

			if claims.Role != role {
				pkghttp.WriteForbidden(w, "insufficient privileges")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetAccountFromContext returns the authenticated claims, or nil.
func GetAccountFromContext(r *http.Request) *models.TokenClaims {
	claims, ok := r.Context().Value(AccountContextKey).(*models.TokenClaims)
	if !ok {
		return nil
	}
	return claims
}

// SubjectFromContext returns the rate-limit subject for the request:
// the authenticated account id when present, empty otherwise. The
// limiter itself never parses credentials.
func SubjectFromContext(r *http.Request) string {
	if claims := GetAccountFromContext(r); claims != nil {
		return claims.AccountID
	}
	return ""
}

// GetClientContext returns the caller identity placed on the request
// context by the client-context middleware.
func GetClientContext(r *http.Request) pkghttp.ClientContext {
	cc, ok := r.Context().Value(ClientContextKey).(pkghttp.ClientContext)
	if !ok {
		return pkghttp.ClientContext{IPAddress: "unknown"}
	}
	return cc
}

// WithClientContext stores the caller identity on a request context.
func WithClientContext(ctx context.Context, cc pkghttp.ClientContext) context.Context {
	return context.WithValue(ctx, ClientContextKey, cc)
}

package middleware

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/carebridge/securitycore/internal/auth"
	"github.com/carebridge/securitycore/internal/ratelimit"
	pkghttp "github.com/carebridge/securitycore/pkg/http"
)

// RateLimit gates requests through a fixed-window policy. The key is
// derived from the policy purpose, the authenticated subject (set by
// the auth middleware, "anonymous" otherwise), and the client IP.
// Denied requests terminate with 429 and caller-actionable headers.
func RateLimit(store *ratelimit.Store, policy ratelimit.Policy, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cc := auth.GetClientContext(r)
			subject := auth.SubjectFromContext(r)

			result := store.AdmitPolicy(policy, subject, cc.IPAddress)
			if !result.Allowed {
				logger.Warn("rate limit exceeded",
					slog.String("policy", policy.Name),
					slog.String("ip_address", cc.IPAddress),
					slog.String("path", r.URL.Path))
				pkghttp.WriteRateLimited(w, result.Limit, result.Remaining, result.ResetAt)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
			next.ServeHTTP(w, r)
		})
	}
}

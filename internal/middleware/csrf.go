package middleware

import (
	"log/slog"
	"net/http"

	"github.com/carebridge/securitycore/internal/auth"
	pkghttp "github.com/carebridge/securitycore/pkg/http"
)

// CSRFProtection enforces the double-submit-cookie pattern on
// state-changing browser requests. Safe methods pass through and get a
// fresh token (cookie plus X-CSRF-Token response header) so the client
// always holds a current pair. Token-authenticated API routes are
// exempted by routing, not here.
func CSRFProtection(cookieConfig auth.CookieConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth.IsSafeMethod(r.Method) {
				if token, err := auth.GenerateCSRFToken(); err == nil {
					auth.SetCSRFCookie(w, token, cookieConfig)
					w.Header().Set(auth.CSRFHeaderName, token)
				} else {
					logger.Error("failed to issue CSRF token", slog.Any("error", err))
				}
				next.ServeHTTP(w, r)
				return
			}

			headerToken := r.Header.Get(auth.CSRFHeaderName)

			cookieToken := ""
			if cookie, err := r.Cookie(auth.CSRFCookieName); err == nil {
				cookieToken = cookie.Value
			}

			if !auth.ValidateCSRF(headerToken, cookieToken, r.Method) {
				cc := auth.GetClientContext(r)
				logger.Warn("CSRF validation failed",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("ip_address", cc.IPAddress))
				pkghttp.WriteCSRFRejected(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

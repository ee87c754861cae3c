package middleware

import (
	"net/http"

	"github.com/carebridge/securitycore/internal/auth"
	pkghttp "github.com/carebridge/securitycore/pkg/http"
)

// ClientContext derives the caller identity (IP, user agent) once per
// request and stores it on the context for the gates and audit writers
// downstream.
func ClientContext(ipConfig *pkghttp.IPConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cc := pkghttp.ExtractClientContext(r, ipConfig)
			next.ServeHTTP(w, r.WithContext(auth.WithClientContext(r.Context(), cc)))
		})
	}
}

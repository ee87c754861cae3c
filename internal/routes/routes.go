package routes

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/carebridge/securitycore/internal/auth"
	"github.com/carebridge/securitycore/internal/handlers"
	"github.com/carebridge/securitycore/internal/middleware"
	"github.com/carebridge/securitycore/internal/ratelimit"
	pkghttp "github.com/carebridge/securitycore/pkg/http"
)

// Config carries the route-level dependencies that are not handlers.
type Config struct {
	TokenManager *auth.TokenManager
	RateLimits   *ratelimit.Store
	IPConfig     *pkghttp.IPConfig
	CookieConfig auth.CookieConfig
	Env          string
	Logger       *slog.Logger
}

// RegisterRoutes wires the full HTTP surface. Browser-facing routes sit
// behind CSRF protection; the API pipeline authenticates with bearer
// tokens and is exempt. An outer per-IP httprate cap backstops the
// policy limiter against raw floods before any handler work happens.
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	mfaHandler *handlers.MFAHandler,
	securityHandler *handlers.SecurityHandler,
	cfg Config,
) {
	router.Use(chimiddleware.Recoverer)
	router.Use(httprate.LimitByIP(300, 1*time.Minute))
	router.Use(middleware.ClientContext(cfg.IPConfig))
	router.Use(middleware.SecureLogger(cfg.Logger))
	router.Use(middleware.SecurityHeaders(middleware.SecurityHeadersConfig{Env: cfg.Env}))

	// Browser-facing auth routes: CSRF double-submit plus the strict
	// login window.
	router.Group(func(r chi.Router) {
		r.Use(middleware.CSRFProtection(cfg.CookieConfig, cfg.Logger))

		r.With(middleware.RateLimit(cfg.RateLimits, ratelimit.PolicyLogin, cfg.Logger)).
			Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)
	})

	// Authenticated API routes
	router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(cfg.TokenManager))
		r.Use(middleware.RateLimit(cfg.RateLimits, ratelimit.PolicyAPI, cfg.Logger))

		r.Get("/auth/me/security", authHandler.SecurityOverview)
		r.Get("/mfa/status", mfaHandler.Status)

		// MFA mutations share the tighter sensitive-operation window
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(cfg.RateLimits, ratelimit.PolicySensitiveAPI, cfg.Logger))

			r.Post("/mfa/setup", mfaHandler.Setup)
			r.Post("/mfa/verify", mfaHandler.Verify)
			r.Post("/mfa/disable", mfaHandler.Disable)
		})

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole("admin"))
			r.Use(middleware.RateLimit(cfg.RateLimits, ratelimit.PolicySensitiveAPI, cfg.Logger))

			r.Post("/admin/accounts/{id}/unlock", securityHandler.UnlockAccount)
			r.Get("/admin/security-events", securityHandler.ListSecurityEvents)
			r.Get("/admin/security-events/stats", securityHandler.SecurityEventStats)
			r.Patch("/admin/security-events/{id}/resolve", securityHandler.ResolveSecurityEvent)
			r.Post("/admin/monitor/scan", securityHandler.TriggerMonitorScan)
		})
	})
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/carebridge/securitycore/internal/auth"
	"github.com/carebridge/securitycore/internal/models"
	"github.com/carebridge/securitycore/internal/services"
	pkghttp "github.com/carebridge/securitycore/pkg/http"
)

// AuthServiceInterface defines the interface for the authentication pipeline
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password, mfaCode string, cc pkghttp.ClientContext) (*services.LoginResult, error)
	Logout(ctx context.Context, sessionToken string, cc pkghttp.ClientContext) error
	GetSecurityOverview(ctx context.Context, accountID string) (*services.SecurityOverview, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service      AuthServiceInterface
	cookieConfig auth.CookieConfig
	sessionTTL   time.Duration
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, cookieConfig auth.CookieConfig, sessionTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		service:      service,
		cookieConfig: cookieConfig,
		sessionTTL:   sessionTTL,
	}
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	MFACode  string `json:"mfa_code,omitempty" validate:"omitempty,len=6,numeric"`
}

// LoginResponse represents a successful login
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	AccountID   string `json:"account_id"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	MFAEnabled  bool   `json:"mfa_enabled"`
}

// Login handles account login. On success the opaque session token is
// set as an httpOnly cookie and the access token is returned in the
// body; a fresh CSRF token accompanies both.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	cc := auth.GetClientContext(r)

	result, err := h.service.Login(r.Context(), req.Email, req.Password, req.MFACode, cc)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrMFARequired):
			// Distinct code so clients know to prompt for the code; the
			// password has already been proven at this point.
			pkghttp.WriteError(w, http.StatusUnauthorized, "mfa_required", "MFA code required")
		case errors.Is(err, models.ErrPasswordExpired):
			pkghttp.WriteError(w, http.StatusForbidden, "password_expired", "Password has expired and must be changed")
		case errors.Is(err, models.ErrUnauthorized),
			errors.Is(err, models.ErrAccountLocked),
			errors.Is(err, models.ErrAccountDisabled):
			// Generic failure for all credential and account-state issues
			// to prevent account enumeration and lock-state probing
			pkghttp.WriteUnauthorized(w, "Authentication failed")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	auth.SetSessionCookie(w, result.SessionToken, h.sessionTTL, h.cookieConfig)

	if csrfToken, err := auth.GenerateCSRFToken(); err == nil {
		auth.SetCSRFCookie(w, csrfToken, h.cookieConfig)
		w.Header().Set(auth.CSRFHeaderName, csrfToken)
	}

	pkghttp.WriteJSON(w, http.StatusOK, LoginResponse{
		AccessToken: result.AccessToken,
		TokenType:   "Bearer",
		AccountID:   result.Account.ID,
		Name:        result.Account.Name,
		Role:        result.Account.Role,
		MFAEnabled:  result.Account.MFAEnabled,
	})
}

// Logout invalidates the browser session and clears its cookies.
// Idempotent: a missing or stale session cookie still returns 204.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(auth.SessionCookieName)
	if err == nil && cookie.Value != "" {
		cc := auth.GetClientContext(r)
		if err := h.service.Logout(r.Context(), cookie.Value, cc); err != nil {
			pkghttp.WriteInternalError(w, "Internal server error")
			return
		}
	}

	auth.ClearSessionCookie(w, h.cookieConfig)
	w.WriteHeader(http.StatusNoContent)
}

// SecurityOverview returns the authenticated account's own security
// posture, including lock state. This is the only place lock details
// are disclosed.
func (h *AuthHandler) SecurityOverview(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetAccountFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	overview, err := h.service.GetSecurityOverview(r.Context(), claims.AccountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Account not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, overview)
}

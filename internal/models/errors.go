package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Account state errors
	ErrAccountDisabled  = errors.New("account is disabled")
	ErrAccountLocked    = errors.New("account is temporarily locked")
	ErrPasswordExpired  = errors.New("password has expired")

	// Security gate errors
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrInvalidCSRFToken  = errors.New("invalid CSRF token")

	// MFA errors
	ErrMFARequired      = errors.New("MFA code required")
	ErrMFAInvalidCode   = errors.New("invalid MFA code")
	ErrMFANotConfigured = errors.New("MFA is not configured")
	ErrMFAAlreadyEnabled = errors.New("MFA is already enabled")

	// ErrConfiguration signals a missing or invalid process configuration value.
	// It is surfaced to operators, never to API callers.
	ErrConfiguration = errors.New("invalid configuration")
)

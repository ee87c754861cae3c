package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"
)

const (
	// CSRFCookieName is the double-submit cookie carrying the token.
	CSRFCookieName = "csrf_token"
	// CSRFHeaderName is the request header that must mirror the cookie,
	// and the response header carrying freshly issued tokens.
	CSRFHeaderName = "X-CSRF-Token"
	// CSRFTokenTTL is how long an issued token stays valid.
	CSRFTokenTTL = 24 * time.Hour

	csrfTokenBytes = 32 // 256 bits
)

// GenerateCSRFToken creates a cryptographically random token. Tokens are
// not derived from user or session state; possession of matching cookie
// and header values is the whole proof.
func GenerateCSRFToken() (string, error) {
	randomBytes := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate CSRF token: %w", err)
	}
	return hex.EncodeToString(randomBytes), nil
}

// ValidateCSRF implements double-submit validation. Safe methods always
// pass without inspecting tokens. State-changing methods require both
// values present and byte-equal; anything else fails closed.
func ValidateCSRF(headerToken, cookieToken, method string) bool {
	if IsSafeMethod(method) {
		return true
	}

	if headerToken == "" || cookieToken == "" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(headerToken), []byte(cookieToken)) == 1
}

// IsSafeMethod reports whether the HTTP method is read-only.
func IsSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}

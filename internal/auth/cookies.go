package auth

import (
	"net/http"
	"time"
)

// SessionCookieName carries the opaque browser session token.
const SessionCookieName = "session_token"

// CookieConfig holds cookie configuration settings
type CookieConfig struct {
	Domain string // Empty string = current host only
	Secure bool   // HTTPS only
}

// SetSessionCookie sets the opaque session token in an httpOnly cookie.
func SetSessionCookie(w http.ResponseWriter, token string, maxAge time.Duration, config CookieConfig) {
	cookie := &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Domain:   config.Domain,
		Expires:  time.Now().Add(maxAge),
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true, // prevents JavaScript access
		Secure:   config.Secure,
		SameSite: http.SameSiteStrictMode,
	}
	http.SetCookie(w, cookie)
}

// ClearSessionCookie clears the session cookie.
func ClearSessionCookie(w http.ResponseWriter, config CookieConfig) {
	cookie := &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   -1, // Negative MaxAge deletes the cookie
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteStrictMode,
	}
	http.SetCookie(w, cookie)
}

// SetCSRFCookie sets the double-submit CSRF cookie. The cookie is
// httpOnly and SameSite=Strict; callers learn the token value from the
// X-CSRF-Token response header issued alongside it.
func SetCSRFCookie(w http.ResponseWriter, token string, config CookieConfig) {
	cookie := &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		Domain:   config.Domain,
		Expires:  time.Now().Add(CSRFTokenTTL),
		MaxAge:   int(CSRFTokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteStrictMode,
	}
	http.SetCookie(w, cookie)
}

package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/carebridge/securitycore/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func csrfTestHandler(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	mw := CSRFProtection(auth.CookieConfig{}, logger)
	return mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestCSRFProtection_GETAlwaysPassesAndIssuesToken(t *testing.T) {
	handler := csrfTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/patients", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(auth.CSRFHeaderName))

	var csrfCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CSRFCookieName {
			csrfCookie = c
		}
	}
	require.NotNil(t, csrfCookie)
	assert.True(t, csrfCookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, csrfCookie.SameSite)
	assert.Equal(t, rec.Header().Get(auth.CSRFHeaderName), csrfCookie.Value)
}

func TestCSRFProtection_POSTWithMatchingTokensPasses(t *testing.T) {
	handler := csrfTestHandler(t)

	token, err := auth.GenerateCSRFToken()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/visits", nil)
	req.Header.Set(auth.CSRFHeaderName, token)
	req.AddCookie(&http.Cookie{Name: auth.CSRFCookieName, Value: token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCSRFProtection_POSTRejections(t *testing.T) {
	handler := csrfTestHandler(t)

	token, err := auth.GenerateCSRFToken()
	require.NoError(t, err)
	other, err := auth.GenerateCSRFToken()
	require.NoError(t, err)

	cases := []struct {
		name        string
		headerToken string
		cookieToken string
	}{
		{"mismatched tokens", token, other},
		{"missing header", "", token},
		{"missing cookie", token, ""},
		{"missing both", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/visits", nil)
			if tc.headerToken != "" {
				req.Header.Set(auth.CSRFHeaderName, tc.headerToken)
			}
			if tc.cookieToken != "" {
				req.AddCookie(&http.Cookie{Name: auth.CSRFCookieName, Value: tc.cookieToken})
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.True(t, strings.Contains(rec.Body.String(), "Invalid CSRF token"))
		})
	}
}

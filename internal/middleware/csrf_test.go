package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cdwhitlock/warden/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCSRFTestHandler(t *testing.T) (http.Handler, *auth.CSRFGuard, auth.CookieConfig) {
	t.Helper()

	guard := auth.NewCSRFGuard("test-csrf-secret-at-least-32-chars!!", 64)
	cookies := auth.CookieConfig{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	handler := CSRFProtection(guard, cookies, []string{"GET", "HEAD", "OPTIONS"}, logger)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	return handler, guard, cookies
}

func TestCSRFProtection_SafeMethodsBypass(t *testing.T) {
	handler, _, _ := newCSRFTestHandler(t)

	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		t.Run(method, func(t *testing.T) {
			req := httptest.NewRequest(method, "/anything", nil)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func TestCSRFProtection_MatchingPairAccepted(t *testing.T) {
	handler, guard, cookies := newCSRFTestHandler(t)

	cookieValue, tokenValue, err := guard.GeneratePair()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.AddCookie(&http.Cookie{Name: cookies.CSRFCookieName(), Value: cookieValue})
	req.Header.Set(CSRFHeader, tokenValue)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCSRFProtection_Rejections(t *testing.T) {
	handler, guard, cookies := newCSRFTestHandler(t)

	cookieValue, tokenValue, err := guard.GeneratePair()
	require.NoError(t, err)
	otherCookie, _, err := guard.GeneratePair()
	require.NoError(t, err)

	tests := []struct {
		name  string
		setup func(r *http.Request)
	}{
		{
			name:  "no cookie and no header",
			setup: func(r *http.Request) {},
		},
		{
			name: "cookie without header",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: cookies.CSRFCookieName(), Value: cookieValue})
			},
		},
		{
			name: "header without cookie",
			setup: func(r *http.Request) {
				r.Header.Set(CSRFHeader, tokenValue)
			},
		},
		{
			name: "mismatched pair",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: cookies.CSRFCookieName(), Value: otherCookie})
				r.Header.Set(CSRFHeader, tokenValue)
			},
		},
		{
			name: "tampered header token",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: cookies.CSRFCookieName(), Value: cookieValue})
				r.Header.Set(CSRFHeader, tokenValue+"x")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.Contains(t, rec.Body.String(), "csrf")
		})
	}
}

func TestCSRFProtection_CustomIgnoredMethods(t *testing.T) {
	guard := auth.NewCSRFGuard("test-csrf-secret-at-least-32-chars!!", 64)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// Lowercase configuration values still match uppercase methods
	handler := CSRFProtection(guard, auth.CookieConfig{}, []string{"get", "delete"}, logger)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	req := httptest.NewRequest(http.MethodDelete, "/resource", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/resource", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

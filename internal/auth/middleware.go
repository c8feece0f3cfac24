package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cdwhitlock/warden/internal/models"
	pkghttp "github.com/cdwhitlock/warden/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// PrincipalContextKey is the key for storing the verified principal in context
	PrincipalContextKey contextKey = "principal"
)

// Gateway authenticates inbound requests: it extracts the session token,
// verifies it, and injects the principal into the request context. Every
// failure collapses to the same generic 401 so clients cannot probe which
// check rejected them; the specific reason goes to the logs.
func Gateway(tm *TokenManager, cookies CookieConfig, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := ExtractToken(r, cookies)
			if tokenString == "" {
				logAuthFailure(logger, r, models.ErrMissingToken)
				pkghttp.WriteUnauthorized(w, "not authorized")
				return
			}

			principal, err := tm.Verify(r.Context(), tokenString)
			if err != nil {
				logAuthFailure(logger, r, err)
				pkghttp.WriteUnauthorized(w, "not authorized")
				return
			}

			ctx := context.WithValue(r.Context(), PrincipalContextKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPrincipal extracts the verified principal from the request context
func GetPrincipal(r *http.Request) *models.Principal {
	principal, ok := r.Context().Value(PrincipalContextKey).(*models.Principal)
	if !ok {
		return nil
	}
	return principal
}

// ExtractToken prefers the Authorization bearer header and falls back to
// the session cookie.
func ExtractToken(r *http.Request, cookies CookieConfig) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}

	if cookie, err := r.Cookie(cookies.SessionCookieName()); err == nil {
		return cookie.Value
	}
	return ""
}

func logAuthFailure(logger *slog.Logger, r *http.Request, err error) {
	logger.Info("request rejected",
		slog.String("reason", err.Error()),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path))
}

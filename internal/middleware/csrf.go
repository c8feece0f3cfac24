package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/cdwhitlock/warden/internal/auth"
	pkghttp "github.com/cdwhitlock/warden/pkg/http"
)

// CSRFHeader is the request header clients echo the token value in.
const CSRFHeader = "X-CSRF-Token"

// CSRFProtection enforces the double-submit pair on every method outside
// the ignored set. Safe methods (GET, HEAD, OPTIONS by default) bypass
// verification unconditionally; everything else needs the CSRF cookie
// plus a matching header token.
func CSRFProtection(guard *auth.CSRFGuard, cookies auth.CookieConfig, ignoredMethods []string, logger *slog.Logger) func(http.Handler) http.Handler {
	ignored := make(map[string]bool, len(ignoredMethods))
	for _, m := range ignoredMethods {
		ignored[strings.ToUpper(m)] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ignored[r.Method] {
				next.ServeHTTP(w, r)
				return
			}

			var cookieValue string
			if cookie, err := r.Cookie(cookies.CSRFCookieName()); err == nil {
				cookieValue = cookie.Value
			}
			tokenValue := r.Header.Get(CSRFHeader)

			if !guard.VerifyPair(cookieValue, tokenValue) {
				logger.Warn("csrf validation failed",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path))
				pkghttp.WriteForbidden(w, "invalid or missing csrf token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

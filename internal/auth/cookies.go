package auth

import (
	"net/http"
	"time"
)

const appName = "warden"

// CookieConfig holds cookie naming and attribute settings. In production
// cookies get a __Host- prefix, which requires HTTPS, Path=/ and no
// Domain attribute; outside production plain names keep local HTTP
// development working.
type CookieConfig struct {
	Production bool
}

// SessionCookieName returns the name of the session token cookie.
func (c CookieConfig) SessionCookieName() string {
	if c.Production {
		return "__Host-" + appName + ".session"
	}
	return appName + ".session"
}

// CSRFCookieName returns the name of the CSRF cookie.
func (c CookieConfig) CSRFCookieName() string {
	if c.Production {
		return "__Host-" + appName + ".x-csrf-token"
	}
	return appName + ".x-csrf-token"
}

func (c CookieConfig) sameSite() http.SameSite {
	if c.Production {
		return http.SameSiteStrictMode
	}
	return http.SameSiteLaxMode
}

// SetSessionCookie stores the serialized session token in an httpOnly cookie.
func SetSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     config.SessionCookieName(),
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		Secure:   config.Production,
		SameSite: config.sameSite(),
	})
}

// SetCSRFCookie stores the CSRF cookie value. The cookie is httpOnly: the
// client never reads it, it echoes the separately returned token value in
// the X-CSRF-Token header instead.
func SetCSRFCookie(w http.ResponseWriter, cookieValue string, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     config.CSRFCookieName(),
		Value:    cookieValue,
		Path:     "/",
		HttpOnly: true,
		Secure:   config.Production,
		SameSite: config.sameSite(),
	})
}

// ClearSessionCookie deletes the session cookie.
func ClearSessionCookie(w http.ResponseWriter, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     config.SessionCookieName(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   config.Production,
		SameSite: config.sameSite(),
	})
}

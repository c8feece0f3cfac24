package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Token verification failures. Kept distinct for logs and metrics;
	// the response boundary collapses all of them to a generic 401.
	ErrMissingToken    = errors.New("missing token")
	ErrInvalidToken    = errors.New("invalid token")
	ErrExpiredToken    = errors.New("token expired")
	ErrRevokedToken    = errors.New("token revoked")
	ErrSubjectNotFound = errors.New("token subject not found")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrCSRFTokenInvalid   = errors.New("invalid or missing csrf token")
)

// IsAuthError reports whether err belongs to the token verification taxonomy.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrMissingToken) ||
		errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrExpiredToken) ||
		errors.Is(err, ErrRevokedToken) ||
		errors.Is(err, ErrSubjectNotFound)
}

// AccountLockedError is returned for login attempts against a credential
// that is already locked. First-time lock transitions report
// ErrInvalidCredentials instead, so the locked state is only revealed on
// repeat attempts.
type AccountLockedError struct {
	RemainingMinutes int
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked, try again in %d minute(s)", e.RemainingMinutes)
}

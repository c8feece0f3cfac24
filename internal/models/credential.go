package models

import (
	"time"
)

type Credential struct {
	ID                  string
	Email               string
	PasswordHash        string
	FailedLoginAttempts int        // Never negative; reset to 0 on success or unlock
	LockedUntil         *time.Time // Set when the failure threshold is reached
	LastFailedLoginAt   *time.Time
	PasswordChangedAt   *time.Time // Tokens issued before this are revoked via the watermark
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is the signed payload of a session token. The registered
// claims carry everything the core needs: Subject, ID (jti), IssuedAt
// and ExpiresAt.
type TokenClaims struct {
	jwt.RegisteredClaims
}

// IssuedToken describes a token at issuance time. It is never persisted;
// it dies at ExpiresAt or via a revocation record.
type IssuedToken struct {
	SubjectID string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Principal is the authenticated identity attached to a request after
// verification succeeds.
type Principal struct {
	SubjectID string
	TokenID   string
	ExpiresAt time.Time
}

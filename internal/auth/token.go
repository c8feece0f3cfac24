package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cdwhitlock/warden/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// storeTimeout bounds every revocation/credential lookup on the
// verification hot path.
const storeTimeout = 2 * time.Second

// RevocationChecker consults the shared revocation store. A token is
// revoked if its jti is blacklisted or if it was issued before the
// subject's revoked-before watermark.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID, subjectID string, issuedAt time.Time) (bool, error)
}

// SubjectResolver confirms the token subject still exists.
type SubjectResolver interface {
	GetByID(ctx context.Context, id string) (*models.Credential, error)
}

// TokenManager issues and verifies signed session tokens.
type TokenManager struct {
	secret      []byte
	tokenTTL    time.Duration
	revocations RevocationChecker
	subjects    SubjectResolver
	failClosed  bool
	logger      *slog.Logger
	now         func() time.Time
}

func NewTokenManager(secret string, tokenTTL time.Duration, revocations RevocationChecker, subjects SubjectResolver, failClosed bool, logger *slog.Logger) *TokenManager {
	return &TokenManager{
		secret:      []byte(secret),
		tokenTTL:    tokenTTL,
		revocations: revocations,
		subjects:    subjects,
		failClosed:  failClosed,
		logger:      logger,
		now:         time.Now,
	}
}

// WithClock replaces the time source, for deterministic tests.
func (tm *TokenManager) WithClock(now func() time.Time) *TokenManager {
	tm.now = now
	return tm
}

// Issue creates a signed session token for subjectID with a fresh jti.
// It performs no writes; revocation records are only created on logout
// or password change.
func (tm *TokenManager) Issue(subjectID string) (*models.IssuedToken, string, error) {
	now := tm.now()
	issued := &models.IssuedToken{
		SubjectID: subjectID,
		TokenID:   uuid.New().String(),
		IssuedAt:  now,
		ExpiresAt: now.Add(tm.tokenTTL),
	}

	claims := &models.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   issued.SubjectID,
			ID:        issued.TokenID,
			IssuedAt:  jwt.NewNumericDate(issued.IssuedAt),
			NotBefore: jwt.NewNumericDate(issued.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(issued.ExpiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return nil, "", fmt.Errorf("failed to sign token: %w", err)
	}

	return issued, signed, nil
}

// Verify validates a serialized token and returns the principal it
// asserts. Rejection points, in order: signature, expiry, revocation
// state, subject existence. Callers must collapse all failures to one
// generic unauthorized response; the distinct errors are for logging.
func (tm *TokenManager) Verify(ctx context.Context, tokenString string) (*models.Principal, error) {
	claims := &models.TokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return tm.secret, nil
	}, jwt.WithTimeFunc(tm.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, models.ErrExpiredToken
		}
		return nil, models.ErrInvalidToken
	}
	if !token.Valid || claims.Subject == "" || claims.ID == "" || claims.ExpiresAt == nil {
		return nil, models.ErrInvalidToken
	}

	var issuedAt time.Time
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Time
	}

	if err := tm.checkRevocation(ctx, claims.ID, claims.Subject, issuedAt); err != nil {
		return nil, err
	}

	if err := tm.checkSubject(ctx, claims.Subject); err != nil {
		return nil, err
	}

	return &models.Principal{
		SubjectID: claims.Subject,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (tm *TokenManager) checkRevocation(ctx context.Context, tokenID, subjectID string, issuedAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	revoked, err := tm.revocations.IsRevoked(ctx, tokenID, subjectID, issuedAt)
	if err != nil {
		tm.logger.Error("revocation check failed",
			slog.String("subject_id", subjectID),
			slog.Any("error", err))
		if tm.failClosed {
			return models.ErrRevokedToken
		}
		return nil
	}
	if revoked {
		return models.ErrRevokedToken
	}
	return nil
}

func (tm *TokenManager) checkSubject(ctx context.Context, subjectID string) error {
	if tm.subjects == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	_, err := tm.subjects.GetByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrSubjectNotFound
		}
		tm.logger.Error("subject lookup failed",
			slog.String("subject_id", subjectID),
			slog.Any("error", err))
		if tm.failClosed {
			return models.ErrSubjectNotFound
		}
	}
	return nil
}

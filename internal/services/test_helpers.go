package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/cdwhitlock/warden/internal/models"
	pkglogger "github.com/cdwhitlock/warden/pkg/logger"
)

// Shared test doubles for the service layer. Each mock exposes func
// fields so individual tests override only the calls they care about.

type mockLockoutRepo struct {
	getByIDFunc               func(ctx context.Context, id string) (*models.Credential, error)
	recordFailedLoginFunc     func(ctx context.Context, id string, now time.Time, threshold int, lockUntil time.Time) (int, *time.Time, error)
	recordSuccessfulLoginFunc func(ctx context.Context, id string, now time.Time) error
	unlockFunc                func(ctx context.Context, id string, now time.Time) error
}

func (m *mockLockoutRepo) GetByID(ctx context.Context, id string) (*models.Credential, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *mockLockoutRepo) RecordFailedLogin(ctx context.Context, id string, now time.Time, threshold int, lockUntil time.Time) (int, *time.Time, error) {
	if m.recordFailedLoginFunc != nil {
		return m.recordFailedLoginFunc(ctx, id, now, threshold, lockUntil)
	}
	return 1, nil, nil
}

func (m *mockLockoutRepo) RecordSuccessfulLogin(ctx context.Context, id string, now time.Time) error {
	if m.recordSuccessfulLoginFunc != nil {
		return m.recordSuccessfulLoginFunc(ctx, id, now)
	}
	return nil
}

func (m *mockLockoutRepo) Unlock(ctx context.Context, id string, now time.Time) error {
	if m.unlockFunc != nil {
		return m.unlockFunc(ctx, id, now)
	}
	return nil
}

type mockCredentialRepo struct {
	getByIDFunc        func(ctx context.Context, id string) (*models.Credential, error)
	getByEmailFunc     func(ctx context.Context, email string) (*models.Credential, error)
	updatePasswordFunc func(ctx context.Context, id, passwordHash string, changedAt time.Time) error
}

func (m *mockCredentialRepo) GetByID(ctx context.Context, id string) (*models.Credential, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *mockCredentialRepo) GetByEmail(ctx context.Context, email string) (*models.Credential, error) {
	if m.getByEmailFunc != nil {
		return m.getByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *mockCredentialRepo) UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error {
	if m.updatePasswordFunc != nil {
		return m.updatePasswordFunc(ctx, id, passwordHash, changedAt)
	}
	return nil
}

type mockTokenRevoker struct {
	revokeTokenFunc         func(ctx context.Context, tokenID, subjectID, reason string, expiresAt time.Time) error
	revokeAllForSubjectFunc func(ctx context.Context, subjectID, reason string, now time.Time) error
}

func (m *mockTokenRevoker) RevokeToken(ctx context.Context, tokenID, subjectID, reason string, expiresAt time.Time) error {
	if m.revokeTokenFunc != nil {
		return m.revokeTokenFunc(ctx, tokenID, subjectID, reason, expiresAt)
	}
	return nil
}

func (m *mockTokenRevoker) RevokeAllForSubject(ctx context.Context, subjectID, reason string, now time.Time) error {
	if m.revokeAllForSubjectFunc != nil {
		return m.revokeAllForSubjectFunc(ctx, subjectID, reason, now)
	}
	return nil
}

type mockRevocationChecker struct {
	isRevokedFunc func(ctx context.Context, tokenID, subjectID string, issuedAt time.Time) (bool, error)
}

func (m *mockRevocationChecker) IsRevoked(ctx context.Context, tokenID, subjectID string, issuedAt time.Time) (bool, error) {
	if m.isRevokedFunc != nil {
		return m.isRevokedFunc(ctx, tokenID, subjectID, issuedAt)
	}
	return false, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAuditLogger() *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(testLogger())
}

package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/cdwhitlock/warden/internal/auth"
	"github.com/cdwhitlock/warden/internal/models"
	pkgauth "github.com/cdwhitlock/warden/pkg/auth"
	pkglogger "github.com/cdwhitlock/warden/pkg/logger"
)

// CredentialRepository defines the credential storage operations the
// login flow needs.
type CredentialRepository interface {
	GetByID(ctx context.Context, id string) (*models.Credential, error)
	GetByEmail(ctx context.Context, email string) (*models.Credential, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error
}

// TokenRevoker defines the write side of the revocation store.
type TokenRevoker interface {
	RevokeToken(ctx context.Context, tokenID, subjectID, reason string, expiresAt time.Time) error
	RevokeAllForSubject(ctx context.Context, subjectID, reason string, now time.Time) error
}

// AuthService composes the lockout gate, credential check and token
// issuance into the login flow, and owns logout and password changes.
type AuthService struct {
	creds       CredentialRepository
	lockouts    *LockoutService
	revocations TokenRevoker
	tm          *auth.TokenManager
	policy      *pkgauth.PasswordPolicy
	timing      *auth.TimingDelay
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         func() time.Time
}

func NewAuthService(
	creds CredentialRepository,
	lockouts *LockoutService,
	revocations TokenRevoker,
	tm *auth.TokenManager,
	policy *pkgauth.PasswordPolicy,
	timing *auth.TimingDelay,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *AuthService {
	return &AuthService{
		creds:       creds,
		lockouts:    lockouts,
		revocations: revocations,
		tm:          tm,
		policy:      policy,
		timing:      timing,
		logger:      logger,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// WithClock replaces the time source, for deterministic tests.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// LoginResult carries the issued token back to the transport layer.
type LoginResult struct {
	Token     string
	SubjectID string
	ExpiresAt time.Time
}

// Login authenticates a credential and issues a session token.
//
// Already-locked credentials are rejected before the password comparison
// runs, so locked accounts cost no hashing work. An attempt that crosses
// the lockout threshold still reports invalid credentials; only repeat
// attempts against a locked credential get the distinct locked error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	start := s.now()

	if email = strings.ToLower(strings.TrimSpace(email)); email == "" {
		s.logger.Warn("login attempt with empty email")
		return nil, models.ErrInvalidCredentials
	}

	cred, err := s.creds.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("login failed: unknown credential",
				slog.String("email", pkglogger.SanitizedEmail(email)))
			s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
				EventType:     "login_failed",
				FailureReason: "invalid_credentials",
				Success:       false,
			})
			s.timing.WaitFrom(start, false)
			return nil, models.ErrInvalidCredentials
		}
		s.logger.Error("failed to get credential by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if status := s.lockouts.CheckLockout(cred, s.now()); status.IsLocked {
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			SubjectID:     cred.ID,
			FailureReason: "account_locked",
			Success:       false,
		})
		s.timing.WaitFrom(start, false)
		return nil, &models.AccountLockedError{RemainingMinutes: status.RemainingMinutes}
	}

	if err := pkgauth.ComparePassword(cred.PasswordHash, password); err != nil {
		if err := s.lockouts.HandleFailedLogin(ctx, cred.ID); err != nil {
			// The rejection stands even if the counter update failed.
			s.logger.Error("lockout update failed", slog.String("credential_id", cred.ID), slog.Any("error", err))
		}
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			SubjectID:     cred.ID,
			FailureReason: "invalid_credentials",
			Success:       false,
		})
		s.timing.WaitFrom(start, false)
		return nil, models.ErrInvalidCredentials
	}

	if err := s.lockouts.HandleSuccessfulLogin(ctx, cred.ID); err != nil {
		return nil, models.ErrInternalServer
	}

	issued, signed, err := s.tm.Issue(cred.ID)
	if err != nil {
		s.logger.Error("failed to issue token", slog.String("credential_id", cred.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("login succeeded", slog.String("credential_id", cred.ID))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		SubjectID: cred.ID,
		Success:   true,
	})

	return &LoginResult{
		Token:     signed,
		SubjectID: issued.SubjectID,
		ExpiresAt: issued.ExpiresAt,
	}, nil
}

// Logout revokes the presented token individually.
func (s *AuthService) Logout(ctx context.Context, tokenString string) error {
	principal, err := s.tm.Verify(ctx, tokenString)
	if err != nil {
		return err
	}

	if err := s.revocations.RevokeToken(ctx, principal.TokenID, principal.SubjectID, "logout", principal.ExpiresAt); err != nil {
		s.logger.Error("failed to revoke token",
			slog.String("subject_id", principal.SubjectID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.auditLogger.LogAccountAction("logout", principal.SubjectID, nil)
	return nil
}

// LogoutAll advances the subject's revocation watermark, invalidating
// every token issued before now.
func (s *AuthService) LogoutAll(ctx context.Context, subjectID string) error {
	if err := s.revocations.RevokeAllForSubject(ctx, subjectID, "logout_all", s.now()); err != nil {
		s.logger.Error("failed to revoke all tokens",
			slog.String("subject_id", subjectID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.auditLogger.LogAccountAction("logout_all", subjectID, nil)
	return nil
}

// ChangePassword verifies the current password, enforces the password
// policy on the new one, and bulk-revokes all previously issued tokens
// via the watermark so the old session dies on its next request.
func (s *AuthService) ChangePassword(ctx context.Context, subjectID, currentPassword, newPassword string) error {
	cred, err := s.creds.GetByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrInvalidCredentials
		}
		return models.ErrInternalServer
	}

	if err := pkgauth.ComparePassword(cred.PasswordHash, currentPassword); err != nil {
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "password_change_failed",
			SubjectID:     subjectID,
			FailureReason: "invalid_credentials",
			Success:       false,
		})
		return models.ErrInvalidCredentials
	}

	if err := s.policy.Validate(newPassword); err != nil {
		return err
	}

	hash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	now := s.now()
	if err := s.creds.UpdatePassword(ctx, subjectID, hash, now); err != nil {
		s.logger.Error("failed to update password", slog.String("subject_id", subjectID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.revocations.RevokeAllForSubject(ctx, subjectID, "password_change", now); err != nil {
		s.logger.Error("failed to revoke tokens after password change",
			slog.String("subject_id", subjectID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.auditLogger.LogAccountAction("password_changed", subjectID, nil)
	return nil
}

// LockoutStatus reports the derived lockout state for administrators.
func (s *AuthService) LockoutStatus(ctx context.Context, credentialID string) (LockoutStatus, error) {
	return s.lockouts.Status(ctx, credentialID)
}

// Unlock resets a credential's lockout state.
func (s *AuthService) Unlock(ctx context.Context, credentialID string) error {
	return s.lockouts.Unlock(ctx, credentialID)
}

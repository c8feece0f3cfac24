package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/cdwhitlock/warden/internal/models"
	pkglogger "github.com/cdwhitlock/warden/pkg/logger"
)

// LockoutRepository defines the storage operations the lockout state
// machine needs. Mutations must be atomic per credential.
type LockoutRepository interface {
	GetByID(ctx context.Context, id string) (*models.Credential, error)
	RecordFailedLogin(ctx context.Context, id string, now time.Time, threshold int, lockUntil time.Time) (int, *time.Time, error)
	RecordSuccessfulLogin(ctx context.Context, id string, now time.Time) error
	Unlock(ctx context.Context, id string, now time.Time) error
}

// LockoutConfig holds the lockout state machine parameters.
type LockoutConfig struct {
	Threshold int           // Failed attempts before the credential locks
	Duration  time.Duration // How long a lock lasts
}

// LockoutStatus is the derived state of a credential as of "now".
type LockoutStatus struct {
	IsLocked         bool
	RemainingMinutes int
}

// LockoutService tracks per-credential failed-login state. A credential
// is Active while failed_login_attempts < threshold and Locked once
// locked_until is set and in the future. The Locked -> Active transition
// is lazy: it happens at read time when locked_until passes, so no
// background sweeper exists.
type LockoutService struct {
	repo        LockoutRepository
	config      LockoutConfig
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         func() time.Time
}

func NewLockoutService(repo LockoutRepository, config LockoutConfig, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *LockoutService {
	return &LockoutService{
		repo:        repo,
		config:      config,
		logger:      logger,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// WithClock replaces the time source, for deterministic tests.
func (s *LockoutService) WithClock(now func() time.Time) *LockoutService {
	s.now = now
	return s
}

// CheckLockout is a pure read over the credential's lockout fields. It is
// used both to gate logins before any password hashing happens and to
// report status to administrators.
func (s *LockoutService) CheckLockout(cred *models.Credential, now time.Time) LockoutStatus {
	if cred.LockedUntil == nil || !now.Before(*cred.LockedUntil) {
		return LockoutStatus{}
	}

	remaining := cred.LockedUntil.Sub(now)
	minutes := int((remaining + time.Minute - 1) / time.Minute)
	return LockoutStatus{IsLocked: true, RemainingMinutes: minutes}
}

// HandleFailedLogin counts a failed attempt. The storage layer applies
// the increment and any threshold transition in one atomic statement, so
// concurrent failures against the same credential all count.
func (s *LockoutService) HandleFailedLogin(ctx context.Context, credentialID string) error {
	now := s.now()
	attempts, lockedUntil, err := s.repo.RecordFailedLogin(ctx, credentialID, now, s.config.Threshold, now.Add(s.config.Duration))
	if err != nil {
		s.logger.Error("failed to record login failure",
			slog.String("credential_id", credentialID),
			slog.Any("error", err))
		return err
	}

	if attempts == s.config.Threshold && lockedUntil != nil {
		s.logger.Warn("credential locked",
			slog.String("credential_id", credentialID),
			slog.Int("failed_attempts", attempts),
			slog.Time("locked_until", *lockedUntil))
		s.auditLogger.LogAccountAction("account_locked", credentialID, map[string]string{
			"locked_until": lockedUntil.UTC().Format(time.RFC3339),
		})
	}

	return nil
}

// HandleSuccessfulLogin resets the failure counter and clears any lock.
func (s *LockoutService) HandleSuccessfulLogin(ctx context.Context, credentialID string) error {
	if err := s.repo.RecordSuccessfulLogin(ctx, credentialID, s.now()); err != nil {
		s.logger.Error("failed to reset login failures",
			slog.String("credential_id", credentialID),
			slog.Any("error", err))
		return err
	}
	return nil
}

// Unlock is the administrative reset of a locked credential.
func (s *LockoutService) Unlock(ctx context.Context, credentialID string) error {
	if err := s.repo.Unlock(ctx, credentialID, s.now()); err != nil {
		return err
	}

	s.auditLogger.LogAccountAction("account_unlocked", credentialID, nil)
	return nil
}

// Status fetches the credential and computes its lockout state.
func (s *LockoutService) Status(ctx context.Context, credentialID string) (LockoutStatus, error) {
	cred, err := s.repo.GetByID(ctx, credentialID)
	if err != nil {
		return LockoutStatus{}, err
	}
	return s.CheckLockout(cred, s.now()), nil
}

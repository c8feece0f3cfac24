package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/cdwhitlock/warden/internal/repositories"
)

// CleanupManager periodically removes revocation records that can no
// longer invalidate a live token. Lockout expiry needs no sweeper; it is
// checked lazily at read time.
type CleanupManager struct {
	revocations *repositories.RevocationRepository
	tokenTTL    time.Duration
	logger      *slog.Logger
	interval    time.Duration
	stopCh      chan struct{}
}

func NewCleanupManager(revocations *repositories.RevocationRepository, tokenTTL time.Duration, logger *slog.Logger, interval time.Duration) *CleanupManager {
	return &CleanupManager{
		revocations: revocations,
		tokenTTL:    tokenTTL,
		logger:      logger,
		interval:    interval,
		stopCh:      make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rowsDeleted, err := cm.revocations.CleanupExpired(cleanupCtx, time.Now(), cm.tokenTTL)
	if err != nil {
		cm.logger.Error("failed to clean up revocation records", slog.Any("error", err))
		return
	}

	if rowsDeleted > 0 {
		cm.logger.Info("revocation cleanup completed", slog.Int64("rows_deleted", rowsDeleted))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}

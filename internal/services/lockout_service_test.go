package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cdwhitlock/warden/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLockoutService(repo LockoutRepository) *LockoutService {
	return NewLockoutService(repo, LockoutConfig{
		Threshold: 5,
		Duration:  15 * time.Minute,
	}, testLogger(), testAuditLogger())
}

func TestLockoutService_CheckLockout(t *testing.T) {
	svc := newTestLockoutService(&mockLockoutRepo{})
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		lockedUntil *time.Time
		wantLocked  bool
		wantMinutes int
	}{
		{
			name:        "never locked",
			lockedUntil: nil,
			wantLocked:  false,
		},
		{
			name:        "lock expired",
			lockedUntil: timePtr(now.Add(-time.Second)),
			wantLocked:  false,
		},
		{
			name:        "lock expires exactly now",
			lockedUntil: timePtr(now),
			wantLocked:  false,
		},
		{
			name:        "locked with partial minute rounds up",
			lockedUntil: timePtr(now.Add(30 * time.Second)),
			wantLocked:  true,
			wantMinutes: 1,
		},
		{
			name:        "locked for full duration",
			lockedUntil: timePtr(now.Add(15 * time.Minute)),
			wantLocked:  true,
			wantMinutes: 15,
		},
		{
			name:        "locked fourteen and a half minutes",
			lockedUntil: timePtr(now.Add(14*time.Minute + 30*time.Second)),
			wantLocked:  true,
			wantMinutes: 15,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred := &models.Credential{ID: "cred-1", LockedUntil: tt.lockedUntil}
			status := svc.CheckLockout(cred, now)
			assert.Equal(t, tt.wantLocked, status.IsLocked)
			assert.Equal(t, tt.wantMinutes, status.RemainingMinutes)
		})
	}
}

func TestLockoutService_HandleFailedLogin(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("passes threshold and lock expiry to storage", func(t *testing.T) {
		var gotThreshold int
		var gotLockUntil time.Time
		repo := &mockLockoutRepo{
			recordFailedLoginFunc: func(ctx context.Context, id string, n time.Time, threshold int, lockUntil time.Time) (int, *time.Time, error) {
				gotThreshold = threshold
				gotLockUntil = lockUntil
				return 1, nil, nil
			},
		}
		svc := newTestLockoutService(repo).WithClock(func() time.Time { return now })

		require.NoError(t, svc.HandleFailedLogin(context.Background(), "cred-1"))
		assert.Equal(t, 5, gotThreshold)
		assert.Equal(t, now.Add(15*time.Minute), gotLockUntil)
	})

	t.Run("propagates storage errors", func(t *testing.T) {
		repo := &mockLockoutRepo{
			recordFailedLoginFunc: func(ctx context.Context, id string, n time.Time, threshold int, lockUntil time.Time) (int, *time.Time, error) {
				return 0, nil, errors.New("db down")
			},
		}
		svc := newTestLockoutService(repo)

		assert.Error(t, svc.HandleFailedLogin(context.Background(), "cred-1"))
	})

	t.Run("threshold crossing succeeds", func(t *testing.T) {
		lockUntil := now.Add(15 * time.Minute)
		repo := &mockLockoutRepo{
			recordFailedLoginFunc: func(ctx context.Context, id string, n time.Time, threshold int, lu time.Time) (int, *time.Time, error) {
				return 5, &lockUntil, nil
			},
		}
		svc := newTestLockoutService(repo).WithClock(func() time.Time { return now })

		assert.NoError(t, svc.HandleFailedLogin(context.Background(), "cred-1"))
	})
}

func TestLockoutService_HandleSuccessfulLogin(t *testing.T) {
	t.Run("resets via storage", func(t *testing.T) {
		var resetID string
		repo := &mockLockoutRepo{
			recordSuccessfulLoginFunc: func(ctx context.Context, id string, now time.Time) error {
				resetID = id
				return nil
			},
		}
		svc := newTestLockoutService(repo)

		require.NoError(t, svc.HandleSuccessfulLogin(context.Background(), "cred-1"))
		assert.Equal(t, "cred-1", resetID)
	})

	t.Run("propagates storage errors", func(t *testing.T) {
		repo := &mockLockoutRepo{
			recordSuccessfulLoginFunc: func(ctx context.Context, id string, now time.Time) error {
				return errors.New("db down")
			},
		}
		svc := newTestLockoutService(repo)

		assert.Error(t, svc.HandleSuccessfulLogin(context.Background(), "cred-1"))
	})
}

func TestLockoutService_Unlock(t *testing.T) {
	var unlockedID string
	repo := &mockLockoutRepo{
		unlockFunc: func(ctx context.Context, id string, now time.Time) error {
			unlockedID = id
			return nil
		},
	}
	svc := newTestLockoutService(repo)

	require.NoError(t, svc.Unlock(context.Background(), "cred-1"))
	assert.Equal(t, "cred-1", unlockedID)
}

func TestLockoutService_Status(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("locked credential", func(t *testing.T) {
		repo := &mockLockoutRepo{
			getByIDFunc: func(ctx context.Context, id string) (*models.Credential, error) {
				return &models.Credential{
					ID:          id,
					LockedUntil: timePtr(now.Add(10 * time.Minute)),
				}, nil
			},
		}
		svc := newTestLockoutService(repo).WithClock(func() time.Time { return now })

		status, err := svc.Status(context.Background(), "cred-1")
		require.NoError(t, err)
		assert.True(t, status.IsLocked)
		assert.Equal(t, 10, status.RemainingMinutes)
	})

	t.Run("unknown credential", func(t *testing.T) {
		svc := newTestLockoutService(&mockLockoutRepo{})

		_, err := svc.Status(context.Background(), "missing")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func timePtr(t time.Time) *time.Time {
	return &t
}

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRevocationTest(t *testing.T) (*TestDB, context.Context) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db, err := SetupTestDatabase(ctx)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Teardown(ctx)
	})

	return db, ctx
}

func TestRevocation_BlacklistSingleToken(t *testing.T) {
	db, ctx := setupRevocationTest(t)
	_, revocationRepo := InitializeRepositories(db.DB)

	subjectID := uuid.New().String()
	tokenID := uuid.New().String()
	issuedAt := time.Now()
	expiresAt := issuedAt.Add(time.Hour)

	revoked, err := revocationRepo.IsRevoked(ctx, tokenID, subjectID, issuedAt)
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, revocationRepo.RevokeToken(ctx, tokenID, subjectID, "logout", expiresAt))

	revoked, err = revocationRepo.IsRevoked(ctx, tokenID, subjectID, issuedAt)
	require.NoError(t, err)
	assert.True(t, revoked)

	// Revoking again is a no-op, not an error
	require.NoError(t, revocationRepo.RevokeToken(ctx, tokenID, subjectID, "logout", expiresAt))

	// Other tokens of the same subject stay valid
	otherRevoked, err := revocationRepo.IsRevoked(ctx, uuid.New().String(), subjectID, issuedAt)
	require.NoError(t, err)
	assert.False(t, otherRevoked)
}

func TestRevocation_WatermarkInvalidatesOlderTokens(t *testing.T) {
	db, ctx := setupRevocationTest(t)
	_, revocationRepo := InitializeRepositories(db.DB)

	subjectID := uuid.New().String()
	watermark := time.Now()

	require.NoError(t, revocationRepo.RevokeAllForSubject(ctx, subjectID, "password_change", watermark))

	// Token issued before the watermark is revoked
	revoked, err := revocationRepo.IsRevoked(ctx, uuid.New().String(), subjectID, watermark.Add(-time.Minute))
	require.NoError(t, err)
	assert.True(t, revoked)

	// Token issued after the watermark stays valid
	revoked, err = revocationRepo.IsRevoked(ctx, uuid.New().String(), subjectID, watermark.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, revoked)

	// Other subjects are unaffected
	revoked, err = revocationRepo.IsRevoked(ctx, uuid.New().String(), uuid.New().String(), watermark.Add(-time.Minute))
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRevocation_WatermarkIsMonotonic(t *testing.T) {
	db, ctx := setupRevocationTest(t)
	_, revocationRepo := InitializeRepositories(db.DB)

	subjectID := uuid.New().String()
	later := time.Now()
	earlier := later.Add(-time.Hour)

	require.NoError(t, revocationRepo.RevokeAllForSubject(ctx, subjectID, "logout_all", later))

	// An out-of-order update with an earlier timestamp must not move the
	// watermark backwards
	require.NoError(t, revocationRepo.RevokeAllForSubject(ctx, subjectID, "logout_all", earlier))

	revoked, err := revocationRepo.IsRevoked(ctx, uuid.New().String(), subjectID, later.Add(-time.Minute))
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestRevocation_CleanupExpired(t *testing.T) {
	db, ctx := setupRevocationTest(t)
	_, revocationRepo := InitializeRepositories(db.DB)

	subjectID := uuid.New().String()
	now := time.Now()
	tokenTTL := time.Hour

	expiredToken := uuid.New().String()
	liveToken := uuid.New().String()
	require.NoError(t, revocationRepo.RevokeToken(ctx, expiredToken, subjectID, "logout", now.Add(-time.Minute)))
	require.NoError(t, revocationRepo.RevokeToken(ctx, liveToken, subjectID, "logout", now.Add(time.Hour)))

	staleSubject := uuid.New().String()
	require.NoError(t, revocationRepo.RevokeAllForSubject(ctx, staleSubject, "logout_all", now.Add(-2*tokenTTL)))

	deleted, err := revocationRepo.CleanupExpired(ctx, now, tokenTTL)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	// The live blacklist entry still revokes its token
	revoked, err := revocationRepo.IsRevoked(ctx, liveToken, subjectID, now)
	require.NoError(t, err)
	assert.True(t, revoked)
}

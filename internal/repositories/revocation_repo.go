package repositories

import (
	"context"
	"time"

	"github.com/cdwhitlock/warden/internal/database"
	"github.com/jackc/pgx/v5"
)

// RevocationRepository is the shared revocation store: an individual jti
// blacklist plus a per-subject revoked-before watermark for bulk
// invalidation. Backed by Postgres so every verifying process sees the
// same state; reads sit on the hot path of each authenticated request.
type RevocationRepository struct {
	db *database.DB
}

func NewRevocationRepository(db *database.DB) *RevocationRepository {
	return &RevocationRepository{db: db}
}

// RevokeToken blacklists a single token id. The row expires with the
// token itself, so storage growth stays bounded by the token TTL.
func (r *RevocationRepository) RevokeToken(ctx context.Context, tokenID, subjectID, reason string, expiresAt time.Time) error {
	query := `
		INSERT INTO revoked_tokens (jti, subject_id, reason, revoked_at, expires_at)
		VALUES ($1, $2, $3, NOW(), $4)
		ON CONFLICT (jti) DO NOTHING
	`

	_, err := r.db.Pool.Exec(ctx, query, tokenID, subjectID, reason, expiresAt)
	return database.MapPostgresError(err)
}

// RevokeAllForSubject sets the subject's revoked-before watermark to now.
// GREATEST keeps the watermark monotonic: a concurrent or later call can
// never move it backwards.
func (r *RevocationRepository) RevokeAllForSubject(ctx context.Context, subjectID, reason string, now time.Time) error {
	query := `
		INSERT INTO revocation_watermarks (subject_id, revoked_before, reason, updated_at)
		VALUES ($1, $2, $3, $2)
		ON CONFLICT (subject_id) DO UPDATE
		SET revoked_before = GREATEST(revocation_watermarks.revoked_before, EXCLUDED.revoked_before),
		    reason = EXCLUDED.reason,
		    updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.Pool.Exec(ctx, query, subjectID, now, reason)
	return database.MapPostgresError(err)
}

// IsRevoked reports whether the token is individually blacklisted or was
// issued before the subject's watermark. One round trip covers both.
func (r *RevocationRepository) IsRevoked(ctx context.Context, tokenID, subjectID string, issuedAt time.Time) (bool, error) {
	query := `
		SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE jti = $1)
		    OR EXISTS(SELECT 1 FROM revocation_watermarks WHERE subject_id = $2 AND revoked_before > $3)
	`

	var revoked bool
	err := r.db.Pool.QueryRow(ctx, query, tokenID, subjectID, issuedAt).Scan(&revoked)
	if err != nil {
		return false, database.MapPostgresError(err)
	}

	return revoked, nil
}

// CleanupExpired removes revocation records that can no longer invalidate
// a live token: blacklist rows past their token's expiry, and watermarks
// older than the longest token lifetime. Both deletes commit together.
func (r *RevocationRepository) CleanupExpired(ctx context.Context, now time.Time, tokenTTL time.Duration) (int64, error) {
	var total int64

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `DELETE FROM revoked_tokens WHERE expires_at < $1`, now)
		if err != nil {
			return database.MapPostgresError(err)
		}
		total += result.RowsAffected()

		result, err = tx.Exec(ctx, `DELETE FROM revocation_watermarks WHERE revoked_before < $1`, now.Add(-tokenTTL))
		if err != nil {
			return database.MapPostgresError(err)
		}
		total += result.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}

	return total, nil
}

package repositories

import (
	"context"
	"time"

	"github.com/cdwhitlock/warden/internal/database"
	"github.com/cdwhitlock/warden/internal/models"
	"github.com/google/uuid"
)

// CredentialRepository handles database operations for credentials,
// including the lockout counters that must be updated atomically.
type CredentialRepository struct {
	db *database.DB
}

func NewCredentialRepository(db *database.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

const credentialColumns = `
	id, email, password_hash, failed_login_attempts, locked_until,
	last_failed_login_at, password_changed_at, created_at, updated_at`

func (r *CredentialRepository) scanCredential(row interface {
	Scan(dest ...any) error
}) (*models.Credential, error) {
	var cred models.Credential
	err := row.Scan(
		&cred.ID,
		&cred.Email,
		&cred.PasswordHash,
		&cred.FailedLoginAttempts,
		&cred.LockedUntil,
		&cred.LastFailedLoginAt,
		&cred.PasswordChangedAt,
		&cred.CreatedAt,
		&cred.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &cred, nil
}

func (r *CredentialRepository) GetByID(ctx context.Context, id string) (*models.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE id = $1`
	return r.scanCredential(r.db.Pool.QueryRow(ctx, query, id))
}

func (r *CredentialRepository) GetByEmail(ctx context.Context, email string) (*models.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE email = $1`
	return r.scanCredential(r.db.Pool.QueryRow(ctx, query, email))
}

func (r *CredentialRepository) Create(ctx context.Context, cred *models.Credential) (*models.Credential, error) {
	query := `
		INSERT INTO credentials (id, email, password_hash, password_changed_at)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + credentialColumns

	id := uuid.New().String()
	return r.scanCredential(r.db.Pool.QueryRow(ctx, query, id, cred.Email, cred.PasswordHash, cred.PasswordChangedAt))
}

// RecordFailedLogin increments the failure counter and, if the
// post-increment count reaches threshold, sets locked_until in the same
// statement. The single UPDATE makes concurrent failed attempts
// linearizable per credential: none is lost and the threshold transition
// happens exactly once.
func (r *CredentialRepository) RecordFailedLogin(ctx context.Context, id string, now time.Time, threshold int, lockUntil time.Time) (int, *time.Time, error) {
	query := `
		UPDATE credentials
		SET failed_login_attempts = failed_login_attempts + 1,
		    last_failed_login_at = $2,
		    locked_until = CASE
		        WHEN failed_login_attempts + 1 >= $3 THEN $4
		        ELSE locked_until
		    END,
		    updated_at = $2
		WHERE id = $1
		RETURNING failed_login_attempts, locked_until
	`

	var attempts int
	var lockedUntil *time.Time
	err := r.db.Pool.QueryRow(ctx, query, id, now, threshold, lockUntil).Scan(&attempts, &lockedUntil)
	if err != nil {
		return 0, nil, database.MapPostgresError(err)
	}

	return attempts, lockedUntil, nil
}

// RecordSuccessfulLogin unconditionally resets the failure counter and
// clears any lock.
func (r *CredentialRepository) RecordSuccessfulLogin(ctx context.Context, id string, now time.Time) error {
	query := `
		UPDATE credentials
		SET failed_login_attempts = 0,
		    locked_until = NULL,
		    updated_at = $2
		WHERE id = $1
	`

	tag, err := r.db.Pool.Exec(ctx, query, id, now)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Unlock is the administrative reset; same effect as a successful login.
func (r *CredentialRepository) Unlock(ctx context.Context, id string, now time.Time) error {
	return r.RecordSuccessfulLogin(ctx, id, now)
}

func (r *CredentialRepository) UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error {
	query := `
		UPDATE credentials
		SET password_hash = $2,
		    password_changed_at = $3,
		    updated_at = $3
		WHERE id = $1
	`

	tag, err := r.db.Pool.Exec(ctx, query, id, passwordHash, changedAt)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

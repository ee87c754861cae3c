package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/carebridge/securitycore/internal/database"
	"github.com/carebridge/securitycore/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const accountColumns = `
	id, email, name, password_hash, role, status,
	mfa_enabled, mfa_secret_encrypted, mfa_secret_nonce, mfa_enrolled_at, mfa_last_used_step,
	failed_login_attempts, locked_until, password_changed_at, password_expires_at,
	created_at, updated_at`

// AccountRepository handles account data access
type AccountRepository struct {
	db *database.DB
}

// NewAccountRepository creates a new AccountRepository
func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func scanAccountRow(row rowScanner) (*models.Account, error) {
	var a models.Account

	err := row.Scan(
		&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.Role, &a.Status,
		&a.MFAEnabled, &a.MFASecretEncrypted, &a.MFASecretNonce, &a.MFAEnrolledAt, &a.MFALastUsedStep,
		&a.FailedLoginAttempts, &a.LockedUntil, &a.PasswordChangedAt, &a.PasswordExpiresAt,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &a, nil
}

func scanAccountRows(rows pgx.Rows) ([]*models.Account, error) {
	defer rows.Close()

	accounts := make([]*models.Account, 0)

	for rows.Next() {
		account, err := scanAccountRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating account rows: %w", err)
	}

	return accounts, nil
}

// Create inserts a new account
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	account.ID = uuid.New().String()

	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now

	if account.Role == "" {
		account.Role = "staff"
	}

	if account.Status == "" {
		account.Status = "active"
	}

	query := `
		INSERT INTO accounts (id, email, name, password_hash, role, status, password_changed_at, password_expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + accountColumns

	return scanAccountRow(r.db.Pool.QueryRow(ctx, query,
		account.ID, account.Email, account.Name, account.PasswordHash,
		account.Role, account.Status, account.PasswordChangedAt, account.PasswordExpiresAt,
		account.CreatedAt, account.UpdatedAt,
	))
}

// GetByID retrieves an account by id
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccountRow(r.db.Pool.QueryRow(ctx, query, id))
}

// GetByEmail retrieves an account by email
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return scanAccountRow(r.db.Pool.QueryRow(ctx, query, email))
}

// IncrementFailedAttempts bumps the failed login counter atomically and
// returns the new count. The counter never decreases except through
// ResetFailedAttempts.
func (r *AccountRepository) IncrementFailedAttempts(ctx context.Context, id string) (int, error) {
	query := `
		UPDATE accounts
		SET failed_login_attempts = failed_login_attempts + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING failed_login_attempts
	`

	var count int
	if err := r.db.Pool.QueryRow(ctx, query, id).Scan(&count); err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// ResetFailedAttempts zeroes the counter and clears any lock.
func (r *AccountRepository) ResetFailedAttempts(ctx context.Context, id string) error {
	query := `
		UPDATE accounts
		SET failed_login_attempts = 0, locked_until = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`

	tag, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// SetLockedUntil locks the account until the given time.
func (r *AccountRepository) SetLockedUntil(ctx context.Context, id string, until time.Time) error {
	query := `
		UPDATE accounts
		SET locked_until = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`

	tag, err := r.db.Pool.Exec(ctx, query, id, until)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// UpdateMFASecret stores a freshly encrypted, not-yet-verified secret.
// Enabling happens separately once the first code verifies.
func (r *AccountRepository) UpdateMFASecret(ctx context.Context, id string, ciphertext, nonce []byte) error {
	query := `
		UPDATE accounts
		SET mfa_secret_encrypted = $2, mfa_secret_nonce = $3, mfa_enabled = FALSE,
		    mfa_enrolled_at = NULL, mfa_last_used_step = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`

	tag, err := r.db.Pool.Exec(ctx, query, id, ciphertext, nonce)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// EnableMFA marks MFA as proven and enabled for the account.
func (r *AccountRepository) EnableMFA(ctx context.Context, id string, enrolledAt time.Time) error {
	query := `
		UPDATE accounts
		SET mfa_enabled = TRUE, mfa_enrolled_at = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`

	tag, err := r.db.Pool.Exec(ctx, query, id, enrolledAt)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// DisableMFA removes the secret and disables MFA.
func (r *AccountRepository) DisableMFA(ctx context.Context, id string) error {
	query := `
		UPDATE accounts
		SET mfa_enabled = FALSE, mfa_secret_encrypted = NULL, mfa_secret_nonce = NULL,
		    mfa_enrolled_at = NULL, mfa_last_used_step = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`

	tag, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// SetMFALastUsedStep records the accepted TOTP time step for replay rejection.
func (r *AccountRepository) SetMFALastUsedStep(ctx context.Context, id string, step int64) error {
	query := `UPDATE accounts SET mfa_last_used_step = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`

	_, err := r.db.Pool.Exec(ctx, query, id, step)
	return database.MapPostgresError(err)
}

// ListAtRisk returns active accounts whose failed attempt counter has
// reached the given threshold.
func (r *AccountRepository) ListAtRisk(ctx context.Context, minFailedAttempts int) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + `
		FROM accounts
		WHERE status = 'active' AND failed_login_attempts >= $1
		ORDER BY failed_login_attempts DESC`

	rows, err := r.db.Pool.Query(ctx, query, minFailedAttempts)
	if err != nil {
		return nil, fmt.Errorf("failed to query at-risk accounts: %w", err)
	}

	return scanAccountRows(rows)
}

// ListLocked returns accounts whose lockout is still in effect.
func (r *AccountRepository) ListLocked(ctx context.Context, now time.Time) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + `
		FROM accounts
		WHERE locked_until IS NOT NULL AND locked_until > $1
		ORDER BY locked_until`

	rows, err := r.db.Pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query locked accounts: %w", err)
	}

	return scanAccountRows(rows)
}

// ListExpiredPasswords returns active accounts whose password has aged out.
func (r *AccountRepository) ListExpiredPasswords(ctx context.Context, now time.Time) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + `
		FROM accounts
		WHERE status = 'active' AND password_expires_at IS NOT NULL AND password_expires_at < $1
		ORDER BY password_expires_at`

	rows, err := r.db.Pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired-password accounts: %w", err)
	}

	return scanAccountRows(rows)
}

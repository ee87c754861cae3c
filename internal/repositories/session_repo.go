package repositories

import (
	"context"
	"time"

	"github.com/carebridge/securitycore/internal/database"
	"github.com/carebridge/securitycore/internal/models"
)

// SessionRepository handles session data access. Only token hashes are
// ever stored or queried.
type SessionRepository struct {
	db *database.DB
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new active session.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (account_id, token_hash, ip_address, user_agent, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING id, created_at, last_activity_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		session.AccountID,
		session.TokenHash,
		session.IPAddress,
		session.UserAgent,
	).Scan(&session.ID, &session.CreatedAt, &session.LastActivityAt)

	return database.MapPostgresError(err)
}

// GetByTokenHash retrieves an active session by token hash.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	query := `
		SELECT id, account_id, token_hash, ip_address, user_agent, is_active, created_at, last_activity_at
		FROM sessions
		WHERE token_hash = $1 AND is_active = TRUE
	`

	var s models.Session
	err := r.db.Pool.QueryRow(ctx, query, tokenHash).Scan(
		&s.ID, &s.AccountID, &s.TokenHash, &s.IPAddress, &s.UserAgent,
		&s.IsActive, &s.CreatedAt, &s.LastActivityAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &s, nil
}

// Touch updates the session's last activity timestamp.
func (r *SessionRepository) Touch(ctx context.Context, tokenHash string) error {
	query := `
		UPDATE sessions SET last_activity_at = CURRENT_TIMESTAMP
		WHERE token_hash = $1 AND is_active = TRUE
	`

	tag, err := r.db.Pool.Exec(ctx, query, tokenHash)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Invalidate marks a session inactive.
func (r *SessionRepository) Invalidate(ctx context.Context, tokenHash string) error {
	query := `UPDATE sessions SET is_active = FALSE WHERE token_hash = $1`

	_, err := r.db.Pool.Exec(ctx, query, tokenHash)
	return database.MapPostgresError(err)
}

// InvalidateAllForAccount marks every session of an account inactive.
func (r *SessionRepository) InvalidateAllForAccount(ctx context.Context, accountID string) error {
	query := `UPDATE sessions SET is_active = FALSE WHERE account_id = $1`

	_, err := r.db.Pool.Exec(ctx, query, accountID)
	return database.MapPostgresError(err)
}

// InvalidateIdle deactivates sessions with no activity since the cutoff
// and returns how many were affected.
func (r *SessionRepository) InvalidateIdle(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `UPDATE sessions SET is_active = FALSE WHERE is_active = TRUE AND last_activity_at < $1`

	tag, err := r.db.Pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}

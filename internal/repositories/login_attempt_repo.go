package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/carebridge/securitycore/internal/database"
	"github.com/carebridge/securitycore/internal/models"
)

// LoginAttemptRepository handles the append-only login attempt stream.
type LoginAttemptRepository struct {
	db *database.DB
}

// NewLoginAttemptRepository creates a new LoginAttemptRepository
func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{db: db}
}

// Record appends a login attempt. Rows are never updated afterwards.
func (r *LoginAttemptRepository) Record(ctx context.Context, attempt *models.LoginAttempt) error {
	query := `
		INSERT INTO login_attempts (email, ip_address, user_agent, success, failure_reason, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		attempt.Email,
		attempt.IPAddress,
		attempt.UserAgent,
		attempt.Success,
		attempt.FailureReason,
		attempt.ExpiresAt,
	)

	return database.MapPostgresError(err)
}

// CountFailuresByEmail returns failed attempts for an email since the cutoff.
func (r *LoginAttemptRepository) CountFailuresByEmail(ctx context.Context, email string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM login_attempts
		WHERE email = $1 AND success = FALSE AND created_at >= $2
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, email, since).Scan(&count)
	return count, database.MapPostgresError(err)
}

// GroupFailuresByIP aggregates failed attempts per source IP since the
// cutoff. Rows with an empty IP are excluded; the monitor treats those
// as partial data to skip, not an error.
func (r *LoginAttemptRepository) GroupFailuresByIP(ctx context.Context, since time.Time) ([]models.IPFailureCount, error) {
	query := `
		SELECT ip_address, COUNT(*) AS failures
		FROM login_attempts
		WHERE success = FALSE AND created_at >= $1 AND ip_address <> ''
		GROUP BY ip_address
		ORDER BY failures DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to group login failures by IP: %w", err)
	}
	defer rows.Close()

	counts := make([]models.IPFailureCount, 0)
	for rows.Next() {
		var c models.IPFailureCount
		if err := rows.Scan(&c.IPAddress, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan IP failure count: %w", err)
		}
		counts = append(counts, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating IP failure rows: %w", err)
	}

	return counts, nil
}

// DeleteExpired prunes attempts past their retention timestamp and
// returns how many rows were removed.
func (r *LoginAttemptRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM login_attempts WHERE expires_at <= CURRENT_TIMESTAMP`

	tag, err := r.db.Pool.Exec(ctx, query)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}

package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/carebridge/securitycore/internal/database"
	"github.com/carebridge/securitycore/internal/models"
	"github.com/jackc/pgx/v5"
)

const auditLogColumns = `
	id, account_id, action, entity_type, entity_id, changes, severity, ip_address, user_agent, created_at`

// AuditLogRepository handles the write-once audit stream.
type AuditLogRepository struct {
	db *database.DB
}

// NewAuditLogRepository creates a new AuditLogRepository
func NewAuditLogRepository(db *database.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

func scanAuditLogRow(row rowScanner) (*models.AuditLog, error) {
	var l models.AuditLog

	err := row.Scan(
		&l.ID, &l.AccountID, &l.Action, &l.EntityType, &l.EntityID,
		&l.Changes, &l.Severity, &l.IPAddress, &l.UserAgent, &l.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &l, nil
}

func scanAuditLogRows(rows pgx.Rows) ([]*models.AuditLog, error) {
	defer rows.Close()

	logs := make([]*models.AuditLog, 0)

	for rows.Next() {
		log, err := scanAuditLogRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log rows: %w", err)
	}

	return logs, nil
}

// Create appends an audit log entry.
func (r *AuditLogRepository) Create(ctx context.Context, log *models.AuditLog) (*models.AuditLog, error) {
	query := `
		INSERT INTO audit_logs (account_id, action, entity_type, entity_id, changes, severity, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + auditLogColumns

	return scanAuditLogRow(r.db.Pool.QueryRow(ctx, query,
		log.AccountID, log.Action, log.EntityType, log.EntityID,
		log.Changes, log.Severity, log.IPAddress, log.UserAgent,
	))
}

// GetByAccountID retrieves the audit trail for an account, newest first.
func (r *AuditLogRepository) GetByAccountID(ctx context.Context, accountID string, limit, offset int) ([]*models.AuditLog, error) {
	query := `SELECT ` + auditLogColumns + `
		FROM audit_logs
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Pool.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}

	return scanAuditLogRows(rows)
}

// CountByAccountID returns the audit log count for an account.
func (r *AuditLogRepository) CountByAccountID(ctx context.Context, accountID string) (int64, error) {
	query := `SELECT COUNT(*) FROM audit_logs WHERE account_id = $1`

	var count int64
	err := r.db.Pool.QueryRow(ctx, query, accountID).Scan(&count)
	return count, database.MapPostgresError(err)
}

// DeleteOlderThan prunes audit entries past the retention cutoff and
// returns how many rows were removed.
func (r *AuditLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM audit_logs WHERE created_at < $1`

	tag, err := r.db.Pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}

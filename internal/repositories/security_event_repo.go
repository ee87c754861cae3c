package repositories

import (
	"context"
	"fmt"

	"github.com/carebridge/securitycore/internal/database"
	"github.com/carebridge/securitycore/internal/models"
	"github.com/jackc/pgx/v5"
)

const securityEventColumns = `
	id, event_type, account_id, severity, description, ip_address, user_agent, metadata, resolved, created_at`

// SecurityEventRepository handles the append-only security event stream.
// Resolved is the only column that is ever updated.
type SecurityEventRepository struct {
	db *database.DB
}

// NewSecurityEventRepository creates a new SecurityEventRepository
func NewSecurityEventRepository(db *database.DB) *SecurityEventRepository {
	return &SecurityEventRepository{db: db}
}

func scanSecurityEventRow(row rowScanner) (*models.SecurityEvent, error) {
	var e models.SecurityEvent

	err := row.Scan(
		&e.ID, &e.EventType, &e.AccountID, &e.Severity, &e.Description,
		&e.IPAddress, &e.UserAgent, &e.Metadata, &e.Resolved, &e.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &e, nil
}

func scanSecurityEventRows(rows pgx.Rows) ([]*models.SecurityEvent, error) {
	defer rows.Close()

	events := make([]*models.SecurityEvent, 0)

	for rows.Next() {
		event, err := scanSecurityEventRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan security event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating security event rows: %w", err)
	}

	return events, nil
}

// Create appends a security event.
func (r *SecurityEventRepository) Create(ctx context.Context, event *models.SecurityEvent) (*models.SecurityEvent, error) {
	query := `
		INSERT INTO security_events (event_type, account_id, severity, description, ip_address, user_agent, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + securityEventColumns

	return scanSecurityEventRow(r.db.Pool.QueryRow(ctx, query,
		event.EventType, event.AccountID, event.Severity, event.Description,
		event.IPAddress, event.UserAgent, event.Metadata,
	))
}

// List returns events matching the filter, newest first.
func (r *SecurityEventRepository) List(ctx context.Context, filter models.SecurityEventFilter) ([]*models.SecurityEvent, error) {
	query := `SELECT ` + securityEventColumns + ` FROM security_events WHERE 1=1`
	args := make([]any, 0, 6)

	if filter.Severity != "" {
		args = append(args, filter.Severity)
		query += fmt.Sprintf(" AND severity = $%d", len(args))
	}
	if filter.EventType != "" {
		args = append(args, filter.EventType)
		query += fmt.Sprintf(" AND event_type = $%d", len(args))
	}
	if filter.Resolved != nil {
		args = append(args, *filter.Resolved)
		query += fmt.Sprintf(" AND resolved = $%d", len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	args = append(args, offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query security events: %w", err)
	}

	return scanSecurityEventRows(rows)
}

// MarkResolved flips the resolved flag for an event.
func (r *SecurityEventRepository) MarkResolved(ctx context.Context, id string) error {
	query := `UPDATE security_events SET resolved = TRUE WHERE id = $1`

	tag, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Stats aggregates event counts for the admin dashboard.
func (r *SecurityEventRepository) Stats(ctx context.Context) (*models.SecurityEventStats, error) {
	stats := &models.SecurityEventStats{BySeverity: make(map[string]int64)}

	query := `
		SELECT severity, COUNT(*), COUNT(*) FILTER (WHERE NOT resolved)
		FROM security_events
		GROUP BY severity
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query security event stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var severity string
		var total, unresolved int64
		if err := rows.Scan(&severity, &total, &unresolved); err != nil {
			return nil, fmt.Errorf("failed to scan security event stats: %w", err)
		}
		stats.BySeverity[severity] = total
		stats.Total += total
		stats.Unresolved += unresolved
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating security event stats: %w", err)
	}

	return stats, nil
}

package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/carebridge/securitycore/internal/models"
	pkghttp "github.com/carebridge/securitycore/pkg/http"
	pkglogger "github.com/carebridge/securitycore/pkg/logger"
)

// SecurityEventRepository defines the persistence interface for the
// security event stream.
type SecurityEventRepository interface {
	Create(ctx context.Context, event *models.SecurityEvent) (*models.SecurityEvent, error)
	List(ctx context.Context, filter models.SecurityEventFilter) ([]*models.SecurityEvent, error)
	MarkResolved(ctx context.Context, id string) error
	Stats(ctx context.Context) (*models.SecurityEventStats, error)
}

// AuditLogRepository defines the persistence interface for the audit stream.
type AuditLogRepository interface {
	Create(ctx context.Context, log *models.AuditLog) (*models.AuditLog, error)
	GetByAccountID(ctx context.Context, accountID string, limit, offset int) ([]*models.AuditLog, error)
}

// AuditService writes audit and security events. Every write is
// fire-and-forget with respect to the caller's primary operation:
// persistence failures are logged operationally and never propagated,
// so audit logging cannot fail the request it observes.
type AuditService struct {
	eventRepo SecurityEventRepository
	auditRepo AuditLogRepository
	logger    *slog.Logger
}

// NewAuditService creates a new AuditService
func NewAuditService(eventRepo SecurityEventRepository, auditRepo AuditLogRepository, logger *slog.Logger) *AuditService {
	return &AuditService{
		eventRepo: eventRepo,
		auditRepo: auditRepo,
		logger:    logger,
	}
}

// LogSecurityEvent records a security event in both sinks: the security
// event stream for operational alerting and the audit stream for
// compliance review. Severity is the caller's call, per event type.
func (s *AuditService) LogSecurityEvent(ctx context.Context, eventType string, accountID *string, severity, description string, cc pkghttp.ClientContext, metadata models.EventMetadata) {
	var ip, ua *string
	if cc.IPAddress != "" {
		ip = &cc.IPAddress
	}
	if cc.UserAgent != "" {
		ua = &cc.UserAgent
	}

	// Immediate operational log line
	acct := ""
	if accountID != nil {
		acct = *accountID
	}
	attrs := pkglogger.SecurityAttrs(eventType, acct, cc.IPAddress, cc.UserAgent)
	attrs = append(attrs, slog.String("severity", severity), slog.String("description", description))
	pkglogger.LogSecurity(s.logger, severity, attrs)

	event := &models.SecurityEvent{
		EventType:   eventType,
		AccountID:   accountID,
		Severity:    severity,
		Description: description,
		IPAddress:   ip,
		UserAgent:   ua,
		Metadata:    metadata,
	}

	if _, err := s.eventRepo.Create(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist security event",
			slog.String("event_type", eventType),
			slog.Any("error", err))
	}

	s.LogAudit(ctx, &models.AuditLog{
		AccountID:  accountID,
		Action:     models.AuditActionSecurityEvent,
		EntityType: models.AuditEntitySecurityEvent,
		Changes:    models.EventMetadata{"event_type": eventType, "description": description},
		Severity:   severity,
		IPAddress:  ip,
		UserAgent:  ua,
	})
}

// LogAudit appends an entry to the audit stream. Failures are swallowed.
func (s *AuditService) LogAudit(ctx context.Context, entry *models.AuditLog) {
	if entry.Severity == "" {
		entry.Severity = models.SeverityInfo
	}

	if _, err := s.auditRepo.Create(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist audit log",
			slog.String("action", entry.Action),
			slog.Any("error", err))
	}
}

// ListSecurityEvents returns events matching the filter for the admin surface.
func (s *AuditService) ListSecurityEvents(ctx context.Context, filter models.SecurityEventFilter) ([]*models.SecurityEvent, error) {
	events, err := s.eventRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list security events: %w", err)
	}
	return events, nil
}

// ResolveSecurityEvent flips the resolved flag and audits the operator action.
func (s *AuditService) ResolveSecurityEvent(ctx context.Context, eventID, actorID string, cc pkghttp.ClientContext) error {
	if err := s.eventRepo.MarkResolved(ctx, eventID); err != nil {
		return err
	}

	var ip, ua *string
	if cc.IPAddress != "" {
		ip = &cc.IPAddress
	}
	if cc.UserAgent != "" {
		ua = &cc.UserAgent
	}

	s.LogAudit(ctx, &models.AuditLog{
		AccountID:  &actorID,
		Action:     models.AuditActionResolveEvent,
		EntityType: models.AuditEntitySecurityEvent,
		EntityID:   &eventID,
		Severity:   models.SeverityInfo,
		IPAddress:  ip,
		UserAgent:  ua,
	})

	return nil
}

// SecurityEventStats aggregates counts for the dashboard.
func (s *AuditService) SecurityEventStats(ctx context.Context) (*models.SecurityEventStats, error) {
	stats, err := s.eventRepo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get security event stats: %w", err)
	}
	return stats, nil
}

// GetAccountAuditTrail retrieves the audit trail for an account.
func (s *AuditService) GetAccountAuditTrail(ctx context.Context, accountID string, limit, offset int) ([]*models.AuditLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	logs, err := s.auditRepo.GetByAccountID(ctx, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit trail: %w", err)
	}
	return logs, nil
}

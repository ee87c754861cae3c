package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/carebridge/securitycore/internal/config"
	"github.com/carebridge/securitycore/internal/models"
	pkghttp "github.com/carebridge/securitycore/pkg/http"
)

// LoginAttemptRepository defines the attempt-stream queries the monitor
// and the auth flow depend on.
type LoginAttemptRepository interface {
	Record(ctx context.Context, attempt *models.LoginAttempt) error
	CountFailuresByEmail(ctx context.Context, email string, since time.Time) (int, error)
	GroupFailuresByIP(ctx context.Context, since time.Time) ([]models.IPFailureCount, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

// MonitorAccountRepository defines the account scans the monitor runs.
type MonitorAccountRepository interface {
	ListAtRisk(ctx context.Context, minFailedAttempts int) ([]*models.Account, error)
	ListLocked(ctx context.Context, now time.Time) ([]*models.Account, error)
	ListExpiredPasswords(ctx context.Context, now time.Time) ([]*models.Account, error)
}

// MonitorService scans recent authentication activity for suspicious
// patterns. Scan is a pure read: it produces alerts without mutating
// anything, so a scan can be re-run safely at any time. Persisting the
// alerts and notifying operators happens in RecordAlerts.
type MonitorService struct {
	attemptRepo LoginAttemptRepository
	accountRepo MonitorAccountRepository
	audit       *AuditService
	config      config.MonitorConfig
	logger      *slog.Logger

	now func() time.Time
}

// NewMonitorService creates a new MonitorService
func NewMonitorService(attemptRepo LoginAttemptRepository, accountRepo MonitorAccountRepository, audit *AuditService, cfg config.MonitorConfig, logger *slog.Logger) *MonitorService {
	return &MonitorService{
		attemptRepo: attemptRepo,
		accountRepo: accountRepo,
		audit:       audit,
		config:      cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// Scan examines the recent attempt stream and current account states and
// returns every alert the data supports. Partial failures in one check
// do not abort the others; whatever could be gathered is returned along
// with the first error encountered.
func (s *MonitorService) Scan(ctx context.Context) ([]models.Alert, error) {
	now := s.now()
	alerts := make([]models.Alert, 0)
	var firstErr error

	record := func(err error, check string) {
		s.logger.ErrorContext(ctx, "monitor check failed",
			slog.String("check", check),
			slog.Any("error", err))
		if firstErr == nil {
			firstErr = fmt.Errorf("%s check failed: %w", check, err)
		}
	}

	counts, err := s.attemptRepo.GroupFailuresByIP(ctx, now.Add(-s.config.BruteForceWindow))
	if err != nil {
		record(err, "brute force")
	} else {
		for _, c := range counts {
			if c.Count <= s.config.BruteForceThreshold {
				continue
			}
			ip := c.IPAddress
			alerts = append(alerts, models.Alert{
				Type:        models.AlertBruteForceAttempt,
				Severity:    models.AlertSeverityHigh,
				IPAddress:   &ip,
				Description: fmt.Sprintf("%d failed login attempts from %s in the last %s", c.Count, ip, s.config.BruteForceWindow),
				Metadata: models.EventMetadata{
					"failure_count": c.Count,
					"window":        s.config.BruteForceWindow.String(),
				},
			})
		}
	}

	atRisk, err := s.accountRepo.ListAtRisk(ctx, s.config.AtRiskThreshold)
	if err != nil {
		record(err, "at-risk accounts")
	} else {
		for _, account := range atRisk {
			id := account.ID
			alerts = append(alerts, models.Alert{
				Type:        models.AlertAccountCompromiseRisk,
				Severity:    models.AlertSeverityMedium,
				AccountID:   &id,
				Description: fmt.Sprintf("account has %d consecutive failed login attempts", account.FailedLoginAttempts),
				Metadata:    models.EventMetadata{"failed_attempts": account.FailedLoginAttempts},
			})
		}
	}

	locked, err := s.accountRepo.ListLocked(ctx, now)
	if err != nil {
		record(err, "locked accounts")
	} else {
		for _, account := range locked {
			id := account.ID
			meta := models.EventMetadata{}
			if account.LockedUntil != nil {
				meta["locked_until"] = account.LockedUntil.UTC()
			}
			alerts = append(alerts, models.Alert{
				Type:        models.AlertAccountLocked,
				Severity:    models.AlertSeverityMedium,
				AccountID:   &id,
				Description: "account is currently locked out",
				Metadata:    meta,
			})
		}
	}

	expired, err := s.accountRepo.ListExpiredPasswords(ctx, now)
	if err != nil {
		record(err, "expired passwords")
	} else {
		for _, account := range expired {
			id := account.ID
			meta := models.EventMetadata{}
			if account.PasswordExpiresAt != nil {
				meta["password_expired_at"] = account.PasswordExpiresAt.UTC()
			}
			alerts = append(alerts, models.Alert{
				Type:        models.AlertPasswordExpired,
				Severity:    models.AlertSeverityLow,
				AccountID:   &id,
				Description: "account password has expired",
				Metadata:    meta,
			})
		}
	}

	return alerts, firstErr
}

// RecordAlerts persists each alert as a security event and forwards it
// to the notifier channel, if one is attached. A nil or full channel
// never blocks the scan; notification is best effort.
func (s *MonitorService) RecordAlerts(ctx context.Context, alerts []models.Alert, notify chan<- models.Alert) {
	for _, alert := range alerts {
		var cc pkghttp.ClientContext
		if alert.IPAddress != nil {
			cc.IPAddress = *alert.IPAddress
		}

		s.audit.LogSecurityEvent(ctx, alert.Type, alert.AccountID,
			alert.EventSeverity(), alert.Description, cc, alert.Metadata)

		if notify == nil {
			continue
		}
		select {
		case notify <- alert:
		default:
			s.logger.Warn("alert notification queue full, dropping",
				slog.String("alert_type", alert.Type))
		}
	}
}

// RunScan is the scheduled entry point: scan, persist, notify.
func (s *MonitorService) RunScan(ctx context.Context, notify chan<- models.Alert) (int, error) {
	started := s.now()

	alerts, err := s.Scan(ctx)
	s.RecordAlerts(ctx, alerts, notify)

	s.logger.Info("monitor scan completed",
		slog.Int("alerts", len(alerts)),
		slog.Duration("took", s.now().Sub(started)))

	return len(alerts), err
}

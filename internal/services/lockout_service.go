package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/carebridge/securitycore/internal/models"
	pkghttp "github.com/carebridge/securitycore/pkg/http"
)

// AccountRepository defines the account persistence interface consumed
// by the security services.
type AccountRepository interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	IncrementFailedAttempts(ctx context.Context, id string) (int, error)
	ResetFailedAttempts(ctx context.Context, id string) error
	SetLockedUntil(ctx context.Context, id string, until time.Time) error
	UpdateMFASecret(ctx context.Context, id string, ciphertext, nonce []byte) error
	EnableMFA(ctx context.Context, id string, enrolledAt time.Time) error
	DisableMFA(ctx context.Context, id string) error
	SetMFALastUsedStep(ctx context.Context, id string, step int64) error
}

// LockoutConfig holds the lockout policy.
type LockoutConfig struct {
	MaxFailedAttempts int
	LockDuration      time.Duration
}

// LockoutService tracks failed authentication attempts per account and
// enforces time-boxed lockouts. The counter only resets on a successful
// authentication; the lock, once set, holds regardless of password
// correctness until it expires or an administrator clears it.
type LockoutService struct {
	repo   AccountRepository
	audit  *AuditService
	config LockoutConfig
	logger *slog.Logger

	now func() time.Time
}

// NewLockoutService creates a new LockoutService
func NewLockoutService(repo AccountRepository, audit *AuditService, config LockoutConfig, logger *slog.Logger) *LockoutService {
	return &LockoutService{
		repo:   repo,
		audit:  audit,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// IsLocked reports whether the account is under a lockout, and until when.
// Must be consulted before password verification so a locked account
// never leaks whether the supplied password was correct.
func (s *LockoutService) IsLocked(ctx context.Context, accountID string) (bool, *time.Time, error) {
	account, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return false, nil, err
	}

	if account.IsLocked(s.now()) {
		return true, account.LockedUntil, nil
	}
	return false, nil, nil
}

// RecordFailure bumps the failure counter and locks the account once the
// threshold is crossed. Returns the new counter value.
func (s *LockoutService) RecordFailure(ctx context.Context, accountID string, cc pkghttp.ClientContext) (int, error) {
	count, err := s.repo.IncrementFailedAttempts(ctx, accountID)
	if err != nil {
		return 0, err
	}

	if count >= s.config.MaxFailedAttempts {
		until := s.now().Add(s.config.LockDuration)
		if err := s.repo.SetLockedUntil(ctx, accountID, until); err != nil {
			return count, err
		}

		s.logger.Warn("account locked after repeated failures",
			slog.String("account_id", accountID),
			slog.Int("failed_attempts", count),
			slog.Time("locked_until", until))

		s.audit.LogSecurityEvent(ctx, models.EventTypeAccountLockedOut, &accountID,
			models.SeverityWarning, "account locked after repeated failed logins", cc,
			models.EventMetadata{"failed_attempts": count, "locked_until": until.UTC()})
	}

	return count, nil
}

// RecordSuccess clears the counter and any expired lock after a
// successful authentication. Callers must have rejected the attempt
// already if the account is still locked; a success against a live lock
// is a bug, so it is refused here too.
func (s *LockoutService) RecordSuccess(ctx context.Context, accountID string) error {
	account, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return err
	}

	if account.IsLocked(s.now()) {
		return models.ErrAccountLocked
	}

	return s.repo.ResetFailedAttempts(ctx, accountID)
}

// Lock places an explicit lock until the given time.
func (s *LockoutService) Lock(ctx context.Context, accountID string, until time.Time) error {
	return s.repo.SetLockedUntil(ctx, accountID, until)
}

// Unlock clears the lock and counter. A privileged operation: the acting
// administrator is recorded in the audit trail.
func (s *LockoutService) Unlock(ctx context.Context, accountID, actorID string, cc pkghttp.ClientContext) error {
	if err := s.repo.ResetFailedAttempts(ctx, accountID); err != nil {
		return err
	}

	s.logger.Info("account unlocked by administrator",
		slog.String("account_id", accountID),
		slog.String("actor_id", actorID))

	s.audit.LogSecurityEvent(ctx, models.EventTypeAccountUnlocked, &accountID,
		models.SeverityInfo, "account unlocked by administrator", cc,
		models.EventMetadata{"actor_id": actorID})

	s.audit.LogAudit(ctx, &models.AuditLog{
		AccountID:  &actorID,
		Action:     models.AuditActionUnlockAccount,
		EntityType: models.AuditEntityAccount,
		EntityID:   &accountID,
		Severity:   models.SeverityInfo,
	})

	return nil
}

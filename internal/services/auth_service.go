package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/carebridge/securitycore/internal/auth"
	"github.com/carebridge/securitycore/internal/models"
	pkgauth "github.com/carebridge/securitycore/pkg/auth"
	pkghttp "github.com/carebridge/securitycore/pkg/http"
	pkglogger "github.com/carebridge/securitycore/pkg/logger"
)

// SessionRepository defines the session persistence interface.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error)
	Touch(ctx context.Context, tokenHash string) error
	Invalidate(ctx context.Context, tokenHash string) error
	InvalidateAllForAccount(ctx context.Context, accountID string) error
}

// LoginResult is returned on a fully successful authentication.
type LoginResult struct {
	Account      *models.Account
	SessionToken string
	AccessToken  string
}

// SecurityOverview is the self-service view of an account's security
// posture. Lock state is disclosed here, behind authentication, never
// on the login response itself.
type SecurityOverview struct {
	MFAEnabled          bool       `json:"mfa_enabled"`
	FailedLoginAttempts int        `json:"failed_login_attempts"`
	Locked              bool       `json:"locked"`
	LockedUntil         *time.Time `json:"locked_until,omitempty"`
	PasswordExpiresAt   *time.Time `json:"password_expires_at,omitempty"`
	PasswordExpired     bool       `json:"password_expired"`
}

// AuthService runs the authentication pipeline: lockout gate, password
// verification, MFA challenge, then session and token issuance. Every
// attempt, success or failure, lands in the attempt stream.
type AuthService struct {
	accountRepo AccountRepository
	sessionRepo SessionRepository
	attemptRepo LoginAttemptRepository
	lockout     *LockoutService
	mfa         *MFAService
	audit       *AuditService
	tokenMgr    *auth.TokenManager
	logger      *slog.Logger

	attemptRetention time.Duration
	now              func() time.Time
}

// NewAuthService creates a new AuthService
func NewAuthService(
	accountRepo AccountRepository,
	sessionRepo SessionRepository,
	attemptRepo LoginAttemptRepository,
	lockout *LockoutService,
	mfa *MFAService,
	audit *AuditService,
	tokenMgr *auth.TokenManager,
	attemptRetention time.Duration,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		accountRepo:      accountRepo,
		sessionRepo:      sessionRepo,
		attemptRepo:      attemptRepo,
		lockout:          lockout,
		mfa:              mfa,
		audit:            audit,
		tokenMgr:         tokenMgr,
		attemptRetention: attemptRetention,
		logger:           logger,
	}
}

// Login authenticates an account. The lock state is checked before the
// password is verified so a locked account reveals nothing about
// credential validity. Failures all map to ErrUnauthorized except the
// states the caller must act on: locked, password expired, MFA required.
func (s *AuthService) Login(ctx context.Context, email, password, mfaCode string, cc pkghttp.ClientContext) (*LoginResult, error) {
	account, err := s.accountRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.recordAttempt(ctx, email, cc, false, "unknown_account")
			s.audit.LogSecurityEvent(ctx, models.EventTypeLoginFailed, nil,
				models.SeverityWarning, "login attempt for unknown account", cc,
				models.EventMetadata{"email": pkglogger.SanitizedEmail(email)})
			return nil, models.ErrUnauthorized
		}
		return nil, err
	}

	if !account.IsActive() {
		s.recordAttempt(ctx, email, cc, false, "account_disabled")
		s.audit.LogSecurityEvent(ctx, models.EventTypeLoginFailed, &account.ID,
			models.SeverityWarning, "login attempt on disabled account", cc, nil)
		return nil, models.ErrAccountDisabled
	}

	locked, _, err := s.lockout.IsLocked(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	if locked {
		s.recordAttempt(ctx, email, cc, false, "account_locked")
		s.audit.LogSecurityEvent(ctx, models.EventTypeLoginFailed, &account.ID,
			models.SeverityWarning, "login attempt on locked account", cc, nil)
		return nil, models.ErrAccountLocked
	}

	if err := pkgauth.ComparePassword(account.PasswordHash, password); err != nil {
		return nil, s.failLogin(ctx, account, email, cc, "invalid_password")
	}

	if account.PasswordIsExpired(time.Now()) {
		s.recordAttempt(ctx, email, cc, false, "password_expired")
		s.audit.LogSecurityEvent(ctx, models.EventTypeLoginFailed, &account.ID,
			models.SeverityInfo, "login rejected: password expired", cc, nil)
		return nil, models.ErrPasswordExpired
	}

	if account.MFAEnabled {
		if mfaCode == "" {
			return nil, models.ErrMFARequired
		}

		valid, err := s.mfa.VerifyCode(ctx, account, mfaCode)
		if err != nil {
			return nil, err
		}
		if !valid {
			s.audit.LogSecurityEvent(ctx, models.EventTypeMFAVerifyFailed, &account.ID,
				models.SeverityWarning, "invalid MFA code at login", cc, nil)
			return nil, s.failLogin(ctx, account, email, cc, "invalid_mfa_code")
		}
	}

	if err := s.lockout.RecordSuccess(ctx, account.ID); err != nil {
		return nil, err
	}

	s.recordAttempt(ctx, email, cc, true, "")

	sessionToken, tokenHash, err := auth.GenerateSessionToken()
	if err != nil {
		s.logger.Error("failed to generate session token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	session := &models.Session{
		AccountID: account.ID,
		TokenHash: tokenHash,
		IPAddress: cc.IPAddress,
		UserAgent: cc.UserAgent,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, err
	}

	accessToken, err := s.tokenMgr.GenerateAccessToken(account.ID, account.Email, account.Role)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.audit.LogSecurityEvent(ctx, models.EventTypeLoginSuccess, &account.ID,
		models.SeverityInfo, "successful login", cc, nil)

	return &LoginResult{
		Account:      account,
		SessionToken: sessionToken,
		AccessToken:  accessToken,
	}, nil
}

// failLogin records the failed attempt, bumps the lockout counter, and
// emits the failure event. Always returns ErrUnauthorized so the caller
// cannot distinguish a bad password from a bad MFA code.
func (s *AuthService) failLogin(ctx context.Context, account *models.Account, email string, cc pkghttp.ClientContext, reason string) error {
	s.recordAttempt(ctx, email, cc, false, reason)

	count, err := s.lockout.RecordFailure(ctx, account.ID, cc)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to record login failure",
			slog.String("account_id", account.ID),
			slog.Any("error", err))
	}

	s.audit.LogSecurityEvent(ctx, models.EventTypeLoginFailed, &account.ID,
		models.SeverityWarning, "failed login attempt", cc,
		models.EventMetadata{"failed_attempts": count, "reason": reason})

	return models.ErrUnauthorized
}

// recordAttempt appends to the attempt stream. Best effort: the
// monitor tolerates gaps, the pipeline must not stall on them.
func (s *AuthService) recordAttempt(ctx context.Context, email string, cc pkghttp.ClientContext, success bool, reason string) {
	attempt := &models.LoginAttempt{
		Email:     email,
		IPAddress: cc.IPAddress,
		UserAgent: cc.UserAgent,
		Success:   success,
		ExpiresAt: time.Now().Add(s.attemptRetention),
	}
	if reason != "" {
		attempt.FailureReason = &reason
	}

	if err := s.attemptRepo.Record(ctx, attempt); err != nil {
		s.logger.ErrorContext(ctx, "failed to record login attempt", slog.Any("error", err))
	}
}

// Logout invalidates the session behind the given token. Unknown or
// already-invalid tokens succeed silently; logout is idempotent.
func (s *AuthService) Logout(ctx context.Context, sessionToken string, cc pkghttp.ClientContext) error {
	tokenHash := auth.HashSessionToken(sessionToken)

	session, err := s.sessionRepo.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return err
	}

	if err := s.sessionRepo.Invalidate(ctx, tokenHash); err != nil {
		return err
	}

	s.audit.LogAudit(ctx, &models.AuditLog{
		AccountID:  &session.AccountID,
		Action:     models.AuditActionLogout,
		EntityType: models.AuditEntitySession,
		EntityID:   &session.ID,
		Severity:   models.SeverityInfo,
	})

	return nil
}

// LogoutAll invalidates every session for the account.
func (s *AuthService) LogoutAll(ctx context.Context, accountID string) error {
	return s.sessionRepo.InvalidateAllForAccount(ctx, accountID)
}

// ValidateSession resolves a session token to its account, touching the
// activity timestamp on the way.
func (s *AuthService) ValidateSession(ctx context.Context, sessionToken string) (*models.Account, error) {
	tokenHash := auth.HashSessionToken(sessionToken)

	session, err := s.sessionRepo.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		return nil, err
	}

	account, err := s.accountRepo.GetByID(ctx, session.AccountID)
	if err != nil {
		return nil, err
	}
	if !account.IsActive() {
		return nil, models.ErrUnauthorized
	}

	if err := s.sessionRepo.Touch(ctx, tokenHash); err != nil && !errors.Is(err, models.ErrNotFound) {
		s.logger.Warn("failed to touch session", slog.Any("error", err))
	}

	return account, nil
}

// GetSecurityOverview returns the authenticated account's own security
// posture.
func (s *AuthService) GetSecurityOverview(ctx context.Context, accountID string) (*SecurityOverview, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	overview := &SecurityOverview{
		MFAEnabled:          account.MFAEnabled,
		FailedLoginAttempts: account.FailedLoginAttempts,
		Locked:              account.IsLocked(now),
		PasswordExpiresAt:   account.PasswordExpiresAt,
		PasswordExpired:     account.PasswordIsExpired(now),
	}
	if overview.Locked {
		overview.LockedUntil = account.LockedUntil
	}

	return overview, nil
}

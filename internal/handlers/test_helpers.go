package handlers

import (
	"context"

	"github.com/carebridge/securitycore/internal/models"
	"github.com/carebridge/securitycore/internal/services"
	pkghttp "github.com/carebridge/securitycore/pkg/http"
)

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc               func(ctx context.Context, email, password, mfaCode string, cc pkghttp.ClientContext) (*services.LoginResult, error)
	LogoutFunc              func(ctx context.Context, sessionToken string, cc pkghttp.ClientContext) error
	GetSecurityOverviewFunc func(ctx context.Context, accountID string) (*services.SecurityOverview, error)
}

func (m *MockAuthService) Login(ctx context.Context, email, password, mfaCode string, cc pkghttp.ClientContext) (*services.LoginResult, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password, mfaCode, cc)
	}
	return nil, models.ErrUnauthorized
}

func (m *MockAuthService) Logout(ctx context.Context, sessionToken string, cc pkghttp.ClientContext) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, sessionToken, cc)
	}
	return nil
}

func (m *MockAuthService) GetSecurityOverview(ctx context.Context, accountID string) (*services.SecurityOverview, error) {
	if m.GetSecurityOverviewFunc != nil {
		return m.GetSecurityOverviewFunc(ctx, accountID)
	}
	return &services.SecurityOverview{}, nil
}

// MockMFAService implements MFAServiceInterface for testing
type MockMFAService struct {
	InitiateSetupFunc func(ctx context.Context, accountID string, cc pkghttp.ClientContext) (*services.MFASetupResult, error)
	VerifySetupFunc   func(ctx context.Context, accountID, code string, cc pkghttp.ClientContext) error
	DisableFunc       func(ctx context.Context, accountID, password string, cc pkghttp.ClientContext) error
	StatusFunc        func(ctx context.Context, accountID string) (*services.MFAStatus, error)
}

func (m *MockMFAService) InitiateSetup(ctx context.Context, accountID string, cc pkghttp.ClientContext) (*services.MFASetupResult, error) {
	if m.InitiateSetupFunc != nil {
		return m.InitiateSetupFunc(ctx, accountID, cc)
	}
	return nil, models.ErrInternalServer
}

func (m *MockMFAService) VerifySetup(ctx context.Context, accountID, code string, cc pkghttp.ClientContext) error {
	if m.VerifySetupFunc != nil {
		return m.VerifySetupFunc(ctx, accountID, code, cc)
	}
	return nil
}

func (m *MockMFAService) Disable(ctx context.Context, accountID, password string, cc pkghttp.ClientContext) error {
	if m.DisableFunc != nil {
		return m.DisableFunc(ctx, accountID, password, cc)
	}
	return nil
}

func (m *MockMFAService) Status(ctx context.Context, accountID string) (*services.MFAStatus, error) {
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, accountID)
	}
	return &services.MFAStatus{State: "disabled"}, nil
}

// MockLockoutService implements LockoutServiceInterface for testing
type MockLockoutService struct {
	UnlockFunc func(ctx context.Context, accountID, actorID string, cc pkghttp.ClientContext) error
}

func (m *MockLockoutService) Unlock(ctx context.Context, accountID, actorID string, cc pkghttp.ClientContext) error {
	if m.UnlockFunc != nil {
		return m.UnlockFunc(ctx, accountID, actorID, cc)
	}
	return nil
}

// MockAuditQueryService implements AuditServiceInterface for testing
type MockAuditQueryService struct {
	ListSecurityEventsFunc   func(ctx context.Context, filter models.SecurityEventFilter) ([]*models.SecurityEvent, error)
	ResolveSecurityEventFunc func(ctx context.Context, eventID, actorID string, cc pkghttp.ClientContext) error
	SecurityEventStatsFunc   func(ctx context.Context) (*models.SecurityEventStats, error)
}

func (m *MockAuditQueryService) ListSecurityEvents(ctx context.Context, filter models.SecurityEventFilter) ([]*models.SecurityEvent, error) {
	if m.ListSecurityEventsFunc != nil {
		return m.ListSecurityEventsFunc(ctx, filter)
	}
	return []*models.SecurityEvent{}, nil
}

func (m *MockAuditQueryService) ResolveSecurityEvent(ctx context.Context, eventID, actorID string, cc pkghttp.ClientContext) error {
	if m.ResolveSecurityEventFunc != nil {
		return m.ResolveSecurityEventFunc(ctx, eventID, actorID, cc)
	}
	return nil
}

func (m *MockAuditQueryService) SecurityEventStats(ctx context.Context) (*models.SecurityEventStats, error) {
	if m.SecurityEventStatsFunc != nil {
		return m.SecurityEventStatsFunc(ctx)
	}
	return &models.SecurityEventStats{BySeverity: map[string]int64{}}, nil
}

// MockMonitorService implements MonitorServiceInterface for testing
type MockMonitorService struct {
	RunScanFunc func(ctx context.Context, notify chan<- models.Alert) (int, error)
}

func (m *MockMonitorService) RunScan(ctx context.Context, notify chan<- models.Alert) (int, error) {
	if m.RunScanFunc != nil {
		return m.RunScanFunc(ctx, notify)
	}
	return 0, nil
}

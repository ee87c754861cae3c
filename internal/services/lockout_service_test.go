package services_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/carebridge/securitycore/internal/models"
	"github.com/carebridge/securitycore/internal/services"
	pkghttp "github.com/carebridge/securitycore/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLockoutService(accountRepo *services.MockAccountRepository, eventRepo *services.MockSecurityEventRepository, auditRepo *services.MockAuditLogRepository) *services.LockoutService {
	logger := testLogger()
	audit := services.NewAuditService(eventRepo, auditRepo, logger)
	cfg := services.LockoutConfig{MaxFailedAttempts: 5, LockDuration: 15 * time.Minute}
	return services.NewLockoutService(accountRepo, audit, cfg, logger)
}

func TestLockoutService_IsLocked(t *testing.T) {
	t.Run("locked account reports locked with expiry", func(t *testing.T) {
		account := services.NewTestAccountLocked("acct_1", "nurse@clinic.test", "Nurse")
		repo := &services.MockAccountRepository{
			GetByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
				return account, nil
			},
		}
		svc := newTestLockoutService(repo, &services.MockSecurityEventRepository{}, &services.MockAuditLogRepository{})

		locked, until, err := svc.IsLocked(context.Background(), "acct_1")
		require.NoError(t, err)
		assert.True(t, locked)
		require.NotNil(t, until)
		assert.Equal(t, *account.LockedUntil, *until)
	})

	t.Run("expired lock reports unlocked", func(t *testing.T) {
		account := services.NewTestAccount("acct_1", "nurse@clinic.test", "Nurse")
		past := time.Now().Add(-1 * time.Minute)
		account.LockedUntil = &past
		repo := &services.MockAccountRepository{
			GetByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
				return account, nil
			},
		}
		svc := newTestLockoutService(repo, &services.MockSecurityEventRepository{}, &services.MockAuditLogRepository{})

		locked, until, err := svc.IsLocked(context.Background(), "acct_1")
		require.NoError(t, err)
		assert.False(t, locked)
		assert.Nil(t, until)
	})
}

func TestLockoutService_RecordFailure(t *testing.T) {
	t.Run("below threshold does not lock", func(t *testing.T) {
		lockCalled := false
		repo := &services.MockAccountRepository{
			IncrementFailedAttemptsFunc: func(ctx context.Context, id string) (int, error) {
				return 3, nil
			},
			SetLockedUntilFunc: func(ctx context.Context, id string, until time.Time) error {
				lockCalled = true
				return nil
			},
		}
		eventRepo := &services.MockSecurityEventRepository{}
		svc := newTestLockoutService(repo, eventRepo, &services.MockAuditLogRepository{})

		count, err := svc.RecordFailure(context.Background(), "acct_1", pkghttp.ClientContext{})
		require.NoError(t, err)
		assert.Equal(t, 3, count)
		assert.False(t, lockCalled)
		assert.Empty(t, eventRepo.Created)
	})

	t.Run("threshold locks and emits lockout event", func(t *testing.T) {
		var lockedUntil time.Time
		repo := &services.MockAccountRepository{
			IncrementFailedAttemptsFunc: func(ctx context.Context, id string) (int, error) {
				return 5, nil
			},
			SetLockedUntilFunc: func(ctx context.Context, id string, until time.Time) error {
				lockedUntil = until
				return nil
			},
		}
		eventRepo := &services.MockSecurityEventRepository{}
		svc := newTestLockoutService(repo, eventRepo, &services.MockAuditLogRepository{})

		before := time.Now()
		count, err := svc.RecordFailure(context.Background(), "acct_1", pkghttp.ClientContext{IPAddress: "10.0.0.9"})
		require.NoError(t, err)
		assert.Equal(t, 5, count)

		assert.WithinDuration(t, before.Add(15*time.Minute), lockedUntil, 2*time.Second)

		require.Len(t, eventRepo.Created, 1)
		event := eventRepo.Created[0]
		assert.Equal(t, models.EventTypeAccountLockedOut, event.EventType)
		assert.Equal(t, models.SeverityWarning, event.Severity)
		require.NotNil(t, event.AccountID)
		assert.Equal(t, "acct_1", *event.AccountID)
		require.NotNil(t, event.IPAddress)
		assert.Equal(t, "10.0.0.9", *event.IPAddress)
	})

	t.Run("count beyond threshold keeps locking", func(t *testing.T) {
		lockCalled := false
		repo := &services.MockAccountRepository{
			IncrementFailedAttemptsFunc: func(ctx context.Context, id string) (int, error) {
				return 7, nil
			},
			SetLockedUntilFunc: func(ctx context.Context, id string, until time.Time) error {
				lockCalled = true
				return nil
			},
		}
		svc := newTestLockoutService(repo, &services.MockSecurityEventRepository{}, &services.MockAuditLogRepository{})

		_, err := svc.RecordFailure(context.Background(), "acct_1", pkghttp.ClientContext{})
		require.NoError(t, err)
		assert.True(t, lockCalled)
	})
}

func TestLockoutService_RecordSuccess(t *testing.T) {
	t.Run("resets counter for unlocked account", func(t *testing.T) {
		resetCalled := false
		account := services.NewTestAccount("acct_1", "nurse@clinic.test", "Nurse")
		account.FailedLoginAttempts = 2
		repo := &services.MockAccountRepository{
			GetByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
				return account, nil
			},
			ResetFailedAttemptsFunc: func(ctx context.Context, id string) error {
				resetCalled = true
				return nil
			},
		}
		svc := newTestLockoutService(repo, &services.MockSecurityEventRepository{}, &services.MockAuditLogRepository{})

		err := svc.RecordSuccess(context.Background(), "acct_1")
		require.NoError(t, err)
		assert.True(t, resetCalled)
	})

	t.Run("refuses success against a live lock", func(t *testing.T) {
		account := services.NewTestAccountLocked("acct_1", "nurse@clinic.test", "Nurse")
		repo := &services.MockAccountRepository{
			GetByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
				return account, nil
			},
			ResetFailedAttemptsFunc: func(ctx context.Context, id string) error {
				t.Fatal("counter must not reset while locked")
				return nil
			},
		}
		svc := newTestLockoutService(repo, &services.MockSecurityEventRepository{}, &services.MockAuditLogRepository{})

		err := svc.RecordSuccess(context.Background(), "acct_1")
		assert.ErrorIs(t, err, models.ErrAccountLocked)
	})
}

func TestLockoutService_Unlock(t *testing.T) {
	resetCalled := false
	repo := &services.MockAccountRepository{
		ResetFailedAttemptsFunc: func(ctx context.Context, id string) error {
			resetCalled = true
			assert.Equal(t, "acct_1", id)
			return nil
		},
	}
	eventRepo := &services.MockSecurityEventRepository{}
	auditRepo := &services.MockAuditLogRepository{}
	svc := newTestLockoutService(repo, eventRepo, auditRepo)

	err := svc.Unlock(context.Background(), "acct_1", "admin_9", pkghttp.ClientContext{IPAddress: "10.0.0.2"})
	require.NoError(t, err)
	assert.True(t, resetCalled)

	require.Len(t, eventRepo.Created, 1)
	assert.Equal(t, models.EventTypeAccountUnlocked, eventRepo.Created[0].EventType)
	assert.Equal(t, "admin_9", eventRepo.Created[0].Metadata["actor_id"])

	// The security event itself plus the explicit unlock entry
	require.Len(t, auditRepo.Created, 2)
	unlockEntry := auditRepo.Created[1]
	assert.Equal(t, models.AuditActionUnlockAccount, unlockEntry.Action)
	require.NotNil(t, unlockEntry.AccountID)
	assert.Equal(t, "admin_9", *unlockEntry.AccountID)
	require.NotNil(t, unlockEntry.EntityID)
	assert.Equal(t, "acct_1", *unlockEntry.EntityID)
}

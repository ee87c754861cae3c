package ratelimit

import (
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	store := NewStore(1*time.Hour, logger)
	t.Cleanup(store.Stop)
	return store
}

func TestAdmit_AllowsUpToLimit(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 5; i++ {
		result := store.Admit("login:anonymous:1.2.3.4", 15*time.Minute, 5)
		assert.True(t, result.Allowed, "request %d should be allowed", i+1)
		assert.Equal(t, 5-(i+1), result.Remaining)
	}
}

func TestAdmit_DeniesOverLimit(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 5; i++ {
		store.Admit("k", 15*time.Minute, 5)
	}

	result := store.Admit("k", 15*time.Minute, 5)
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)
	assert.Equal(t, 5, result.Limit)
	assert.GreaterOrEqual(t, result.RetryAfter(time.Now()), 1)
}

func TestAdmit_WindowRolloverResetsCount(t *testing.T) {
	store := newTestStore(t)

	current := time.Now()
	store.now = func() time.Time { return current }

	for i := 0; i < 6; i++ {
		store.Admit("k", 15*time.Minute, 5)
	}
	assert.False(t, store.Admit("k", 15*time.Minute, 5).Allowed)

	// Cross the window boundary: the counter restarts at 1, not a decay
	current = current.Add(15*time.Minute + time.Second)

	result := store.Admit("k", 15*time.Minute, 5)
	assert.True(t, result.Allowed)
	assert.Equal(t, 4, result.Remaining)
}

func TestAdmit_IndependentKeys(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 6; i++ {
		store.Admit("login:anonymous:1.2.3.4", time.Minute, 5)
	}

	assert.False(t, store.Admit("login:anonymous:1.2.3.4", time.Minute, 5).Allowed)
	assert.True(t, store.Admit("login:anonymous:5.6.7.8", time.Minute, 5).Allowed)
}

func TestAdmit_ConcurrentRequestsNeverExceedLimit(t *testing.T) {
	store := newTestStore(t)

	const workers = 50
	const limit = 20

	var wg sync.WaitGroup
	allowed := make(chan struct{}, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if store.Admit("k", time.Minute, limit).Allowed {
				allowed <- struct{}{}
			}
		}()
	}

	wg.Wait()
	close(allowed)

	count := 0
	for range allowed {
		count++
	}
	assert.Equal(t, limit, count)
}

func TestSweep_PurgesExpiredWindows(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	store := NewStore(1*time.Hour, logger)
	defer store.Stop()

	current := time.Now()
	store.now = func() time.Time { return current }

	store.Admit("expired", time.Minute, 5)
	store.Admit("fresh", 3*time.Hour, 5)
	assert.Equal(t, 2, store.Len())

	// Past the window plus the grace interval for one key only
	current = current.Add(2 * time.Hour)

	removed := store.Sweep()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, store.Len())
}

func TestKey_DefaultsToAnonymous(t *testing.T) {
	assert.Equal(t, "login:anonymous:1.2.3.4", Key(PolicyLogin, "", "1.2.3.4"))
	assert.Equal(t, "api:acct-1:1.2.3.4", Key(PolicyAPI, "acct-1", "1.2.3.4"))
}

func TestPolicies(t *testing.T) {
	assert.Equal(t, 5, PolicyLogin.MaxRequests)
	assert.Equal(t, 15*time.Minute, PolicyLogin.Window)
	assert.Equal(t, 100, PolicyAPI.MaxRequests)
	assert.Equal(t, 1*time.Minute, PolicyAPI.Window)
	assert.Equal(t, 20, PolicySensitiveAPI.MaxRequests)
}

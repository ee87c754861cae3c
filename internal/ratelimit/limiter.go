// Package ratelimit implements fixed-window request counting keyed by
// purpose, subject, and client IP. Windows live in process memory; in a
// multi-process deployment the guarantee degrades to per-process limits.
package ratelimit

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Policy names a purpose together with its window and ceiling.
type Policy struct {
	Name        string
	Window      time.Duration
	MaxRequests int
}

// Predefined policies. Login is deliberately tight; the general API
// ceiling assumes a busy clinic front desk on a shared connection.
var (
	PolicyLogin        = Policy{Name: "login", Window: 15 * time.Minute, MaxRequests: 5}
	PolicyAPI          = Policy{Name: "api", Window: 1 * time.Minute, MaxRequests: 100}
	PolicySensitiveAPI = Policy{Name: "sensitive", Window: 1 * time.Minute, MaxRequests: 20}
)

// AnonymousSubject keys requests that carry no authenticated identity.
const AnonymousSubject = "anonymous"

// Result reports the outcome of an admission check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns the whole seconds a denied caller must wait,
// suitable for the Retry-After header. Never less than 1.
func (r Result) RetryAfter(now time.Time) int {
	secs := int(r.ResetAt.Sub(now).Seconds())
	if secs < 1 {
		secs = 1
	}
	return secs
}

type window struct {
	count   int
	resetAt time.Time
}

// Store holds fixed-window counters. Check-and-increment is atomic per
// key under the store mutex, so concurrent requests for the same key
// cannot exceed the ceiling. Expired windows are purged by a sweep
// goroutine independent of request traffic.
type Store struct {
	mu      sync.Mutex
	windows map[string]*window

	sweepInterval time.Duration
	sweepGrace    time.Duration
	logger        *slog.Logger
	done          chan struct{}
	stopped       chan struct{}
	stopOnce      sync.Once

	now func() time.Time // overridable for tests
}

// NewStore creates a window store and starts its sweep goroutine.
func NewStore(sweepInterval time.Duration, logger *slog.Logger) *Store {
	s := &Store{
		windows:       make(map[string]*window),
		sweepInterval: sweepInterval,
		sweepGrace:    sweepInterval,
		logger:        logger,
		done:          make(chan struct{}),
		stopped:       make(chan struct{}),
		now:           time.Now,
	}

	go s.sweepLoop()

	return s
}

// Key derives the counter key for a policy, authenticated subject, and
// client IP. Subject must be the already-authenticated identity (or
// AnonymousSubject); the limiter never inspects credentials itself.
func Key(policy Policy, subject, ip string) string {
	if subject == "" {
		subject = AnonymousSubject
	}
	return fmt.Sprintf("%s:%s:%s", policy.Name, subject, ip)
}

// Admit records one request against the key and reports whether it is
// within the window's ceiling. The first request for a key opens a
// window with count=1; crossing resetAt discards the old count entirely
// (fixed window, so callers must tolerate boundary bursts up to ~2x).
func (s *Store) Admit(key string, windowDur time.Duration, maxRequests int) Result {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{count: 0, resetAt: now.Add(windowDur)}
		s.windows[key] = w
	}

	w.count++

	remaining := maxRequests - w.count
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   w.count <= maxRequests,
		Limit:     maxRequests,
		Remaining: remaining,
		ResetAt:   w.resetAt,
	}
}

// AdmitPolicy is Admit with the key derived from a predefined policy.
func (s *Store) AdmitPolicy(policy Policy, subject, ip string) Result {
	return s.Admit(Key(policy, subject, ip), policy.Window, policy.MaxRequests)
}

// Len returns the number of live windows, expired or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// Sweep removes windows whose reset time plus the grace interval has
// passed. Keys are snapshotted first so the lock is never held across
// the full traversal.
func (s *Store) Sweep() int {
	now := s.now()
	cutoff := now.Add(-s.sweepGrace)

	s.mu.Lock()
	keys := make([]string, 0, len(s.windows))
	for key := range s.windows {
		keys = append(keys, key)
	}
	s.mu.Unlock()

	removed := 0
	for _, key := range keys {
		s.mu.Lock()
		if w, ok := s.windows[key]; ok && w.resetAt.Before(cutoff) {
			delete(s.windows, key)
			removed++
		}
		s.mu.Unlock()
	}

	return removed
}

func (s *Store) sweepLoop() {
	defer close(s.stopped)

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := s.Sweep(); removed > 0 && s.logger != nil {
				s.logger.Debug("rate limit windows swept", slog.Int("removed", removed))
			}
		case <-s.done:
			return
		}
	}
}

// Stop terminates the sweep goroutine. Safe to call more than once.
func (s *Store) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
	<-s.stopped
}

package models

import "time"

// LoginAttempt is an immutable, append-only record of a single
// authentication attempt. It is the source of truth for brute-force
// detection; rows are never mutated, only pruned once ExpiresAt passes.
type LoginAttempt struct {
	ID            string     `db:"id"`
	Email         string     `db:"email"`
	IPAddress     string     `db:"ip_address"`
	UserAgent     string     `db:"user_agent"`
	Success       bool       `db:"success"`
	FailureReason *string    `db:"failure_reason"`
	CreatedAt     time.Time  `db:"created_at"`
	ExpiresAt     time.Time  `db:"expires_at"`
}

// IPFailureCount aggregates failed attempts by source IP over a window.
type IPFailureCount struct {
	IPAddress string
	Count     int
}

package models

import "time"

// Session represents an authenticated browser session.
// Only the SHA-256 hash of the opaque token is stored server-side;
// one account may hold multiple concurrent sessions.
type Session struct {
	ID             string
	AccountID      string
	TokenHash      string
	IPAddress      string
	UserAgent      string
	IsActive       bool
	CreatedAt      time.Time
	LastActivityAt time.Time
}

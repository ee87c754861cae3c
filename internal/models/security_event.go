package models

import "time"

// Security event severities
const (
	SeverityInfo     = "INFO"
	SeverityWarning  = "WARNING"
	SeverityError    = "ERROR"
	SeverityCritical = "CRITICAL"
)

// Security event types
const (
	EventTypeLoginFailed       = "LOGIN_FAILED"
	EventTypeLoginSuccess      = "LOGIN_SUCCESS"
	EventTypeAccountLockedOut  = "ACCOUNT_LOCKED_OUT"
	EventTypeAccountUnlocked   = "ACCOUNT_UNLOCKED"
	EventTypeMFASetupStarted   = "MFA_SETUP_STARTED"
	EventTypeMFAEnabled        = "MFA_ENABLED"
	EventTypeMFADisabled       = "MFA_DISABLED"
	EventTypeMFADisableFailed  = "MFA_DISABLE_FAILED"
	EventTypeMFAVerifyFailed   = "MFA_VERIFY_FAILED"
	EventTypeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	EventTypeCSRFRejected      = "CSRF_REJECTED"
)

// SecurityEvent is an append-only record in the security event stream.
// Resolved is the only mutable field; operators set it via the admin
// workflow once an event has been reviewed.
type SecurityEvent struct {
	ID          string        `db:"id"`
	EventType   string        `db:"event_type"`
	AccountID   *string       `db:"account_id"`
	Severity    string        `db:"severity"`
	Description string        `db:"description"`
	IPAddress   *string       `db:"ip_address"`
	UserAgent   *string       `db:"user_agent"`
	Metadata    EventMetadata `db:"metadata"`
	Resolved    bool          `db:"resolved"`
	CreatedAt   time.Time     `db:"created_at"`
}

// SecurityEventFilter narrows security event queries for the admin surface.
type SecurityEventFilter struct {
	Severity  string
	EventType string
	Resolved  *bool
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

// SecurityEventStats aggregates event counts for the dashboard.
type SecurityEventStats struct {
	Total      int64
	Unresolved int64
	BySeverity map[string]int64
}

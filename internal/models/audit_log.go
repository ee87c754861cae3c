package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Audit actions
const (
	AuditActionLogin           = "login"
	AuditActionLogout          = "logout"
	AuditActionUnlockAccount   = "unlock_account"
	AuditActionMFASetup        = "mfa_setup"
	AuditActionMFAVerify       = "mfa_verify"
	AuditActionMFADisable      = "mfa_disable"
	AuditActionSecurityEvent   = "security_event"
	AuditActionResolveEvent    = "resolve_security_event"
	AuditActionMonitorScan     = "monitor_scan"
)

// Audit entity types
const (
	AuditEntityAccount       = "account"
	AuditEntitySession       = "session"
	AuditEntitySecurityEvent = "security_event"
)

// AuditLog is a write-once compliance record of a privileged action.
type AuditLog struct {
	ID         string        `db:"id"`
	AccountID  *string       `db:"account_id"`
	Action     string        `db:"action"`
	EntityType string        `db:"entity_type"`
	EntityID   *string       `db:"entity_id"`
	Changes    EventMetadata `db:"changes"`
	Severity   string        `db:"severity"`
	IPAddress  *string       `db:"ip_address"`
	UserAgent  *string       `db:"user_agent"`
	CreatedAt  time.Time     `db:"created_at"`
}

// EventMetadata holds additional context for audit and security events,
// stored as JSONB.
type EventMetadata map[string]interface{}

// Scan implements sql.Scanner for JSONB
func (m *EventMetadata) Scan(value interface{}) error {
	if value == nil {
		*m = make(EventMetadata)
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return ErrBadRequest
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(bytes, &decoded); err != nil {
		return err
	}
	*m = EventMetadata(decoded)
	return nil
}

// Value implements driver.Valuer for JSONB
func (m EventMetadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

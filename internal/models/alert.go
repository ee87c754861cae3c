package models

// Alert types emitted by the suspicious activity monitor
const (
	AlertBruteForceAttempt     = "BRUTE_FORCE_ATTEMPT"
	AlertAccountCompromiseRisk = "ACCOUNT_COMPROMISE_RISK"
	AlertAccountLocked         = "ACCOUNT_LOCKED"
	AlertPasswordExpired       = "PASSWORD_EXPIRED"
)

// Alert severities
const (
	AlertSeverityHigh   = "HIGH"
	AlertSeverityMedium = "MEDIUM"
	AlertSeverityLow    = "LOW"
)

// Alert is pure data produced by a monitor scan. Persistence (as a
// SecurityEvent) and downstream notification are the caller's concern.
type Alert struct {
	Type        string
	Severity    string
	AccountID   *string
	IPAddress   *string
	Description string
	Metadata    EventMetadata
}

// EventSeverity maps an alert severity onto the security event scale.
func (a Alert) EventSeverity() string {
	switch a.Severity {
	case AlertSeverityHigh:
		return SeverityError
	case AlertSeverityMedium:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

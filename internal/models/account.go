package models

import (
	"time"
)

// Account statuses
const (
	AccountStatusActive      = "active"
	AccountStatusDeactivated = "deactivated"
)

// Account is the identity record gated by the security core.
// Accounts are never deleted, only deactivated.
type Account struct {
	ID                  string
	Email               string
	Name                string
	PasswordHash        string
	Role                string // "staff", "admin"
	Status              string // "active", "deactivated"
	MFAEnabled          bool
	MFASecretEncrypted  []byte     // AES-256-GCM ciphertext, nil when MFA was never set up
	MFASecretNonce      []byte
	MFAEnrolledAt       *time.Time // Set when the first code verifies
	MFALastUsedStep     *int64     // Last accepted TOTP time step, for replay rejection
	FailedLoginAttempts int
	LockedUntil         *time.Time
	PasswordChangedAt   *time.Time
	PasswordExpiresAt   *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// IsActive reports whether the account may authenticate at all.
func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

// IsLocked reports whether a lockout is currently in effect.
func (a *Account) IsLocked(now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}

// MFAPending reports whether a secret has been provisioned but not yet
// proven with a valid code.
func (a *Account) MFAPending() bool {
	return !a.MFAEnabled && len(a.MFASecretEncrypted) > 0
}

// PasswordIsExpired reports whether the account's password has aged out.
func (a *Account) PasswordIsExpired(now time.Time) bool {
	return a.PasswordExpiresAt != nil && now.After(*a.PasswordExpiresAt)
}

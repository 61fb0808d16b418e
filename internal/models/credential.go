package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CredentialLifetime is the fixed validity window for a PIN credential.
// There is no rotation protocol beyond this fixed-duration expiry.
const CredentialLifetime = 45 * 24 * time.Hour

// Credential status bands, derived from days remaining until/since expiry.
const (
	CredentialStatusValid    = "valid"
	CredentialStatusWarning  = "warning"
	CredentialStatusReadOnly = "read_only"
	CredentialStatusLocked   = "locked"
	CredentialStatusArchived = "archived"
)

// Credential holds the verifiers for one profile. One credential per user;
// a PIN or pattern reset replaces the row instead of mutating it in place.
type Credential struct {
	ID     uuid.UUID
	UserID uuid.UUID

	// PINVerifier is a PHC-encoded argon2id string; algorithm and cost
	// parameters travel inside the encoding.
	PINVerifier string

	// Pattern verifier fields. Empty PatternHash means no pattern enrolled.
	PatternHash       string
	PatternSalt       string
	PatternPointCount int

	// TOTP secret, AES-256-GCM encrypted under the device key.
	// Empty TOTPSecret means TOTP is not enrolled.
	TOTPSecret     []byte
	TOTPNonce      []byte
	TOTPLastUsedAt *time.Time

	IssuedAt  time.Time
	ExpiresAt time.Time
}

// HasPattern reports whether a pattern verifier is enrolled.
func (c *Credential) HasPattern() bool {
	return c.PatternHash != ""
}

// HasTOTP reports whether a TOTP secret is enrolled.
func (c *Credential) HasTOTP() bool {
	return len(c.TOTPSecret) > 0
}

// RequiresMFA reports whether a second factor must be verified before a
// session is fully authenticated.
func (c *Credential) RequiresMFA() bool {
	return c.HasPattern() || c.HasTOTP()
}

// CredentialStatus is the advisory expiry band for a credential. Bands are
// status, not errors: callers decide how to surface them.
type CredentialStatus struct {
	Band          string
	DaysRemaining int
	Message       string
}

// Status computes the expiry band at the given instant.
//
//	>7 days remaining   valid (no message)
//	1..7                warning
//	0..-7               read-only
//	-7..-15             locked
//	older               archived
func (c *Credential) Status(now time.Time) CredentialStatus {
	days := int(c.ExpiresAt.Sub(now).Hours() / 24)
	switch {
	case days > 7:
		return CredentialStatus{Band: CredentialStatusValid, DaysRemaining: days}
	case days >= 1:
		return CredentialStatus{
			Band:          CredentialStatusWarning,
			DaysRemaining: days,
			Message:       fmt.Sprintf("Your PIN expires in %d days. Set a new PIN to keep full access.", days),
		}
	case days >= -7:
		return CredentialStatus{
			Band:          CredentialStatusReadOnly,
			DaysRemaining: days,
			Message:       "Your PIN has expired. The profile is read-only until a new PIN is set.",
		}
	case days >= -15:
		return CredentialStatus{
			Band:          CredentialStatusLocked,
			DaysRemaining: days,
			Message:       "Your PIN expired over a week ago. The profile is locked until a new PIN is set.",
		}
	default:
		return CredentialStatus{
			Band:          CredentialStatusArchived,
			DaysRemaining: days,
			Message:       "This profile has been archived. Progress data is kept and will still sync.",
		}
	}
}

// RecoveryCode is a single-use backup code. Each code is hashed with its
// own salt so codes cannot be cross-checked against each other.
type RecoveryCode struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	CodeHash string
	Salt     string
	Used     bool
	UsedAt   *time.Time
}

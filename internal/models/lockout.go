package models

import (
	"time"

	"github.com/google/uuid"
)

// AttemptContext identifies which credential a failed attempt was against.
// The PIN and MFA contexts keep independent counters and budgets.
type AttemptContext string

const (
	AttemptContextPIN AttemptContext = "pin"
	AttemptContextMFA AttemptContext = "mfa"
)

// Attempt budgets per context.
const (
	PINMaxAttempts    = 5
	PINLockoutWindow  = 30 * time.Minute
	MFAMaxAttempts    = 3
	MFALockoutWindow  = 15 * time.Minute
)

// MaxAttempts returns the failed-attempt budget for the context.
func (c AttemptContext) MaxAttempts() int {
	if c == AttemptContextMFA {
		return MFAMaxAttempts
	}
	return PINMaxAttempts
}

// LockoutWindow returns the lockout duration for the context.
func (c AttemptContext) LockoutWindow() time.Duration {
	if c == AttemptContextMFA {
		return MFALockoutWindow
	}
	return PINLockoutWindow
}

// LockoutState tracks consecutive failures for one (user, context) pair.
// It resets to (0, nil) only on explicit success or after LockedUntil
// elapses.
type LockoutState struct {
	UserID         uuid.UUID
	Context        AttemptContext
	FailedAttempts int
	LockedUntil    *time.Time
}

// IsLocked reports whether a lockout is in force at the given instant.
func (s *LockoutState) IsLocked(now time.Time) bool {
	return s.LockedUntil != nil && now.Before(*s.LockedUntil)
}

// LockoutStatus is the answer to a lockout query.
type LockoutStatus struct {
	IsLocked          bool
	RemainingAttempts int
	LockedUntil       *time.Time
	RemainingMinutes  int
}

// AttemptResult is the answer to recording a failed attempt.
type AttemptResult struct {
	IsLocked          bool
	RemainingAttempts int
	LockoutUntil      *time.Time
}

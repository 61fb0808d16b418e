package models

import (
	"time"

	"github.com/google/uuid"
)

// MFA methods recorded on a session once the second factor succeeds.
const (
	MFAMethodPattern = "pattern"
	MFAMethodTOTP    = "totp"
)

// Session lifecycle constants. The checks built on these are pure
// predicates evaluated on activity/visibility events, not background
// timers.
const (
	SessionIdleTimeout   = 30 * time.Minute
	SessionMaxDuration   = 8 * time.Hour
	SessionHiddenTimeout = 5 * time.Minute

	// ActivityWriteInterval coalesces last-activity updates so a burst of
	// UI events produces at most one storage write per interval.
	ActivityWriteInterval = 30 * time.Second
)

// Session is one authentication lifetime for a profile. Many sessions may
// exist per user over time; at most one is logically active (most recent,
// unexpired, IsActive).
type Session struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	PINVerified    bool
	MFAVerified    bool
	MFAMethod      string
	CreatedAt      time.Time
	ExpiresAt      time.Time
	LastActivityAt time.Time
	// HiddenAt is set while the UI tab is hidden, cleared when visible.
	HiddenAt *time.Time
	// IsActive transitions only via explicit lock/unlock/end, never
	// implicitly.
	IsActive bool
}

// IsFullyAuthenticated reports whether the session has cleared every
// configured factor.
func (s *Session) IsFullyAuthenticated() bool {
	return s.IsActive && s.PINVerified && s.MFAVerified
}

// IsExpired reports whether the session passed its hard expiry.
func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// ShouldLock reports whether an active session must transition to Locked:
// idle past the idle timeout, alive past the maximum duration, or hidden
// past the hidden timeout.
func (s *Session) ShouldLock(now time.Time) bool {
	if !s.IsActive {
		return false
	}
	if now.Sub(s.LastActivityAt) > SessionIdleTimeout {
		return true
	}
	if now.Sub(s.CreatedAt) > SessionMaxDuration {
		return true
	}
	if s.HiddenAt != nil && now.Sub(*s.HiddenAt) > SessionHiddenTimeout {
		return true
	}
	return false
}

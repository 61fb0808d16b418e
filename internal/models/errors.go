package models

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrInternalServer = errors.New("internal server error")

	// Authentication errors
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrSessionNotActive     = errors.New("session is not active")
	ErrSessionExpired       = errors.New("session has expired")
	ErrMFANotConfigured     = errors.New("no mfa method configured")
	ErrProfileArchived      = errors.New("profile is archived")
)

// ValidationError reports a malformed PIN, pattern, or recovery code shape.
// It is raised before any crypto or storage work happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError creates a ValidationError for the given field
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// LockoutError is returned when authentication is refused because the
// attempt budget for a context is exhausted. The counter is not mutated
// while a lockout is in force.
type LockoutError struct {
	Context     AttemptContext
	LockedUntil time.Time
}

func (e *LockoutError) Error() string {
	remaining := time.Until(e.LockedUntil).Round(time.Minute)
	if remaining < time.Minute {
		remaining = time.Minute
	}
	return fmt.Sprintf("%s attempts locked for %d more minutes", e.Context, int(remaining.Minutes()))
}

// DecryptionError is deliberately opaque: a wrong password and a tampered
// ciphertext are indistinguishable to the caller, so decryption cannot be
// used as a password oracle.
type DecryptionError struct{}

func (e *DecryptionError) Error() string {
	return "decryption failed"
}

// StorageError wraps a repository failure. The core never auto-retries;
// callers retry the whole logical operation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types for audit logging
const (
	AuditEventSessionCreated  = "session_created"
	AuditEventSessionLocked   = "session_locked"
	AuditEventSessionUnlocked = "session_unlocked"
	AuditEventSessionEnded    = "session_ended"
	AuditEventPINFailed       = "pin_failed"
	AuditEventMFAFailed       = "mfa_failed"
	AuditEventAccountLocked   = "account_locked"
	AuditEventMFAVerified     = "mfa_verified"
	AuditEventLogout          = "logout"
)

// AuditLog is one append-only audit entry. Writes are best-effort and must
// never block the primary operation they describe.
type AuditLog struct {
	LogID     string // ULID
	UserID    uuid.UUID
	EventType string
	Timestamp time.Time
	Details   AuditDetails
}

// AuditDetails holds additional context for audit events
type AuditDetails map[string]interface{}

// Scan implements sql.Scanner for a JSON column
func (ad *AuditDetails) Scan(value interface{}) error {
	if value == nil {
		*ad = make(AuditDetails)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return ErrInternalServer
	}

	var m map[string]interface{}
	if err := json.Unmarshal(bytes, &m); err != nil {
		return err
	}
	*ad = AuditDetails(m)
	return nil
}

// Value implements driver.Valuer for a JSON column
func (ad AuditDetails) Value() (driver.Value, error) {
	if ad == nil {
		return nil, nil
	}
	return json.Marshal(ad)
}

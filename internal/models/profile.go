package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile statuses. Expired credentials archive the owning profile rather
// than deleting it, so its progress data stays eligible for sync.
const (
	ProfileStatusActive   = "active"
	ProfileStatusArchived = "archived"
)

// Profile is one learner identity on the device. A device typically holds
// several profiles, each with its own credential and ledger chain.
type Profile struct {
	ID          uuid.UUID
	DisplayName string
	Status      string
	CreatedAt   time.Time
	ArchivedAt  *time.Time
}

// IsArchived reports whether the profile has been archived by a credential
// expiry sweep.
func (p *Profile) IsArchived() bool {
	return p.Status == ProfileStatusArchived
}

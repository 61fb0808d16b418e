package models

import (
	"time"

	"github.com/google/uuid"
)

// ProgressRecord is one append-only entry in a user's hash chain. Records
// are never mutated after signing; SequenceNumber is strictly increasing
// per user starting at 1, and PreviousHash commits to the predecessor's
// canonical bytes.
type ProgressRecord struct {
	ID               string // ULID, encodes insertion order
	UserID           uuid.UUID
	CourseID         string
	ModuleID         string
	LessonID         string
	CompletedAt      time.Time
	Score            *float64
	TimeSpentSeconds int
	SequenceNumber   int64
	PreviousHash     string // empty for the first record
	Signature        string
}

// QuizAttemptRecord is structurally analogous to a ProgressRecord but keyed
// by attempt id instead of a chained sequence. It is still signed.
type QuizAttemptRecord struct {
	ID               string // ULID
	AttemptID        uuid.UUID
	UserID           uuid.UUID
	CourseID         string
	QuizID           string
	StartedAt        time.Time
	CompletedAt      time.Time
	Score            float64
	MaxScore         float64
	TimeSpentSeconds int
	Signature        string
}

// Sync payload kinds accepted by the outbox.
const (
	SyncKindProgress    = "progress_record"
	SyncKindQuizAttempt = "quiz_attempt"
)

// SyncOutboxEntry is a signed payload queued for the hub. The transport
// that drains the queue lives outside this core.
type SyncOutboxEntry struct {
	ID         string // ULID, preserves enqueue order
	UserID     uuid.UUID
	Kind       string
	Payload    []byte
	EnqueuedAt time.Time
	SentAt     *time.Time
}

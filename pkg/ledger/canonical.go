// Package ledger implements the hash-chained, HMAC-signed progress ledger.
//
// The canonical byte encoding below is a cross-system contract: the hub
// re-derives the same bytes from synced records to re-run verification, so
// the field order is explicit and fixed. Never replace this with a struct
// or map serialization whose field order the language runtime picks.
package ledger

import (
	"strconv"
	"strings"
	"time"

	"github.com/lanternworks/lantern-core/internal/models"
)

// canonicalVersion is bumped only with a coordinated hub rollout.
const canonicalVersion = "v1"

// nullToken encodes an absent optional field.
const nullToken = "null"

// CanonicalProgress encodes a progress record into its canonical bytes.
// Field order is fixed; timestamps are RFC3339Nano in UTC; an absent score
// is the literal null token.
func CanonicalProgress(rec *models.ProgressRecord) []byte {
	prev := rec.PreviousHash
	if prev == "" {
		prev = nullToken
	}

	fields := []string{
		canonicalVersion,
		"user=" + rec.UserID.String(),
		"course=" + rec.CourseID,
		"module=" + rec.ModuleID,
		"lesson=" + rec.LessonID,
		"completed=" + canonicalTime(rec.CompletedAt),
		"score=" + canonicalScore(rec.Score),
		"time=" + strconv.Itoa(rec.TimeSpentSeconds),
		"seq=" + strconv.FormatInt(rec.SequenceNumber, 10),
		"prev=" + prev,
	}
	return []byte(strings.Join(fields, "|"))
}

// CanonicalQuizAttempt encodes a quiz attempt record into its canonical
// bytes. Attempts are keyed by attempt id and carry no chain linkage.
func CanonicalQuizAttempt(rec *models.QuizAttemptRecord) []byte {
	fields := []string{
		canonicalVersion,
		"attempt=" + rec.AttemptID.String(),
		"user=" + rec.UserID.String(),
		"course=" + rec.CourseID,
		"quiz=" + rec.QuizID,
		"started=" + canonicalTime(rec.StartedAt),
		"completed=" + canonicalTime(rec.CompletedAt),
		"score=" + formatScore(rec.Score),
		"max_score=" + formatScore(rec.MaxScore),
		"time=" + strconv.Itoa(rec.TimeSpentSeconds),
	}
	return []byte(strings.Join(fields, "|"))
}

func canonicalTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func canonicalScore(score *float64) string {
	if score == nil {
		return nullToken
	}
	return formatScore(*score)
}

// formatScore uses the shortest round-tripping decimal form, which both
// sides derive identically.
func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'g', -1, 64)
}

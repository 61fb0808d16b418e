package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lanternworks/lantern-core/internal/models"
	"github.com/lanternworks/lantern-core/internal/repositories"
	"github.com/lanternworks/lantern-core/pkg/ledger"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// LedgerService appends signed records to the per-user progress ledger
// and verifies chain integrity. Every append also enqueues the record on
// the sync outbox in the same transaction, so a record and its outbound
// copy either both exist or neither does.
type LedgerService struct {
	progressRepo repositories.ProgressRepository
	quizRepo     repositories.QuizAttemptRepository
	masterKey    []byte
	logger       *slog.Logger
	now          func() time.Time
}

// NewLedgerService creates a new ledger service
func NewLedgerService(
	progressRepo repositories.ProgressRepository,
	quizRepo repositories.QuizAttemptRepository,
	masterKey []byte,
	logger *slog.Logger,
) *LedgerService {
	return &LedgerService{
		progressRepo: progressRepo,
		quizRepo:     quizRepo,
		masterKey:    masterKey,
		logger:       logger,
		now:          time.Now,
	}
}

// ProgressInput carries one lesson completion to append.
type ProgressInput struct {
	CourseID         string
	ModuleID         string
	LessonID         string
	Score            *float64
	TimeSpentSeconds int
}

// QuizAttemptInput carries one finished quiz attempt to record.
type QuizAttemptInput struct {
	AttemptID        uuid.UUID
	CourseID         string
	QuizID           string
	StartedAt        time.Time
	CompletedAt      time.Time
	Score            float64
	MaxScore         float64
	TimeSpentSeconds int
}

// progressPayload is the outbox wire form of a progress record.
type progressPayload struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	CourseID         string    `json:"course_id"`
	ModuleID         string    `json:"module_id"`
	LessonID         string    `json:"lesson_id"`
	CompletedAt      time.Time `json:"completed_at"`
	Score            *float64  `json:"score"`
	TimeSpentSeconds int       `json:"time_spent_seconds"`
	SequenceNumber   int64     `json:"sequence_number"`
	PreviousHash     string    `json:"previous_hash,omitempty"`
	Signature        string    `json:"signature"`
}

type quizAttemptPayload struct {
	ID               string    `json:"id"`
	AttemptID        string    `json:"attempt_id"`
	UserID           string    `json:"user_id"`
	CourseID         string    `json:"course_id"`
	QuizID           string    `json:"quiz_id"`
	StartedAt        time.Time `json:"started_at"`
	CompletedAt      time.Time `json:"completed_at"`
	Score            float64   `json:"score"`
	MaxScore         float64   `json:"max_score"`
	TimeSpentSeconds int       `json:"time_spent_seconds"`
	Signature        string    `json:"signature"`
}

// AppendProgress extends the user's hash chain with one lesson
// completion. The sequence number, previous-hash linkage, and signature
// are computed against the chain head inside the append transaction, so
// concurrent appends for the same user serialize cleanly.
func (s *LedgerService) AppendProgress(ctx context.Context, userID uuid.UUID, input ProgressInput) (*models.ProgressRecord, error) {
	if err := validateLedgerIDs(input.CourseID, input.ModuleID, input.LessonID); err != nil {
		return nil, err
	}
	if input.TimeSpentSeconds < 0 {
		return nil, &models.ValidationError{Field: "time_spent_seconds", Reason: "must not be negative"}
	}

	userKey, err := ledger.DeriveUserKey(s.masterKey, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to derive signing key: %w", err)
	}

	rec, err := s.progressRepo.Append(ctx, userID, func(last *models.ProgressRecord) (*models.ProgressRecord, *models.SyncOutboxEntry, error) {
		rec := &models.ProgressRecord{
			ID:               ulid.Make().String(),
			UserID:           userID,
			CourseID:         input.CourseID,
			ModuleID:         input.ModuleID,
			LessonID:         input.LessonID,
			CompletedAt:      s.now().UTC(),
			Score:            input.Score,
			TimeSpentSeconds: input.TimeSpentSeconds,
			SequenceNumber:   1,
		}
		if last != nil {
			rec.SequenceNumber = last.SequenceNumber + 1
			rec.PreviousHash = ledger.HashProgress(last)
		}
		rec.Signature = ledger.SignProgress(rec, userKey)

		outbox, err := s.outboxEntry(userID, models.SyncKindProgress, progressPayload{
			ID:               rec.ID,
			UserID:           rec.UserID.String(),
			CourseID:         rec.CourseID,
			ModuleID:         rec.ModuleID,
			LessonID:         rec.LessonID,
			CompletedAt:      rec.CompletedAt,
			Score:            rec.Score,
			TimeSpentSeconds: rec.TimeSpentSeconds,
			SequenceNumber:   rec.SequenceNumber,
			PreviousHash:     rec.PreviousHash,
			Signature:        rec.Signature,
		})
		if err != nil {
			return nil, nil, err
		}

		return rec, outbox, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "progress record appended",
		slog.Any("user_id", userID),
		slog.String("record_id", rec.ID),
		slog.Int64("sequence", rec.SequenceNumber))

	return rec, nil
}

// AppendQuizAttempt records one finished quiz attempt. Attempts are
// standalone signed records, not chain links. Re-submitting an attempt id
// that already exists returns the stored record unchanged.
func (s *LedgerService) AppendQuizAttempt(ctx context.Context, userID uuid.UUID, input QuizAttemptInput) (*models.QuizAttemptRecord, error) {
	if input.CourseID == "" {
		return nil, &models.ValidationError{Field: "course_id", Reason: "must not be empty"}
	}
	if input.QuizID == "" {
		return nil, &models.ValidationError{Field: "quiz_id", Reason: "must not be empty"}
	}
	if input.MaxScore <= 0 {
		return nil, &models.ValidationError{Field: "max_score", Reason: "must be positive"}
	}
	if input.Score < 0 || input.Score > input.MaxScore {
		return nil, &models.ValidationError{Field: "score", Reason: "must be between 0 and max_score"}
	}
	if input.CompletedAt.Before(input.StartedAt) {
		return nil, &models.ValidationError{Field: "completed_at", Reason: "must not precede started_at"}
	}

	userKey, err := ledger.DeriveUserKey(s.masterKey, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to derive signing key: %w", err)
	}

	rec := &models.QuizAttemptRecord{
		ID:               ulid.Make().String(),
		AttemptID:        input.AttemptID,
		UserID:           userID,
		CourseID:         input.CourseID,
		QuizID:           input.QuizID,
		StartedAt:        input.StartedAt.UTC(),
		CompletedAt:      input.CompletedAt.UTC(),
		Score:            input.Score,
		MaxScore:         input.MaxScore,
		TimeSpentSeconds: input.TimeSpentSeconds,
	}
	rec.Signature = ledger.SignQuizAttempt(rec, userKey)

	outbox, err := s.outboxEntry(userID, models.SyncKindQuizAttempt, quizAttemptPayload{
		ID:               rec.ID,
		AttemptID:        rec.AttemptID.String(),
		UserID:           rec.UserID.String(),
		CourseID:         rec.CourseID,
		QuizID:           rec.QuizID,
		StartedAt:        rec.StartedAt,
		CompletedAt:      rec.CompletedAt,
		Score:            rec.Score,
		MaxScore:         rec.MaxScore,
		TimeSpentSeconds: rec.TimeSpentSeconds,
		Signature:        rec.Signature,
	})
	if err != nil {
		return nil, err
	}

	if err := s.quizRepo.Create(ctx, rec, outbox); err != nil {
		if errors.Is(err, models.ErrConflict) {
			return s.quizRepo.GetByAttemptID(ctx, input.AttemptID)
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "quiz attempt recorded",
		slog.Any("user_id", userID),
		slog.Any("attempt_id", input.AttemptID),
		slog.String("quiz_id", input.QuizID))

	return rec, nil
}

// VerifyUserChain recomputes the user's entire chain and returns the ids
// of every record that fails signature, linkage, or sequence checks. An
// empty result means the ledger is intact.
func (s *LedgerService) VerifyUserChain(ctx context.Context, userID uuid.UUID) ([]string, error) {
	records, err := s.progressRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	userKey, err := ledger.DeriveUserKey(s.masterKey, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to derive signing key: %w", err)
	}

	invalid := ledger.VerifyChain(records, userKey)
	if len(invalid) > 0 {
		s.logger.WarnContext(ctx, "ledger verification found invalid records",
			slog.Any("user_id", userID),
			slog.Int("invalid_count", len(invalid)))
	}

	return invalid, nil
}

// ListProgress returns the user's chain in sequence order.
func (s *LedgerService) ListProgress(ctx context.Context, userID uuid.UUID) ([]*models.ProgressRecord, error) {
	return s.progressRepo.ListByUser(ctx, userID)
}

// ListCourseProgress returns the user's records for one course.
func (s *LedgerService) ListCourseProgress(ctx context.Context, userID uuid.UUID, courseID string) ([]*models.ProgressRecord, error) {
	return s.progressRepo.ListByUserAndCourse(ctx, userID, courseID)
}

// ListQuizAttempts returns the user's quiz attempts for one course.
func (s *LedgerService) ListQuizAttempts(ctx context.Context, userID uuid.UUID, courseID string) ([]*models.QuizAttemptRecord, error) {
	return s.quizRepo.ListByUserAndCourse(ctx, userID, courseID)
}

func (s *LedgerService) outboxEntry(userID uuid.UUID, kind string, payload any) (*models.SyncOutboxEntry, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode sync payload: %w", err)
	}
	return &models.SyncOutboxEntry{
		ID:         ulid.Make().String(),
		UserID:     userID,
		Kind:       kind,
		Payload:    raw,
		EnqueuedAt: s.now().UTC(),
	}, nil
}

func validateLedgerIDs(courseID, moduleID, lessonID string) error {
	switch {
	case courseID == "":
		return &models.ValidationError{Field: "course_id", Reason: "must not be empty"}
	case moduleID == "":
		return &models.ValidationError{Field: "module_id", Reason: "must not be empty"}
	case lessonID == "":
		return &models.ValidationError{Field: "lesson_id", Reason: "must not be empty"}
	}
	return nil
}

package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lanternworks/lantern-core/internal/database"
	"github.com/lanternworks/lantern-core/internal/models"
	"github.com/google/uuid"
)

// QuizAttemptRepository defines quiz-attempt persistence operations.
// Create inserts the attempt and its outbox entry in one transaction.
type QuizAttemptRepository interface {
	Create(ctx context.Context, rec *models.QuizAttemptRecord, outbox *models.SyncOutboxEntry) error
	GetByAttemptID(ctx context.Context, attemptID uuid.UUID) (*models.QuizAttemptRecord, error)
	ListByUserAndCourse(ctx context.Context, userID uuid.UUID, courseID string) ([]*models.QuizAttemptRecord, error)
}

type quizAttemptRepoImpl struct {
	db *database.DB
}

// NewQuizAttemptRepository creates a new quiz attempt repository
func NewQuizAttemptRepository(db *database.DB) QuizAttemptRepository {
	return &quizAttemptRepoImpl{db: db}
}

func (r *quizAttemptRepoImpl) Create(ctx context.Context, rec *models.QuizAttemptRecord, outbox *models.SyncOutboxEntry) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO quiz_attempts
				(id, attempt_id, user_id, course_id, quiz_id, started_at, completed_at,
				 score, max_score, time_spent_seconds, signature)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := tx.ExecContext(ctx, query,
			rec.ID, rec.AttemptID.String(), rec.UserID.String(), rec.CourseID, rec.QuizID,
			rec.StartedAt, rec.CompletedAt, rec.Score, rec.MaxScore,
			rec.TimeSpentSeconds, rec.Signature)
		if err != nil {
			return fmt.Errorf("failed to store quiz attempt: %w", database.MapStorageError(err))
		}

		if outbox != nil {
			return insertOutboxEntry(ctx, tx, outbox)
		}
		return nil
	})
}

func (r *quizAttemptRepoImpl) GetByAttemptID(ctx context.Context, attemptID uuid.UUID) (*models.QuizAttemptRecord, error) {
	query := quizAttemptSelect + ` WHERE attempt_id = ?`

	rec, err := scanQuizAttempt(r.db.SQL.QueryRowContext(ctx, query, attemptID.String()))
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *quizAttemptRepoImpl) ListByUserAndCourse(ctx context.Context, userID uuid.UUID, courseID string) ([]*models.QuizAttemptRecord, error) {
	query := quizAttemptSelect + ` WHERE user_id = ? AND course_id = ? ORDER BY id`

	rows, err := r.db.SQL.QueryContext(ctx, query, userID.String(), courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list quiz attempts: %w", database.MapStorageError(err))
	}
	defer rows.Close()

	records := make([]*models.QuizAttemptRecord, 0)
	for rows.Next() {
		rec, err := scanQuizAttempt(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

const quizAttemptSelect = `
	SELECT id, attempt_id, user_id, course_id, quiz_id, started_at, completed_at,
	       score, max_score, time_spent_seconds, signature
	FROM quiz_attempts`

func scanQuizAttempt(row rowScanner) (*models.QuizAttemptRecord, error) {
	var rec models.QuizAttemptRecord
	err := row.Scan(
		&rec.ID, &rec.AttemptID, &rec.UserID, &rec.CourseID, &rec.QuizID,
		&rec.StartedAt, &rec.CompletedAt, &rec.Score, &rec.MaxScore,
		&rec.TimeSpentSeconds, &rec.Signature,
	)
	if err != nil {
		return nil, database.MapStorageError(err)
	}
	return &rec, nil
}

package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lanternworks/lantern-core/internal/database"
	"github.com/lanternworks/lantern-core/internal/models"
	"github.com/google/uuid"
)

// ProgressRepository defines progress-ledger persistence operations.
//
// Append runs the whole read-last/build/insert/enqueue sequence inside one
// transaction: the previousHash linkage is a read-modify-write that must
// not interleave with another append for the same user.
type ProgressRepository interface {
	Append(ctx context.Context, userID uuid.UUID,
		build func(last *models.ProgressRecord) (*models.ProgressRecord, *models.SyncOutboxEntry, error)) (*models.ProgressRecord, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.ProgressRecord, error)
	ListByUserAndCourse(ctx context.Context, userID uuid.UUID, courseID string) ([]*models.ProgressRecord, error)
}

type progressRepoImpl struct {
	db *database.DB
}

// NewProgressRepository creates a new progress repository
func NewProgressRepository(db *database.DB) ProgressRepository {
	return &progressRepoImpl{db: db}
}

func (r *progressRepoImpl) Append(ctx context.Context, userID uuid.UUID,
	build func(last *models.ProgressRecord) (*models.ProgressRecord, *models.SyncOutboxEntry, error)) (*models.ProgressRecord, error) {

	var appended *models.ProgressRecord
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		last, err := lastProgressRecord(ctx, tx, userID)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			return err
		}

		rec, outbox, err := build(last)
		if err != nil {
			return err
		}

		query := `
			INSERT INTO progress_records
				(id, user_id, course_id, module_id, lesson_id, completed_at,
				 score, time_spent_seconds, sequence_number, previous_hash, signature)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		if _, err := tx.ExecContext(ctx, query,
			rec.ID, rec.UserID.String(), rec.CourseID, rec.ModuleID, rec.LessonID,
			rec.CompletedAt, rec.Score, rec.TimeSpentSeconds,
			rec.SequenceNumber, rec.PreviousHash, rec.Signature); err != nil {
			return fmt.Errorf("failed to append progress record: %w", database.MapStorageError(err))
		}

		if outbox != nil {
			if err := insertOutboxEntry(ctx, tx, outbox); err != nil {
				return err
			}
		}

		appended = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	return appended, nil
}

func (r *progressRepoImpl) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.ProgressRecord, error) {
	query := progressSelect + ` WHERE user_id = ? ORDER BY sequence_number`
	return r.list(ctx, query, userID.String())
}

func (r *progressRepoImpl) ListByUserAndCourse(ctx context.Context, userID uuid.UUID, courseID string) ([]*models.ProgressRecord, error) {
	query := progressSelect + ` WHERE user_id = ? AND course_id = ? ORDER BY sequence_number`
	return r.list(ctx, query, userID.String(), courseID)
}

func (r *progressRepoImpl) list(ctx context.Context, query string, args ...any) ([]*models.ProgressRecord, error) {
	rows, err := r.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress records: %w", database.MapStorageError(err))
	}
	defer rows.Close()

	records := make([]*models.ProgressRecord, 0)
	for rows.Next() {
		rec, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

const progressSelect = `
	SELECT id, user_id, course_id, module_id, lesson_id, completed_at,
	       score, time_spent_seconds, sequence_number, previous_hash, signature
	FROM progress_records`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProgress(row rowScanner) (*models.ProgressRecord, error) {
	var rec models.ProgressRecord
	var score sql.NullFloat64
	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.CourseID, &rec.ModuleID, &rec.LessonID, &rec.CompletedAt,
		&score, &rec.TimeSpentSeconds, &rec.SequenceNumber, &rec.PreviousHash, &rec.Signature,
	)
	if err != nil {
		return nil, database.MapStorageError(err)
	}
	if score.Valid {
		rec.Score = &score.Float64
	}
	return &rec, nil
}

func lastProgressRecord(ctx context.Context, tx *sql.Tx, userID uuid.UUID) (*models.ProgressRecord, error) {
	query := progressSelect + ` WHERE user_id = ? ORDER BY sequence_number DESC LIMIT 1`
	return scanProgress(tx.QueryRowContext(ctx, query, userID.String()))
}

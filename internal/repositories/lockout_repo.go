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

// LockoutRepository defines lockout-state persistence operations. Mutate
// runs its read-modify-write inside one transaction so a counter increment
// cannot interleave with another operation on the same profile.
type LockoutRepository interface {
	Get(ctx context.Context, userID uuid.UUID, context_ models.AttemptContext) (*models.LockoutState, error)
	Mutate(ctx context.Context, userID uuid.UUID, context_ models.AttemptContext,
		fn func(state *models.LockoutState)) (*models.LockoutState, error)
}

type lockoutRepoImpl struct {
	db *database.DB
}

// NewLockoutRepository creates a new lockout repository
func NewLockoutRepository(db *database.DB) LockoutRepository {
	return &lockoutRepoImpl{db: db}
}

func (r *lockoutRepoImpl) Get(ctx context.Context, userID uuid.UUID, context_ models.AttemptContext) (*models.LockoutState, error) {
	return getLockoutState(ctx, r.db.SQL, userID, context_)
}

func (r *lockoutRepoImpl) Mutate(ctx context.Context, userID uuid.UUID, context_ models.AttemptContext,
	fn func(state *models.LockoutState)) (*models.LockoutState, error) {

	var result *models.LockoutState
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		state, err := getLockoutState(ctx, tx, userID, context_)
		if errors.Is(err, models.ErrNotFound) {
			state = &models.LockoutState{UserID: userID, Context: context_}
		} else if err != nil {
			return err
		}

		fn(state)

		query := `
			INSERT INTO lockout_states (user_id, context, failed_attempts, locked_until)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (user_id, context) DO UPDATE SET
				failed_attempts = excluded.failed_attempts,
				locked_until = excluded.locked_until
		`
		if _, err := tx.ExecContext(ctx, query,
			userID.String(), string(context_), state.FailedAttempts, state.LockedUntil); err != nil {
			return fmt.Errorf("failed to store lockout state: %w", database.MapStorageError(err))
		}

		result = state
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

type rowQueryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getLockoutState(ctx context.Context, q rowQueryer, userID uuid.UUID, context_ models.AttemptContext) (*models.LockoutState, error) {
	query := `
		SELECT user_id, context, failed_attempts, locked_until
		FROM lockout_states WHERE user_id = ? AND context = ?
	`

	var s models.LockoutState
	var lockedUntil sql.NullTime
	err := q.QueryRowContext(ctx, query, userID.String(), string(context_)).Scan(
		&s.UserID, &s.Context, &s.FailedAttempts, &lockedUntil,
	)
	if err != nil {
		return nil, database.MapStorageError(err)
	}
	if lockedUntil.Valid {
		s.LockedUntil = &lockedUntil.Time
	}

	return &s, nil
}

package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lanternworks/lantern-core/internal/database"
	"github.com/lanternworks/lantern-core/internal/models"
	"github.com/google/uuid"
)

// SessionRepository defines session persistence operations
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	GetActiveByUserID(ctx context.Context, userID uuid.UUID) (*models.Session, error)
	Update(ctx context.Context, session *models.Session) error
	SetActivity(ctx context.Context, id uuid.UUID, at time.Time) error
	EndAllForUser(ctx context.Context, userID uuid.UUID) (int64, error)
	EndExpired(ctx context.Context, now time.Time) (int64, error)
}

type sessionRepoImpl struct {
	db *database.DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *database.DB) SessionRepository {
	return &sessionRepoImpl{db: db}
}

func (r *sessionRepoImpl) Create(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions
			(id, user_id, pin_verified, mfa_verified, mfa_method,
			 created_at, expires_at, last_activity_at, hidden_at, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.SQL.ExecContext(ctx, query,
		session.ID.String(), session.UserID.String(),
		session.PINVerified, session.MFAVerified, session.MFAMethod,
		session.CreatedAt, session.ExpiresAt, session.LastActivityAt,
		session.HiddenAt, session.IsActive)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", database.MapStorageError(err))
	}

	return nil
}

func (r *sessionRepoImpl) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	query := sessionSelect + ` WHERE id = ?`
	return scanSession(r.db.SQL.QueryRowContext(ctx, query, id.String()))
}

// GetActiveByUserID returns the most recent active session. At most one
// session is logically active per user; newest wins if storage disagrees.
func (r *sessionRepoImpl) GetActiveByUserID(ctx context.Context, userID uuid.UUID) (*models.Session, error) {
	query := sessionSelect + ` WHERE user_id = ? AND is_active = 1 ORDER BY created_at DESC LIMIT 1`
	return scanSession(r.db.SQL.QueryRowContext(ctx, query, userID.String()))
}

func (r *sessionRepoImpl) Update(ctx context.Context, session *models.Session) error {
	query := `
		UPDATE sessions SET
			pin_verified = ?, mfa_verified = ?, mfa_method = ?,
			expires_at = ?, last_activity_at = ?, hidden_at = ?, is_active = ?
		WHERE id = ?
	`

	_, err := r.db.SQL.ExecContext(ctx, query,
		session.PINVerified, session.MFAVerified, session.MFAMethod,
		session.ExpiresAt, session.LastActivityAt, session.HiddenAt, session.IsActive,
		session.ID.String())
	if err != nil {
		return fmt.Errorf("failed to update session: %w", database.MapStorageError(err))
	}

	return nil
}

func (r *sessionRepoImpl) SetActivity(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.SQL.ExecContext(ctx,
		`UPDATE sessions SET last_activity_at = ? WHERE id = ?`, at, id.String())
	if err != nil {
		return fmt.Errorf("failed to record session activity: %w", database.MapStorageError(err))
	}
	return nil
}

func (r *sessionRepoImpl) EndAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	res, err := r.db.SQL.ExecContext(ctx,
		`UPDATE sessions SET is_active = 0 WHERE user_id = ? AND is_active = 1`, userID.String())
	if err != nil {
		return 0, fmt.Errorf("failed to end sessions: %w", database.MapStorageError(err))
	}
	return res.RowsAffected()
}

func (r *sessionRepoImpl) EndExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.SQL.ExecContext(ctx,
		`UPDATE sessions SET is_active = 0 WHERE is_active = 1 AND expires_at < ?`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to end expired sessions: %w", database.MapStorageError(err))
	}
	return res.RowsAffected()
}

const sessionSelect = `
	SELECT id, user_id, pin_verified, mfa_verified, mfa_method,
	       created_at, expires_at, last_activity_at, hidden_at, is_active
	FROM sessions`

func scanSession(row *sql.Row) (*models.Session, error) {
	var s models.Session
	var hiddenAt sql.NullTime
	err := row.Scan(
		&s.ID, &s.UserID, &s.PINVerified, &s.MFAVerified, &s.MFAMethod,
		&s.CreatedAt, &s.ExpiresAt, &s.LastActivityAt, &hiddenAt, &s.IsActive,
	)
	if err != nil {
		return nil, database.MapStorageError(err)
	}
	if hiddenAt.Valid {
		s.HiddenAt = &hiddenAt.Time
	}
	return &s, nil
}

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

// ProfileRepository defines profile persistence operations
type ProfileRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	Create(ctx context.Context, profile *models.Profile) error
	Archive(ctx context.Context, id uuid.UUID, at time.Time) error
}

type profileRepoImpl struct {
	db *database.DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *database.DB) ProfileRepository {
	return &profileRepoImpl{db: db}
}

func (r *profileRepoImpl) GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	query := `
		SELECT id, display_name, status, created_at, archived_at
		FROM profiles WHERE id = ?
	`

	var p models.Profile
	var archivedAt sql.NullTime
	err := r.db.SQL.QueryRowContext(ctx, query, id.String()).Scan(
		&p.ID, &p.DisplayName, &p.Status, &p.CreatedAt, &archivedAt,
	)
	if err != nil {
		return nil, database.MapStorageError(err)
	}
	if archivedAt.Valid {
		p.ArchivedAt = &archivedAt.Time
	}

	return &p, nil
}

func (r *profileRepoImpl) Create(ctx context.Context, profile *models.Profile) error {
	query := `
		INSERT INTO profiles (id, display_name, status, created_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := r.db.SQL.ExecContext(ctx, query,
		profile.ID.String(), profile.DisplayName, profile.Status, profile.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", database.MapStorageError(err))
	}

	return nil
}

func (r *profileRepoImpl) Archive(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE profiles SET status = ?, archived_at = ?
		WHERE id = ? AND status != ?
	`

	_, err := r.db.SQL.ExecContext(ctx, query,
		models.ProfileStatusArchived, at, id.String(), models.ProfileStatusArchived)
	if err != nil {
		return fmt.Errorf("failed to archive profile: %w", database.MapStorageError(err))
	}

	return nil
}

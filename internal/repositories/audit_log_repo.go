package repositories

import (
	"context"
	"fmt"

	"github.com/lanternworks/lantern-core/internal/database"
	"github.com/lanternworks/lantern-core/internal/models"
	"github.com/google/uuid"
)

// AuditLogRepository defines append-only audit log persistence operations
type AuditLogRepository interface {
	Append(ctx context.Context, entry *models.AuditLog) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.AuditLog, error)
}

type auditLogRepoImpl struct {
	db *database.DB
}

// NewAuditLogRepository creates a new audit log repository
func NewAuditLogRepository(db *database.DB) AuditLogRepository {
	return &auditLogRepoImpl{db: db}
}

func (r *auditLogRepoImpl) Append(ctx context.Context, entry *models.AuditLog) error {
	query := `
		INSERT INTO audit_logs (log_id, user_id, event_type, timestamp, details)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := r.db.SQL.ExecContext(ctx, query,
		entry.LogID, entry.UserID.String(), entry.EventType, entry.Timestamp, entry.Details)
	if err != nil {
		return fmt.Errorf("failed to append audit log: %w", database.MapStorageError(err))
	}

	return nil
}

func (r *auditLogRepoImpl) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.AuditLog, error) {
	query := `
		SELECT log_id, user_id, event_type, timestamp, details
		FROM audit_logs WHERE user_id = ? ORDER BY log_id DESC LIMIT ?
	`

	rows, err := r.db.SQL.QueryContext(ctx, query, userID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", database.MapStorageError(err))
	}
	defer rows.Close()

	logs := make([]*models.AuditLog, 0)
	for rows.Next() {
		var l models.AuditLog
		if err := rows.Scan(&l.LogID, &l.UserID, &l.EventType, &l.Timestamp, &l.Details); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		logs = append(logs, &l)
	}

	return logs, rows.Err()
}

package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lanternworks/lantern-core/internal/database"
	"github.com/lanternworks/lantern-core/internal/models"
)

// OutboxRepository defines sync-outbox persistence operations. The sync
// transport drains pending entries in enqueue order and acks them.
type OutboxRepository interface {
	Enqueue(ctx context.Context, entry *models.SyncOutboxEntry) error
	ListPending(ctx context.Context, limit int) ([]*models.SyncOutboxEntry, error)
	MarkSent(ctx context.Context, id string, at time.Time) error
}

type outboxRepoImpl struct {
	db *database.DB
}

// NewOutboxRepository creates a new outbox repository
func NewOutboxRepository(db *database.DB) OutboxRepository {
	return &outboxRepoImpl{db: db}
}

func (r *outboxRepoImpl) Enqueue(ctx context.Context, entry *models.SyncOutboxEntry) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		return insertOutboxEntry(ctx, tx, entry)
	})
}

func (r *outboxRepoImpl) ListPending(ctx context.Context, limit int) ([]*models.SyncOutboxEntry, error) {
	query := `
		SELECT id, user_id, kind, payload, enqueued_at, sent_at
		FROM sync_outbox WHERE sent_at IS NULL ORDER BY id LIMIT ?
	`

	rows, err := r.db.SQL.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending outbox entries: %w", database.MapStorageError(err))
	}
	defer rows.Close()

	entries := make([]*models.SyncOutboxEntry, 0)
	for rows.Next() {
		var e models.SyncOutboxEntry
		var sentAt sql.NullTime
		if err := rows.Scan(&e.ID, &e.UserID, &e.Kind, &e.Payload, &e.EnqueuedAt, &sentAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox entry: %w", err)
		}
		if sentAt.Valid {
			e.SentAt = &sentAt.Time
		}
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}

func (r *outboxRepoImpl) MarkSent(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.SQL.ExecContext(ctx,
		`UPDATE sync_outbox SET sent_at = ? WHERE id = ? AND sent_at IS NULL`, at, id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox entry sent: %w", database.MapStorageError(err))
	}
	return nil
}

// insertOutboxEntry is shared with the ledger repositories so a signed
// record and its outbound copy commit in the same transaction.
func insertOutboxEntry(ctx context.Context, tx *sql.Tx, entry *models.SyncOutboxEntry) error {
	query := `
		INSERT INTO sync_outbox (id, user_id, kind, payload, enqueued_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := tx.ExecContext(ctx, query,
		entry.ID, entry.UserID.String(), entry.Kind, entry.Payload, entry.EnqueuedAt)
	if err != nil {
		return fmt.Errorf("failed to enqueue sync payload: %w", database.MapStorageError(err))
	}
	return nil
}

package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/lanternworks/lantern-core/internal/models"
	"github.com/lanternworks/lantern-core/internal/repositories"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// SyncService exposes the outbox to whatever transport drains it. The
// transport itself (HTTP, USB drop, mesh) lives outside this core; this
// service only guarantees ordered delivery handoff and idempotent acks.
type SyncService struct {
	repo   repositories.OutboxRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewSyncService creates a new sync service
func NewSyncService(repo repositories.OutboxRepository, logger *slog.Logger) *SyncService {
	return &SyncService{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// Enqueue adds a standalone payload to the outbox. Ledger appends enqueue
// transactionally through their own repositories; this path is for
// payloads produced outside a ledger transaction.
func (s *SyncService) Enqueue(ctx context.Context, userID uuid.UUID, kind string, payload []byte) (*models.SyncOutboxEntry, error) {
	if kind != models.SyncKindProgress && kind != models.SyncKindQuizAttempt {
		return nil, &models.ValidationError{Field: "kind", Reason: "unknown sync payload kind"}
	}

	entry := &models.SyncOutboxEntry{
		ID:         ulid.Make().String(),
		UserID:     userID,
		Kind:       kind,
		Payload:    payload,
		EnqueuedAt: s.now().UTC(),
	}

	if err := s.repo.Enqueue(ctx, entry); err != nil {
		return nil, err
	}

	return entry, nil
}

// ListPending returns up to limit unsent entries in enqueue order.
func (s *SyncService) ListPending(ctx context.Context, limit int) ([]*models.SyncOutboxEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.repo.ListPending(ctx, limit)
}

// MarkSent acks an entry after the transport confirms delivery. Acking an
// already-sent entry is a no-op.
func (s *SyncService) MarkSent(ctx context.Context, id string) error {
	if err := s.repo.MarkSent(ctx, id, s.now().UTC()); err != nil {
		return err
	}

	s.logger.DebugContext(ctx, "outbox entry acknowledged", slog.String("entry_id", id))
	return nil
}

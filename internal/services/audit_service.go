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

// AuditService writes append-only audit entries. Writes are best-effort:
// a failed audit write is logged and swallowed so it never blocks the
// primary operation it describes.
type AuditService struct {
	repo   repositories.AuditLogRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewAuditService creates a new audit service
func NewAuditService(repo repositories.AuditLogRepository, logger *slog.Logger) *AuditService {
	return &AuditService{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// Log appends one audit entry for the user.
func (s *AuditService) Log(ctx context.Context, userID uuid.UUID, eventType string, details models.AuditDetails) {
	entry := &models.AuditLog{
		LogID:     ulid.Make().String(),
		UserID:    userID,
		EventType: eventType,
		Timestamp: s.now(),
		Details:   details,
	}

	if err := s.repo.Append(ctx, entry); err != nil {
		s.logger.WarnContext(ctx, "audit log write failed",
			slog.String("event_type", eventType),
			slog.Any("user_id", userID),
			slog.Any("error", err))
	}
}

// History returns the most recent audit entries for a user.
func (s *AuditService) History(ctx context.Context, userID uuid.UUID, limit int) ([]*models.AuditLog, error) {
	return s.repo.ListByUser(ctx, userID, limit)
}

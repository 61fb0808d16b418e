package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lanternworks/lantern-core/internal/models"
	"github.com/lanternworks/lantern-core/internal/repositories"
	"github.com/google/uuid"
)

// LockoutService tracks failed-attempt counters and lockout windows per
// (user, context). The PIN and MFA contexts are independent: each has its
// own threshold and duration, so noise against one cannot exhaust the
// other's budget.
type LockoutService struct {
	repo   repositories.LockoutRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewLockoutService creates a new lockout service
func NewLockoutService(repo repositories.LockoutRepository, logger *slog.Logger) *LockoutService {
	return &LockoutService{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// RecordFailedAttempt increments the counter for the context. At the
// threshold it starts the lockout window; below it it reports how many
// attempts remain.
func (s *LockoutService) RecordFailedAttempt(ctx context.Context, userID uuid.UUID, attemptCtx models.AttemptContext) (*models.AttemptResult, error) {
	now := s.now()

	state, err := s.repo.Mutate(ctx, userID, attemptCtx, func(state *models.LockoutState) {
		// A lockout that elapsed without being queried clears here, so the
		// stale window never extends the new count.
		if state.LockedUntil != nil && !now.Before(*state.LockedUntil) {
			state.FailedAttempts = 0
			state.LockedUntil = nil
		}
		state.FailedAttempts++
		if state.FailedAttempts >= attemptCtx.MaxAttempts() {
			until := now.Add(attemptCtx.LockoutWindow())
			state.LockedUntil = &until
		}
	})
	if err != nil {
		return nil, err
	}

	if state.LockedUntil != nil {
		s.logger.WarnContext(ctx, "attempt budget exhausted",
			slog.Any("user_id", userID),
			slog.String("context", string(attemptCtx)),
			slog.Time("locked_until", *state.LockedUntil))
		return &models.AttemptResult{IsLocked: true, LockoutUntil: state.LockedUntil}, nil
	}

	return &models.AttemptResult{
		IsLocked:          false,
		RemainingAttempts: attemptCtx.MaxAttempts() - state.FailedAttempts,
	}, nil
}

// GetLockoutStatus reports the current lockout state. An elapsed lockout
// is cleared as a side effect of being queried: attempts reset to 0 and
// the window is removed.
func (s *LockoutService) GetLockoutStatus(ctx context.Context, userID uuid.UUID, attemptCtx models.AttemptContext) (*models.LockoutStatus, error) {
	now := s.now()

	state, err := s.repo.Get(ctx, userID, attemptCtx)
	if errors.Is(err, models.ErrNotFound) {
		return &models.LockoutStatus{RemainingAttempts: attemptCtx.MaxAttempts()}, nil
	}
	if err != nil {
		return nil, err
	}

	if state.LockedUntil != nil && !now.Before(*state.LockedUntil) {
		state, err = s.repo.Mutate(ctx, userID, attemptCtx, func(state *models.LockoutState) {
			state.FailedAttempts = 0
			state.LockedUntil = nil
		})
		if err != nil {
			return nil, err
		}
	}

	if state.IsLocked(now) {
		remaining := int(state.LockedUntil.Sub(now).Round(time.Minute).Minutes())
		if remaining < 1 {
			remaining = 1
		}
		return &models.LockoutStatus{
			IsLocked:         true,
			LockedUntil:      state.LockedUntil,
			RemainingMinutes: remaining,
		}, nil
	}

	return &models.LockoutStatus{
		RemainingAttempts: attemptCtx.MaxAttempts() - state.FailedAttempts,
	}, nil
}

// ResetFailedAttempts clears the counter for the context. Called on any
// successful verification for that context.
func (s *LockoutService) ResetFailedAttempts(ctx context.Context, userID uuid.UUID, attemptCtx models.AttemptContext) error {
	_, err := s.repo.Mutate(ctx, userID, attemptCtx, func(state *models.LockoutState) {
		state.FailedAttempts = 0
		state.LockedUntil = nil
	})
	return err
}

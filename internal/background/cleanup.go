package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/lanternworks/lantern-core/internal/services"
)

// CleanupManager periodically ends expired sessions and archives profiles
// with long-expired credentials. Both sweeps are idempotent.
type CleanupManager struct {
	sessions *services.SessionService
	creds    *services.CredentialService
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	sessions *services.SessionService,
	creds *services.CredentialService,
	logger *slog.Logger,
	interval time.Duration,
) *CleanupManager {
	return &CleanupManager{
		sessions: sessions,
		creds:    creds,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	ended, err := cm.sessions.CleanupExpiredSessions(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to sweep expired sessions", slog.Any("error", err))
	} else if ended > 0 {
		cm.logger.Info("expired sessions ended", slog.Int64("count", ended))
	}

	archived, err := cm.creds.CleanupExpiredCredentials(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to sweep expired credentials", slog.Any("error", err))
	} else if archived > 0 {
		cm.logger.Info("profiles archived", slog.Int64("count", archived))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}

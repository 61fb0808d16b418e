package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lanternworks/lantern-core/internal/auth"
	"github.com/lanternworks/lantern-core/internal/background"
	"github.com/lanternworks/lantern-core/internal/config"
	"github.com/lanternworks/lantern-core/internal/database"
	"github.com/lanternworks/lantern-core/internal/repositories"
	"github.com/lanternworks/lantern-core/internal/services"
	pkglogger "github.com/lanternworks/lantern-core/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := pkglogger.New(cfg.Core.LogLevel)
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		slog.String("env", cfg.Core.Env),
		pkglogger.RedactedAttr("db_path", cfg.Database.Path, cfg.Core.Env))

	// Initialize database
	db, err := database.Open(cfg.Database.Path, logger)
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	healthCtx, healthCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.HealthCheck(healthCtx); err != nil {
		healthCancel()
		logger.Error("database health check failed", slog.Any("error", err))
		os.Exit(1)
	}
	healthCancel()

	// Initialize repositories
	profileRepo := repositories.NewProfileRepository(db)
	credRepo := repositories.NewCredentialRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)
	lockoutRepo := repositories.NewLockoutRepository(db)
	outboxRepo := repositories.NewOutboxRepository(db)
	auditRepo := repositories.NewAuditLogRepository(db)

	// TOTP secrets are encrypted under a key derived from the master key
	totpKey, err := auth.DeriveTOTPStorageKey(cfg.Auth.MasterKey)
	if err != nil {
		logger.Error("failed to derive TOTP storage key", slog.Any("error", err))
		os.Exit(1)
	}
	totpManager, err := auth.NewTOTPManager(totpKey, cfg.Auth.TOTPIssuer)
	if err != nil {
		logger.Error("failed to initialize TOTP manager", slog.Any("error", err))
		os.Exit(1)
	}

	// Timing delay for auth security
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   cfg.Auth.TimingDelayBaseMs,
		RandomDelayMs: cfg.Auth.TimingDelayRandomMs,
	})

	// Initialize services
	auditService := services.NewAuditService(auditRepo, logger)
	lockoutService := services.NewLockoutService(lockoutRepo, logger)
	credService := services.NewCredentialService(credRepo, profileRepo, totpManager, auditService, logger)
	sessionService := services.NewSessionService(sessionRepo, credRepo, credService, lockoutService, auditService, timingDelay, logger)
	syncService := services.NewSyncService(outboxRepo, logger)

	// Report the sync backlog left over from the last run
	backlogCtx, backlogCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if pending, err := syncService.ListPending(backlogCtx, 1000); err != nil {
		logger.Warn("failed to read sync backlog", slog.Any("error", err))
	} else if len(pending) > 0 {
		logger.Info("sync backlog pending", slog.Int("count", len(pending)))
	}
	backlogCancel()

	// Initialize cleanup manager
	cleanupManager := background.NewCleanupManager(sessionService, credService, logger, cfg.Auth.CleanupInterval)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	logger.Info("lanternd started", slog.String("db_path", cfg.Database.Path))

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	logger.Info("lanternd stopped gracefully")
}

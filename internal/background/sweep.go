package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/carebridge/securitycore/internal/models"
	"github.com/carebridge/securitycore/internal/repositories"
	"github.com/carebridge/securitycore/internal/services"
)

// SweepConfig holds the retention and scheduling knobs for the
// background maintenance loop.
type SweepConfig struct {
	SweepInterval      time.Duration
	ScanInterval       time.Duration
	AuditRetention     time.Duration
	SessionIdleTimeout time.Duration
}

// SweepManager runs the periodic maintenance work: pruning expired
// login attempts, enforcing audit retention, deactivating idle
// sessions, and running the scheduled monitor scan. All of it is
// best effort; a failed pass is retried on the next tick.
type SweepManager struct {
	attemptRepo *repositories.LoginAttemptRepository
	auditRepo   *repositories.AuditLogRepository
	sessionRepo *repositories.SessionRepository
	monitor     *services.MonitorService
	notify      chan<- models.Alert
	config      SweepConfig
	logger      *slog.Logger
	stopCh      chan struct{}
}

// NewSweepManager creates a new sweep manager
func NewSweepManager(
	attemptRepo *repositories.LoginAttemptRepository,
	auditRepo *repositories.AuditLogRepository,
	sessionRepo *repositories.SessionRepository,
	monitor *services.MonitorService,
	notify chan<- models.Alert,
	config SweepConfig,
	logger *slog.Logger,
) *SweepManager {
	return &SweepManager{
		attemptRepo: attemptRepo,
		auditRepo:   auditRepo,
		sessionRepo: sessionRepo,
		monitor:     monitor,
		notify:      notify,
		config:      config,
		logger:      logger,
		stopCh:      make(chan struct{}),
	}
}

// Start begins the periodic sweep and monitor loops. Blocks until the
// context is cancelled or Stop is called.
func (sm *SweepManager) Start(ctx context.Context) {
	sweepTicker := time.NewTicker(sm.config.SweepInterval)
	defer sweepTicker.Stop()

	scanTicker := time.NewTicker(sm.config.ScanInterval)
	defer scanTicker.Stop()

	// Run both immediately on startup
	sm.runSweep(ctx)
	sm.runScan(ctx)

	for {
		select {
		case <-sweepTicker.C:
			sm.runSweep(ctx)
		case <-scanTicker.C:
			sm.runScan(ctx)
		case <-sm.stopCh:
			sm.logger.Info("sweep manager stopped")
			return
		case <-ctx.Done():
			sm.logger.Info("sweep manager context cancelled")
			return
		}
	}
}

func (sm *SweepManager) runSweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if deleted, err := sm.attemptRepo.DeleteExpired(sweepCtx); err != nil {
		sm.logger.Error("failed to prune login attempts", slog.Any("error", err))
	} else if deleted > 0 {
		sm.logger.Info("pruned expired login attempts", slog.Int64("rows_deleted", deleted))
	}

	cutoff := time.Now().Add(-sm.config.AuditRetention)
	if deleted, err := sm.auditRepo.DeleteOlderThan(sweepCtx, cutoff); err != nil {
		sm.logger.Error("failed to enforce audit retention", slog.Any("error", err))
	} else if deleted > 0 {
		sm.logger.Info("enforced audit retention", slog.Int64("rows_deleted", deleted))
	}

	idleCutoff := time.Now().Add(-sm.config.SessionIdleTimeout)
	if invalidated, err := sm.sessionRepo.InvalidateIdle(sweepCtx, idleCutoff); err != nil {
		sm.logger.Error("failed to invalidate idle sessions", slog.Any("error", err))
	} else if invalidated > 0 {
		sm.logger.Info("invalidated idle sessions", slog.Int64("sessions", invalidated))
	}
}

func (sm *SweepManager) runScan(ctx context.Context) {
	scanCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	if _, err := sm.monitor.RunScan(scanCtx, sm.notify); err != nil {
		sm.logger.Error("scheduled monitor scan failed", slog.Any("error", err))
	}
}

// Stop signals the sweep manager to stop
func (sm *SweepManager) Stop() {
	close(sm.stopCh)
}

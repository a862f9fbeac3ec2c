package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/halcyonlabs/authcore/internal/auth/store"
)

// loginAttemptRetention is how long a stale, non-blocking login-attempt row
// survives before housekeeping removes it.
const loginAttemptRetention = 24 * time.Hour

// HousekeepingService periodically cleans up expired database records:
// revoked-or-expired refresh tokens, stale login-attempt counters and
// lapsed email-verification tokens.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service with the given interval.
// If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(store store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Store:    store,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker that periodically runs cleanup.
// This is non-blocking and should be called after the database is ready.
// Call Stop() to gracefully shutdown the worker.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop gracefully shuts down the background worker.
// Blocks until the worker has finished any in-progress cleanup.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	s.Cleanup()

	for {
		select {
		case <-ticker.C:
			s.Cleanup()
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup performs the actual deletion of expired records.
// Each deletion is independent - failures in one won't stop the others.
func (s *HousekeepingService) Cleanup() {
	ctx := context.Background()
	now := time.Now()
	s.Logger.Info("starting housekeeping cleanup")

	var successful int

	if err := s.Store.RefreshTokens().DeleteExpiredRefreshTokens(ctx, now); err != nil {
		s.Logger.Error("failed to delete expired refresh tokens", "error", err)
	} else {
		s.Logger.Debug("deleted expired refresh tokens")
		successful++
	}

	if err := s.Store.LoginAttempts().DeleteStaleLoginAttempts(ctx, now.Add(-loginAttemptRetention)); err != nil {
		s.Logger.Error("failed to delete stale login attempts", "error", err)
	} else {
		s.Logger.Debug("deleted stale login attempts")
		successful++
	}

	if err := s.Store.Accounts().ClearExpiredVerificationTokens(ctx, now); err != nil {
		s.Logger.Error("failed to clear expired verification tokens", "error", err)
	} else {
		s.Logger.Debug("cleared expired verification tokens")
		successful++
	}

	s.Logger.Info("housekeeping cleanup completed", "successful_cleanups", successful)
}

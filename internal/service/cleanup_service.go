package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/roomcast/roomcast-backend/internal/observability"
	"github.com/roomcast/roomcast-backend/internal/repository"
)

// CleanupService sweeps expired website sessions and reset requests on an
// interval. Expiry is still enforced synchronously on every request; the
// sweep only keeps the tables from growing without bound.
type CleanupService struct {
	sessions repository.SessionRepository
	resets   repository.ResetRepository
	logger   *slog.Logger
	interval time.Duration
}

func NewCleanupService(
	sessions repository.SessionRepository,
	resets repository.ResetRepository,
	logger *slog.Logger,
	interval time.Duration,
) *CleanupService {
	return &CleanupService{
		sessions: sessions,
		resets:   resets,
		logger:   logger,
		interval: interval,
	}
}

// Run blocks until ctx is cancelled, sweeping once per interval. One sweep
// runs immediately on start.
func (s *CleanupService) Run(ctx context.Context) {
	s.Sweep(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep removes everything already past its expiry.
func (s *CleanupService) Sweep(ctx context.Context) {
	now := time.Now().UTC()

	sessions, err := s.sessions.CleanupExpired(now)
	if err != nil {
		s.logger.ErrorContext(ctx, "session cleanup failed", "error", err)
	} else {
		observability.RecordCleanupSweep("website_sessions", sessions)
		if sessions > 0 {
			s.logger.InfoContext(ctx, "expired sessions removed", "count", sessions)
		}
	}

	resets, err := s.resets.CleanupExpired(now)
	if err != nil {
		s.logger.ErrorContext(ctx, "reset request cleanup failed", "error", err)
	} else {
		observability.RecordCleanupSweep("password_reset_requests", resets)
		if resets > 0 {
			s.logger.InfoContext(ctx, "expired reset requests removed", "count", resets)
		}
	}
}

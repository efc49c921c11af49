// Package retention deletes assessment sessions that have been idle longer
// than the configured retention window.
package retention

import (
	"context"
	"log/slog"
	"time"
)

// DefaultInterval is how often the sweeper runs.
const DefaultInterval = 1 * time.Hour

// Deleter removes idle sessions and reports which ones went away.
type Deleter interface {
	DeleteIdle(ctx context.Context, ttl time.Duration) ([]string, error)
}

// CleanupCallback is called for each session removed by the sweeper.
type CleanupCallback func(sessionID string)

// Sweeper periodically removes idle sessions.
type Sweeper struct {
	repo      Deleter
	ttl       time.Duration
	interval  time.Duration
	onCleanup CleanupCallback
}

// NewSweeper creates a sweeper. A zero interval uses DefaultInterval.
func NewSweeper(repo Deleter, ttl, interval time.Duration, onCleanup CleanupCallback) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sweeper{repo: repo, ttl: ttl, interval: interval, onCleanup: onCleanup}
}

// Run sweeps on every tick until ctx is done. It returns immediately when
// retention is disabled.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.ttl <= 0 {
		slog.Info("Session retention disabled")
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	slog.Info("Retention sweeper started", "interval", s.interval, "ttl", s.ttl)

	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)
		case <-ctx.Done():
			slog.Info("Retention sweeper shutting down", "reason", ctx.Err())
			return nil
		}
	}
}

// Sweep runs one deletion pass and returns the number of sessions removed.
func (s *Sweeper) Sweep(ctx context.Context) int {
	deleted, err := s.repo.DeleteIdle(ctx, s.ttl)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("Retention sweeper failed to delete idle sessions", "error", err)
		}
		return 0
	}
	if len(deleted) == 0 {
		return 0
	}

	for _, id := range deleted {
		if s.onCleanup != nil {
			s.onCleanup(id)
		}
	}
	slog.Info("Retention sweeper removed idle sessions", "count", len(deleted))
	return len(deleted)
}

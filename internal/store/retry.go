package store

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/assessor/internal/domain"
)

const (
	maxWriteAttempts = 3
	baseRetryDelay   = 50 * time.Millisecond
)

// IsBusyError reports SQLite lock contention (SQLITE_BUSY or "database is
// locked"). These are retried.
func IsBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func isRetryable(err error) bool {
	return IsBusyError(err) || errors.Is(err, domain.ErrConflict)
}

// withRetry runs op up to maxWriteAttempts times with exponential backoff
// (50ms, 100ms) while it fails with a retryable error.
func withRetry(ctx context.Context, sessionID string, op func() error) error {
	var err error
	for i := 0; i < maxWriteAttempts; i++ {
		err = op()
		if err == nil || !isRetryable(err) {
			return err
		}
		if i == maxWriteAttempts-1 {
			break
		}
		delay := baseRetryDelay * time.Duration(1<<i)
		slog.Debug("Session write conflicted, retrying",
			"session_id", sessionID,
			"attempt", i+1,
			"delay", delay,
			"error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

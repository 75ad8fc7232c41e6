package storage

import (
	"context"
	"log/slog"
	"time"
)

// RetryConfig configures bounded retry with exponential backoff for
// transient failures, typically database writes racing a sweep or
// filesystem hiccups on network mounts.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns the standard bounded-retry settings.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

// Retry runs fn up to MaxRetries+1 times, sleeping with doubling backoff
// between attempts. It returns nil on the first success, the last error
// once attempts are exhausted, or the context error if ctx ends first.
func Retry(ctx context.Context, cfg RetryConfig, operation string, fn func() error) error {
	var lastErr error
	backoff := cfg.InitialBackoff

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			if attempt > 0 {
				slog.Debug("operation succeeded on retry",
					slog.String("operation", operation),
					slog.Int("attempt", attempt))
			}
			return nil
		}
		lastErr = err

		// Don't sleep after the last attempt
		if attempt < cfg.MaxRetries {
			slog.Debug("operation failed, retrying",
				slog.String("operation", operation),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
				slog.String("error", err.Error()))

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}

			backoff *= 2
			if backoff > cfg.MaxBackoff {
				backoff = cfg.MaxBackoff
			}
		}
	}

	slog.Warn("operation failed after retries",
		slog.String("operation", operation),
		slog.Int("retries", cfg.MaxRetries),
		slog.String("error", lastErr.Error()))
	return lastErr
}

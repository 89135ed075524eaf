package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// ReconnectConfig controls exponential backoff between capture attempts
type ReconnectConfig struct {
	// MaxRetries is the number of consecutive failures tolerated (0 = retry forever)
	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		MaxRetries:    5,
		RetryDelay:    time.Second,
		MaxRetryDelay: 30 * time.Second,
	}
}

// reconnectState counts failures. consecutive is reset whenever a session
// reaches the playing state, reconnects only grows.
type reconnectState struct {
	consecutive atomic.Int32
	reconnects  atomic.Uint32
}

func (s *reconnectState) reset() {
	s.consecutive.Store(0)
}

// sessionFunc runs one capture session. It returns nil on graceful shutdown
// and an error when the source failed and should be reopened.
type sessionFunc func(ctx context.Context) error

// runWithReconnect keeps reopening the source until ctx is done or the
// failures in a row exceed MaxRetries.
func runWithReconnect(ctx context.Context, session sessionFunc, cfg ReconnectConfig, state *reconnectState) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		err := session(ctx)
		if err == nil || ctx.Err() != nil {
			return nil
		}

		failures := int(state.consecutive.Add(1))
		state.reconnects.Add(1)

		if cfg.MaxRetries > 0 && failures > cfg.MaxRetries {
			return fmt.Errorf("capture failed %d times in a row, giving up: %w", failures, err)
		}

		delay := backoff(failures, cfg)
		slog.Warn("camera: capture failed, reconnecting",
			"error", err,
			"attempt", failures,
			"max_retries", cfg.MaxRetries,
			"delay", delay,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil
		}
	}
}

// backoff returns RetryDelay * 2^(attempt-1), capped at MaxRetryDelay
func backoff(attempt int, cfg ReconnectConfig) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 30 {
		return cfg.MaxRetryDelay
	}
	delay := cfg.RetryDelay * time.Duration(1<<uint(attempt-1))
	if delay > cfg.MaxRetryDelay || delay <= 0 {
		delay = cfg.MaxRetryDelay
	}
	return delay
}

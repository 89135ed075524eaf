package stream

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	cfg := DefaultReconnectConfig()

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second},
		{64, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := backoff(tt.attempt, cfg); got != tt.want {
			t.Errorf("backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRunWithReconnectGivesUp(t *testing.T) {
	cfg := ReconnectConfig{MaxRetries: 3, RetryDelay: time.Millisecond, MaxRetryDelay: 2 * time.Millisecond}
	var state reconnectState
	calls := 0

	err := runWithReconnect(context.Background(), func(context.Context) error {
		calls++
		return errors.New("device busy")
	}, cfg, &state)

	if err == nil {
		t.Fatal("Expected error after max retries")
	}
	if calls != 4 {
		t.Errorf("Expected 4 attempts, got %d", calls)
	}
	if got := state.reconnects.Load(); got != 4 {
		t.Errorf("Expected 4 reconnects counted, got %d", got)
	}
}

func TestRunWithReconnectResetKeepsGoing(t *testing.T) {
	cfg := ReconnectConfig{MaxRetries: 1, RetryDelay: time.Millisecond, MaxRetryDelay: time.Millisecond}
	var state reconnectState
	calls := 0

	err := runWithReconnect(context.Background(), func(context.Context) error {
		calls++
		if calls == 5 {
			return nil
		}
		// every session reached playing before failing
		state.reset()
		return errors.New("unplugged")
	}, cfg, &state)

	if err != nil {
		t.Fatalf("Expected graceful end, got %v", err)
	}
	if calls != 5 {
		t.Errorf("Expected 5 sessions, got %d", calls)
	}
}

func TestRunWithReconnectCancel(t *testing.T) {
	cfg := ReconnectConfig{RetryDelay: time.Hour, MaxRetryDelay: time.Hour}
	var state reconnectState
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- runWithReconnect(ctx, func(context.Context) error {
			return errors.New("fail")
		}, cfg, &state)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected nil on cancel, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("runWithReconnect did not return after cancel")
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		msg, debug string
		want       ErrorCategory
	}{
		{"Device '/dev/video0' is busy", "", ErrCategoryDevice},
		{"Could not open device", "v4l2src0: No such file or directory", ErrCategoryDevice},
		{"Internal data stream error", "streaming stopped, reason not-negotiated (-4) not negotiated", ErrCategoryFormat},
		{"Device caps mismatch", "", ErrCategoryFormat},
		{"Something odd", "", ErrCategoryUnknown},
	}

	for _, tt := range tests {
		if got := classifyError(tt.msg, tt.debug); got != tt.want {
			t.Errorf("classifyError(%q, %q) = %v, want %v", tt.msg, tt.debug, got, tt.want)
		}
	}
}

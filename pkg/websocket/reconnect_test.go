package websocket

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		InitialDelay:      time.Millisecond,
		MaxDelay:          10 * time.Millisecond,
		BackoffMultiplier: 2.0,
		JitterPercent:     0,
	}
}

func TestReconnect_SucceedsAfterFailures(t *testing.T) {
	rm := NewReconnectManager(testReconnectConfig(), zap.NewNop())

	attempts := 0
	err := rm.Reconnect(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return fmt.Errorf("connection refused")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestReconnect_ContextCancel(t *testing.T) {
	rm := NewReconnectManager(testReconnectConfig(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := rm.Reconnect(ctx, func(ctx context.Context) error {
		return fmt.Errorf("should not matter")
	})
	if err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestReconnect_BackoffCapped(t *testing.T) {
	rm := NewReconnectManager(testReconnectConfig(), zap.NewNop())

	for i := 0; i < 10; i++ {
		rm.incrementBackoff()
	}

	if rm.currentBackoff != 10*time.Millisecond {
		t.Errorf("expected backoff capped at 10ms, got %s", rm.currentBackoff)
	}

	rm.Reset()
	if rm.currentBackoff != time.Millisecond {
		t.Errorf("expected backoff reset to 1ms, got %s", rm.currentBackoff)
	}
}

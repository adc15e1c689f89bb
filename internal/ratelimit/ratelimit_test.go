package ratelimit

import (
	"context"
	"testing"

	"github.com/fd1az/dexops/internal/apperror"
)

func TestLimiter_Burst(t *testing.T) {
	l := NewWithBurst(0.001, 2)

	if !l.Allow() || !l.Allow() {
		t.Fatal("burst of 2 should allow two immediate requests")
	}
	if l.Allow() {
		t.Error("third request should be throttled")
	}
}

func TestLimiter_WaitCancelled(t *testing.T) {
	l := NewWithBurst(0.001, 1)
	l.Allow()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := l.Wait(ctx); !apperror.HasCode(err, apperror.CodeRateLimitExceeded) {
		t.Errorf("expected CodeRateLimitExceeded, got %v", err)
	}
}

func TestLimiter_Unlimited(t *testing.T) {
	l := NewWithBurst(0, 0)
	for i := 0; i < 1000; i++ {
		if !l.Allow() {
			t.Fatalf("request %d throttled on an unlimited limiter", i)
		}
	}
}

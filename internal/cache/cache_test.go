package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/fd1az/dexops/internal/cache"
)

func TestCache_SetGet(t *testing.T) {
	c := cache.New[string, int](0)
	defer c.Close()
	ctx := context.Background()

	if _, ok := c.Get(ctx, "a"); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Set(ctx, "a", 1, 0)
	if v, ok := c.Get(ctx, "a"); !ok || v != 1 {
		t.Errorf("expected 1, got %d (ok=%v)", v, ok)
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	c := cache.New[string, int](0)
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "a", 1, 10*time.Millisecond)
	time.Sleep(25 * time.Millisecond)

	if _, ok := c.Get(ctx, "a"); ok {
		t.Error("expected entry to expire")
	}
}

func TestCache_SetIfAbsent_KeepsFirst(t *testing.T) {
	c := cache.New[string, int](0)
	defer c.Close()
	ctx := context.Background()

	v, stored := c.SetIfAbsent(ctx, "k", 18, 0)
	if !stored || v != 18 {
		t.Fatalf("expected first store, got %d stored=%v", v, stored)
	}

	v, stored = c.SetIfAbsent(ctx, "k", 6, 0)
	if stored {
		t.Error("second SetIfAbsent must not overwrite")
	}
	if v != 18 {
		t.Errorf("expected retained 18, got %d", v)
	}
}

func TestCache_JanitorEvicts(t *testing.T) {
	c := cache.New[string, int](5 * time.Millisecond)
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "a", 1, time.Millisecond)
	c.Set(ctx, "b", 2, 0)

	deadline := time.Now().Add(time.Second)
	for c.Len() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if c.Len() != 1 {
		t.Errorf("expected expired entry evicted, len=%d", c.Len())
	}
}

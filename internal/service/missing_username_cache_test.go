package service

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryMissingUsernameCacheMarkAndForget(t *testing.T) {
	ctx := context.Background()
	cache := NewInMemoryMissingUsernameCache()

	missing, err := cache.IsMissing(ctx, "ghost")
	if err != nil || missing {
		t.Fatalf("fresh cache should miss, got missing=%v err=%v", missing, err)
	}

	if err := cache.MarkMissing(ctx, "ghost", time.Minute); err != nil {
		t.Fatalf("mark missing: %v", err)
	}
	missing, err = cache.IsMissing(ctx, "  GHOST ")
	if err != nil || !missing {
		t.Fatalf("expected normalized hit, got missing=%v err=%v", missing, err)
	}

	if err := cache.Forget(ctx, "ghost"); err != nil {
		t.Fatalf("forget: %v", err)
	}
	missing, err = cache.IsMissing(ctx, "ghost")
	if err != nil || missing {
		t.Fatalf("expected entry gone after forget, got missing=%v err=%v", missing, err)
	}
}

func TestInMemoryMissingUsernameCacheExpiry(t *testing.T) {
	ctx := context.Background()
	cache := NewInMemoryMissingUsernameCache()

	if err := cache.MarkMissing(ctx, "ghost", 10*time.Millisecond); err != nil {
		t.Fatalf("mark missing: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	missing, err := cache.IsMissing(ctx, "ghost")
	if err != nil || missing {
		t.Fatalf("expected expired entry to miss, got missing=%v err=%v", missing, err)
	}
}

func TestInMemoryMissingUsernameCacheZeroTTLIgnored(t *testing.T) {
	ctx := context.Background()
	cache := NewInMemoryMissingUsernameCache()

	if err := cache.MarkMissing(ctx, "ghost", 0); err != nil {
		t.Fatalf("mark missing: %v", err)
	}
	missing, err := cache.IsMissing(ctx, "ghost")
	if err != nil || missing {
		t.Fatalf("zero ttl must not be stored, got missing=%v err=%v", missing, err)
	}
}

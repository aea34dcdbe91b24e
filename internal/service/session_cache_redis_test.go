package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisClientForTest(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})
	return server, client
}

func TestRedisSessionCacheStoreGetSetDelete(t *testing.T) {
	_, client := newRedisClientForTest(t)
	store := NewRedisSessionCacheStore(client, "roomcast")
	ctx := context.Background()

	session := &CachedSession{
		WebsiteUserID: 10,
		AdminUserID:   1,
		Username:      "alice",
		ExpiresAt:     time.Now().Add(time.Hour).UTC(),
	}
	if err := store.Set(ctx, "tok-1", session, time.Minute); err != nil {
		t.Fatalf("set session cache: %v", err)
	}
	got, hit, err := store.Get(ctx, "tok-1")
	if err != nil {
		t.Fatalf("get session cache: %v", err)
	}
	if !hit {
		t.Fatal("expected session cache hit")
	}
	if got.AdminUserID != 1 || got.WebsiteUserID != 10 || got.Username != "alice" {
		t.Fatalf("unexpected cached session: %+v", got)
	}

	if err := store.Delete(ctx, "tok-1"); err != nil {
		t.Fatalf("delete session cache: %v", err)
	}
	_, hit, err = store.Get(ctx, "tok-1")
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if hit {
		t.Fatal("expected session cache miss after delete")
	}
}

func TestRedisSessionCacheStoreExpiry(t *testing.T) {
	server, client := newRedisClientForTest(t)
	store := NewRedisSessionCacheStore(client, "roomcast")
	ctx := context.Background()

	session := &CachedSession{AdminUserID: 1}
	if err := store.Set(ctx, "tok-2", session, time.Minute); err != nil {
		t.Fatalf("set session cache: %v", err)
	}
	server.FastForward(2 * time.Minute)
	_, hit, err := store.Get(ctx, "tok-2")
	if err != nil {
		t.Fatalf("get session cache: %v", err)
	}
	if hit {
		t.Fatal("expected entry expired")
	}
}

func TestRedisSessionCacheStoreEvictsCorruptEntries(t *testing.T) {
	server, client := newRedisClientForTest(t)
	store := NewRedisSessionCacheStore(client, "roomcast")
	ctx := context.Background()

	key := store.dataKey("tok-3")
	server.Set(key, "{not json")
	_, hit, err := store.Get(ctx, "tok-3")
	if err != nil {
		t.Fatalf("get corrupt entry: %v", err)
	}
	if hit {
		t.Fatal("corrupt entry must not be served")
	}
	if server.Exists(key) {
		t.Fatal("corrupt entry must be evicted")
	}
}

func TestRedisSessionCacheStoreNilClientIsNoop(t *testing.T) {
	store := NewRedisSessionCacheStore(nil, "roomcast")
	ctx := context.Background()

	if err := store.Set(ctx, "tok", &CachedSession{AdminUserID: 1}, time.Minute); err != nil {
		t.Fatalf("nil client set: %v", err)
	}
	_, hit, err := store.Get(ctx, "tok")
	if err != nil {
		t.Fatalf("nil client get: %v", err)
	}
	if hit {
		t.Fatal("nil client must never hit")
	}
}

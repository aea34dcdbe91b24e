package service

import (
	"context"
	"testing"
	"time"
)

func TestRedisAuthAbuseGuardCooldownGrowthResetAndIsolation(t *testing.T) {
	ctx := context.Background()
	_, client := newRedisClientForTest(t)
	policy := AuthAbusePolicy{
		FreeAttempts: 1,
		BaseDelay:    50 * time.Millisecond,
		Multiplier:   2,
		MaxDelay:     500 * time.Millisecond,
		ResetWindow:  time.Second,
	}
	guard := NewRedisAuthAbuseGuard(client, "abuse_test", policy)

	d1, err := guard.RegisterFailure(ctx, AuthAbuseScopeLogin, "alice")
	if err != nil {
		t.Fatalf("register first failure: %v", err)
	}
	if d1 != 0 {
		t.Fatalf("expected no cooldown for first free attempt, got %v", d1)
	}

	d2, err := guard.RegisterFailure(ctx, AuthAbuseScopeLogin, "alice")
	if err != nil {
		t.Fatalf("register second failure: %v", err)
	}
	if d2 <= 0 {
		t.Fatalf("expected cooldown after second failure, got %v", d2)
	}

	d3, err := guard.RegisterFailure(ctx, AuthAbuseScopeLogin, "alice")
	if err != nil {
		t.Fatalf("register third failure: %v", err)
	}
	if d3 < d2 {
		t.Fatalf("expected non-decreasing cooldown, second=%v third=%v", d2, d3)
	}

	cooldown, err := guard.Check(ctx, AuthAbuseScopeLogin, "alice")
	if err != nil {
		t.Fatalf("check cooldown: %v", err)
	}
	if cooldown <= 0 {
		t.Fatalf("expected active cooldown, got %v", cooldown)
	}

	otherCooldown, err := guard.Check(ctx, AuthAbuseScopeLogin, "bob")
	if err != nil {
		t.Fatalf("check isolated identity: %v", err)
	}
	if otherCooldown != 0 {
		t.Fatalf("expected other identity to remain unaffected, got %v", otherCooldown)
	}

	scoped, err := guard.Check(ctx, AuthAbuseScopeReset, "alice")
	if err != nil {
		t.Fatalf("check other scope: %v", err)
	}
	if scoped != 0 {
		t.Fatalf("expected reset scope to be isolated from login failures, got %v", scoped)
	}

	if err := guard.Reset(ctx, AuthAbuseScopeLogin, "alice"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	cooldown, err = guard.Check(ctx, AuthAbuseScopeLogin, "alice")
	if err != nil {
		t.Fatalf("check after reset: %v", err)
	}
	if cooldown != 0 {
		t.Fatalf("expected no cooldown after reset, got %v", cooldown)
	}
}

func TestRedisAuthAbuseGuardNormalizesIdentity(t *testing.T) {
	ctx := context.Background()
	_, client := newRedisClientForTest(t)
	guard := NewRedisAuthAbuseGuard(client, "abuse_test", AuthAbusePolicy{
		FreeAttempts: 1,
		BaseDelay:    100 * time.Millisecond,
	})

	if _, err := guard.RegisterFailure(ctx, AuthAbuseScopeLogin, "  Alice  "); err != nil {
		t.Fatalf("register failure: %v", err)
	}
	if _, err := guard.RegisterFailure(ctx, AuthAbuseScopeLogin, "alice"); err != nil {
		t.Fatalf("register failure: %v", err)
	}
	cooldown, err := guard.Check(ctx, AuthAbuseScopeLogin, "ALICE")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if cooldown <= 0 {
		t.Fatalf("expected case and whitespace variants to share state, got %v", cooldown)
	}
}

func TestRedisAuthAbuseGuardMalformedState(t *testing.T) {
	ctx := context.Background()
	_, client := newRedisClientForTest(t)
	guard := NewRedisAuthAbuseGuard(client, "abuse_test", AuthAbusePolicy{})

	key := guard.stateKey(AuthAbuseScopeReset, normalizeAuthIdentity("broken"))
	if err := client.HSet(ctx, key, "last_failure_ms", "bad", "cooldown_until_ms", "still-bad").Err(); err != nil {
		t.Fatalf("seed malformed hash: %v", err)
	}

	if _, err := guard.Check(ctx, AuthAbuseScopeReset, "broken"); err == nil {
		t.Fatal("expected error for malformed state values")
	}
}

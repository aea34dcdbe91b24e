package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrTooManyAttempts reports an active cooldown on the login or reset
// surface. The remaining wait is carried alongside for the Retry-After
// header.
var ErrTooManyAttempts = errors.New("too many attempts")

type AuthAbuseScope string

const (
	AuthAbuseScopeLogin AuthAbuseScope = "login"
	AuthAbuseScopeReset AuthAbuseScope = "reset"
)

// AuthAbusePolicy shapes the exponential backoff applied after repeated
// failures on one identity. The first FreeAttempts failures cost nothing;
// after that the cooldown doubles per Multiplier up to MaxDelay. A quiet
// period of ResetWindow clears the failure count.
type AuthAbusePolicy struct {
	FreeAttempts int
	BaseDelay    time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	ResetWindow  time.Duration
}

func (p AuthAbusePolicy) withDefaults() AuthAbusePolicy {
	if p.FreeAttempts <= 0 {
		p.FreeAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	if p.Multiplier < 1 {
		p.Multiplier = 2
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 5 * time.Minute
	}
	if p.ResetWindow <= 0 {
		p.ResetWindow = 15 * time.Minute
	}
	return p
}

// AuthAbuseGuard throttles credential failures per identity. Check answers
// the remaining cooldown, RegisterFailure bumps the counter and returns the
// new cooldown, Reset clears state after a successful authentication.
type AuthAbuseGuard interface {
	Check(ctx context.Context, scope AuthAbuseScope, identity string) (time.Duration, error)
	RegisterFailure(ctx context.Context, scope AuthAbuseScope, identity string) (time.Duration, error)
	Reset(ctx context.Context, scope AuthAbuseScope, identity string) error
}

type NoopAuthAbuseGuard struct{}

func NewNoopAuthAbuseGuard() *NoopAuthAbuseGuard { return &NoopAuthAbuseGuard{} }

func (g *NoopAuthAbuseGuard) Check(context.Context, AuthAbuseScope, string) (time.Duration, error) {
	return 0, nil
}

func (g *NoopAuthAbuseGuard) RegisterFailure(context.Context, AuthAbuseScope, string) (time.Duration, error) {
	return 0, nil
}

func (g *NoopAuthAbuseGuard) Reset(context.Context, AuthAbuseScope, string) error { return nil }

func normalizeAuthIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

// RedisAuthAbuseGuard keeps per-identity failure state in a redis hash so
// the cooldown holds across replicas.
type RedisAuthAbuseGuard struct {
	client redis.UniversalClient
	prefix string
	policy AuthAbusePolicy
	now    func() time.Time
}

func NewRedisAuthAbuseGuard(client redis.UniversalClient, prefix string, policy AuthAbusePolicy) *RedisAuthAbuseGuard {
	if prefix == "" {
		prefix = "auth_abuse"
	}
	return &RedisAuthAbuseGuard{
		client: client,
		prefix: prefix,
		policy: policy.withDefaults(),
		now:    time.Now,
	}
}

func (g *RedisAuthAbuseGuard) stateKey(scope AuthAbuseScope, identity string) string {
	return fmt.Sprintf("%s:%s:%s", g.prefix, scope, identity)
}

func (g *RedisAuthAbuseGuard) Check(ctx context.Context, scope AuthAbuseScope, identity string) (time.Duration, error) {
	if g.client == nil {
		return 0, nil
	}
	key := g.stateKey(scope, normalizeAuthIdentity(identity))
	state, err := g.client.HGetAll(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("read abuse state: %w", err)
	}
	if len(state) == 0 {
		return 0, nil
	}
	_, cooldownUntil, err := parseAbuseState(state)
	if err != nil {
		return 0, err
	}
	if remaining := cooldownUntil.Sub(g.now()); remaining > 0 {
		return remaining, nil
	}
	return 0, nil
}

func (g *RedisAuthAbuseGuard) RegisterFailure(ctx context.Context, scope AuthAbuseScope, identity string) (time.Duration, error) {
	if g.client == nil {
		return 0, nil
	}
	key := g.stateKey(scope, normalizeAuthIdentity(identity))
	state, err := g.client.HGetAll(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("read abuse state: %w", err)
	}

	now := g.now()
	failures := 0
	if len(state) > 0 {
		lastFailure, _, err := parseAbuseState(state)
		if err != nil {
			return 0, err
		}
		if now.Sub(lastFailure) < g.policy.ResetWindow {
			failures, _ = strconv.Atoi(state["failures"])
		}
	}
	failures++

	var cooldown time.Duration
	if failures > g.policy.FreeAttempts {
		cooldown = g.policy.BaseDelay
		for i := g.policy.FreeAttempts + 1; i < failures; i++ {
			cooldown = time.Duration(float64(cooldown) * g.policy.Multiplier)
			if cooldown >= g.policy.MaxDelay {
				cooldown = g.policy.MaxDelay
				break
			}
		}
		if cooldown > g.policy.MaxDelay {
			cooldown = g.policy.MaxDelay
		}
	}

	pipe := g.client.TxPipeline()
	pipe.HSet(ctx, key,
		"failures", strconv.Itoa(failures),
		"last_failure_ms", strconv.FormatInt(now.UnixMilli(), 10),
		"cooldown_until_ms", strconv.FormatInt(now.Add(cooldown).UnixMilli(), 10),
	)
	pipe.Expire(ctx, key, g.policy.ResetWindow+g.policy.MaxDelay)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("write abuse state: %w", err)
	}
	return cooldown, nil
}

func (g *RedisAuthAbuseGuard) Reset(ctx context.Context, scope AuthAbuseScope, identity string) error {
	if g.client == nil {
		return nil
	}
	key := g.stateKey(scope, normalizeAuthIdentity(identity))
	if err := g.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("reset abuse state: %w", err)
	}
	return nil
}

func parseAbuseState(state map[string]string) (lastFailure, cooldownUntil time.Time, err error) {
	lastMS, err := strconv.ParseInt(state["last_failure_ms"], 10, 64)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse abuse state last_failure_ms: %w", err)
	}
	untilMS, err := strconv.ParseInt(state["cooldown_until_ms"], 10, 64)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse abuse state cooldown_until_ms: %w", err)
	}
	return time.UnixMilli(lastMS), time.UnixMilli(untilMS), nil
}

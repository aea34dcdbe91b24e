package service

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MissingUsernameCache remembers usernames known to have no account, so
// repeated probing of the reset endpoint stops hitting the database. Entries
// are dropped when an account with that name is created.
type MissingUsernameCache interface {
	IsMissing(ctx context.Context, username string) (bool, error)
	MarkMissing(ctx context.Context, username string, ttl time.Duration) error
	Forget(ctx context.Context, username string) error
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

type NoopMissingUsernameCache struct{}

func NewNoopMissingUsernameCache() *NoopMissingUsernameCache { return &NoopMissingUsernameCache{} }

func (c *NoopMissingUsernameCache) IsMissing(context.Context, string) (bool, error) {
	return false, nil
}

func (c *NoopMissingUsernameCache) MarkMissing(context.Context, string, time.Duration) error {
	return nil
}

func (c *NoopMissingUsernameCache) Forget(context.Context, string) error { return nil }

type InMemoryMissingUsernameCache struct {
	mu      sync.RWMutex
	entries map[string]time.Time
}

func NewInMemoryMissingUsernameCache() *InMemoryMissingUsernameCache {
	return &InMemoryMissingUsernameCache{entries: make(map[string]time.Time)}
}

func (c *InMemoryMissingUsernameCache) IsMissing(_ context.Context, username string) (bool, error) {
	key := normalizeUsername(username)
	now := time.Now().UTC()

	c.mu.RLock()
	expiresAt, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if now.After(expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return false, nil
	}
	return true, nil
}

func (c *InMemoryMissingUsernameCache) MarkMissing(_ context.Context, username string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[normalizeUsername(username)] = time.Now().UTC().Add(ttl)
	return nil
}

func (c *InMemoryMissingUsernameCache) Forget(_ context.Context, username string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, normalizeUsername(username))
	return nil
}

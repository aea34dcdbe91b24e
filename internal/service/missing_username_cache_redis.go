package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisMissingUsernameCache shares negative lookups across replicas.
type RedisMissingUsernameCache struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisMissingUsernameCache(client redis.UniversalClient, prefix string) *RedisMissingUsernameCache {
	if prefix == "" {
		prefix = "missing_username"
	}
	return &RedisMissingUsernameCache{client: client, prefix: prefix}
}

func (c *RedisMissingUsernameCache) key(username string) string {
	return fmt.Sprintf("%s:%s", c.prefix, normalizeUsername(username))
}

func (c *RedisMissingUsernameCache) IsMissing(ctx context.Context, username string) (bool, error) {
	if c.client == nil {
		return false, nil
	}
	if err := c.client.Get(ctx, c.key(username)).Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("missing username cache get: %w", err)
	}
	return true, nil
}

func (c *RedisMissingUsernameCache) MarkMissing(ctx context.Context, username string, ttl time.Duration) error {
	if c.client == nil || ttl <= 0 {
		return nil
	}
	if err := c.client.Set(ctx, c.key(username), "1", ttl).Err(); err != nil {
		return fmt.Errorf("missing username cache set: %w", err)
	}
	return nil
}

func (c *RedisMissingUsernameCache) Forget(ctx context.Context, username string) error {
	if c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, c.key(username)).Err(); err != nil {
		return fmt.Errorf("missing username cache delete: %w", err)
	}
	return nil
}

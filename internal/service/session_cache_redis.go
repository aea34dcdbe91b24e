package service

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

type RedisSessionCacheStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisSessionCacheStore(client redis.UniversalClient, prefix string) *RedisSessionCacheStore {
	if prefix == "" {
		prefix = "session_cache"
	}
	return &RedisSessionCacheStore{
		client: client,
		prefix: prefix,
	}
}

func (s *RedisSessionCacheStore) Get(ctx context.Context, token string) (*CachedSession, bool, error) {
	if s.client == nil {
		return nil, false, nil
	}
	raw, err := s.client.Get(ctx, s.dataKey(token)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var session CachedSession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		// A corrupt entry is evicted rather than served.
		_ = s.client.Del(ctx, s.dataKey(token)).Err()
		return nil, false, nil
	}
	return &session, true, nil
}

func (s *RedisSessionCacheStore) Set(ctx context.Context, token string, session *CachedSession, ttl time.Duration) error {
	if s.client == nil || ttl <= 0 || session == nil {
		return nil
	}
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.dataKey(token), raw, ttl).Err()
}

func (s *RedisSessionCacheStore) Delete(ctx context.Context, token string) error {
	if s.client == nil {
		return nil
	}
	return s.client.Del(ctx, s.dataKey(token)).Err()
}

func (s *RedisSessionCacheStore) dataKey(token string) string {
	return fmt.Sprintf("%s:data:%s", normalizeToken(s.prefix), hashToken(token))
}

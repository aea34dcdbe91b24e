package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

// CachedSession is the subset of a website session worth keeping hot. A hit
// lets session validation skip the database entirely.
type CachedSession struct {
	WebsiteUserID uint      `json:"website_user_id"`
	AdminUserID   uint      `json:"admin_user_id"`
	Username      string    `json:"username"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// SessionCacheStore keys entries by a digest of the session token, never the
// token itself.
type SessionCacheStore interface {
	Get(ctx context.Context, token string) (*CachedSession, bool, error)
	Set(ctx context.Context, token string, session *CachedSession, ttl time.Duration) error
	Delete(ctx context.Context, token string) error
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func normalizeToken(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

type NoopSessionCacheStore struct{}

func NewNoopSessionCacheStore() *NoopSessionCacheStore { return &NoopSessionCacheStore{} }

func (s *NoopSessionCacheStore) Get(context.Context, string) (*CachedSession, bool, error) {
	return nil, false, nil
}

func (s *NoopSessionCacheStore) Set(context.Context, string, *CachedSession, time.Duration) error {
	return nil
}

func (s *NoopSessionCacheStore) Delete(context.Context, string) error { return nil }

type inMemorySessionEntry struct {
	session   CachedSession
	expiresAt time.Time
}

type InMemorySessionCacheStore struct {
	mu    sync.RWMutex
	store map[string]inMemorySessionEntry
}

func NewInMemorySessionCacheStore() *InMemorySessionCacheStore {
	return &InMemorySessionCacheStore{store: make(map[string]inMemorySessionEntry)}
}

func (s *InMemorySessionCacheStore) Get(_ context.Context, token string) (*CachedSession, bool, error) {
	key := hashToken(token)
	now := time.Now().UTC()
	s.mu.RLock()
	entry, ok := s.store[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if now.After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.store, key)
		s.mu.Unlock()
		return nil, false, nil
	}
	session := entry.session
	return &session, true, nil
}

func (s *InMemorySessionCacheStore) Set(_ context.Context, token string, session *CachedSession, ttl time.Duration) error {
	if ttl <= 0 || session == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store[hashToken(token)] = inMemorySessionEntry{
		session:   *session,
		expiresAt: time.Now().UTC().Add(ttl),
	}
	return nil
}

func (s *InMemorySessionCacheStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.store, hashToken(token))
	return nil
}

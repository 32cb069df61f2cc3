package prefs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/mohammed-shakir/obras-dashboard/internal/cache/keys"
)

// Store persists preferences per client key.
type Store interface {
	// Load returns the stored preferences; ok is false when none exist.
	Load(ctx context.Context, client string) (p Preferences, ok bool, err error)
	Save(ctx context.Context, client string, p Preferences) error
	Reset(ctx context.Context, client string) error
}

type MemoryStore struct {
	mu sync.RWMutex
	m  map[string]Preferences
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]Preferences)}
}

func (s *MemoryStore) Load(_ context.Context, client string) (Preferences, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.m[client]
	if !ok {
		return Preferences{}, false, nil
	}
	p.Layers = append([]Layer(nil), p.Layers...)
	return p, true, nil
}

func (s *MemoryStore) Save(_ context.Context, client string, p Preferences) error {
	p.Layers = append([]Layer(nil), p.Layers...)
	s.mu.Lock()
	s.m[client] = p
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Reset(_ context.Context, client string) error {
	s.mu.Lock()
	delete(s.m, client)
	s.mu.Unlock()
	return nil
}

// KV is the subset of redisstore.Client the Redis store needs.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// RedisStore keeps one JSON document per client. A zero TTL never expires.
type RedisStore struct {
	kv  KV
	ttl time.Duration
}

func NewRedisStore(kv KV, ttl time.Duration) *RedisStore {
	return &RedisStore{kv: kv, ttl: ttl}
}

func (s *RedisStore) Load(ctx context.Context, client string) (Preferences, bool, error) {
	b, ok, err := s.kv.Get(ctx, keys.Prefs(client))
	if err != nil || !ok {
		return Preferences{}, false, err
	}
	var p Preferences
	if err := json.Unmarshal(b, &p); err != nil {
		return Preferences{}, false, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return p, true, nil
}

func (s *RedisStore) Save(ctx context.Context, client string, p Preferences) error {
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	return s.kv.Set(ctx, keys.Prefs(client), b, s.ttl)
}

func (s *RedisStore) Reset(ctx context.Context, client string) error {
	return s.kv.Del(ctx, keys.Prefs(client))
}

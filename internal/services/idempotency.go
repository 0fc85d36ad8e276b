package services

import (
	"context"
	"sync"
	"time"
)

// IdempotencyStore tracks recently processed submission keys so a duplicate
// form POST short-circuits instead of creating a second sale. Both guards of
// the sale orchestrator (client request id and canonical payload hash) go
// through the same store.
type IdempotencyStore interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

// RedisIdempotencyStore keeps marks in Redis so they survive restarts and
// are shared between processes. Entries expire on their own.
type RedisIdempotencyStore struct {
	cache *RedisCache
	ttl   time.Duration
}

// NewRedisIdempotencyStore wraps a RedisCache; a zero ttl defaults to 24h.
func NewRedisIdempotencyStore(cache *RedisCache, ttl time.Duration) *RedisIdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisIdempotencyStore{cache: cache, ttl: ttl}
}

func (s *RedisIdempotencyStore) Seen(ctx context.Context, key string) (bool, error) {
	return s.cache.Exists(ctx, "idem:"+key)
}

func (s *RedisIdempotencyStore) Mark(ctx context.Context, key string) error {
	_, err := s.cache.SetNX(ctx, "idem:"+key, 1, s.ttl)
	return err
}

// MemoryIdempotencyStore is the in-process fallback when Redis is not
// configured: a mutex-guarded FIFO of the last N keys, so memory stays
// bounded no matter how many submissions come in.
type MemoryIdempotencyStore struct {
	mu       sync.Mutex
	capacity int
	order    []string
	keys     map[string]struct{}
}

// NewMemoryIdempotencyStore creates a bounded store; capacity <= 0 keeps
// the last 100 keys.
func NewMemoryIdempotencyStore(capacity int) *MemoryIdempotencyStore {
	if capacity <= 0 {
		capacity = 100
	}
	return &MemoryIdempotencyStore{
		capacity: capacity,
		keys:     make(map[string]struct{}, capacity),
	}
}

func (s *MemoryIdempotencyStore) Seen(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[key]
	return ok, nil
}

func (s *MemoryIdempotencyStore) Mark(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; ok {
		return nil
	}
	s.keys[key] = struct{}{}
	s.order = append(s.order, key)
	for len(s.order) > s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.keys, oldest)
	}
	return nil
}

package ratelimit

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	count   int
	resetAt time.Time
}

// MemoryStore keeps window counters in process memory. Expired buckets are
// replaced lazily on the next Anchor; the map is bounded by the number of
// configured providers so no sweeper is needed.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: make(map[string]*bucket)}
}

func (s *MemoryStore) Window(_ context.Context, key string) (int, time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[key]
	if !ok {
		return 0, time.Time{}, false, nil
	}
	return b.count, b.resetAt, true, nil
}

func (s *MemoryStore) Anchor(_ context.Context, key string, resetAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets[key] = &bucket{resetAt: resetAt}
	return nil
}

func (s *MemoryStore) Incr(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.buckets[key]; ok {
		b.count++
		return nil
	}
	s.buckets[key] = &bucket{count: 1, resetAt: time.Now().Add(ttl)}
	return nil
}

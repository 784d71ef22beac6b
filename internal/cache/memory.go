package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const defaultJanitorInterval = time.Minute

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// Memory is an in-process Store guarded by a RWMutex. A janitor goroutine
// sweeps expired entries so an idle process does not hold dead results.
type Memory struct {
	mu     sync.RWMutex
	items  map[string]memoryEntry
	hits   atomic.Int64
	misses atomic.Int64
	stop   chan struct{}
}

// NewMemory creates a memory store and starts its janitor.
func NewMemory() *Memory {
	m := &Memory{
		items: make(map[string]memoryEntry),
		stop:  make(chan struct{}),
	}
	go m.janitor(defaultJanitorInterval)
	return m
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.RLock()
	e, ok := m.items[key]
	m.mu.RUnlock()

	if !ok || (!e.expiresAt.IsZero() && time.Now().After(e.expiresAt)) {
		m.misses.Add(1)
		return nil, false
	}
	m.hits.Add(1)
	return e.value, true
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	// Copy so the entry stays immutable if the caller reuses its buffer.
	v := make([]byte, len(value))
	copy(v, value)

	e := memoryEntry{value: v}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}

	m.mu.Lock()
	m.items[key] = e
	m.mu.Unlock()
}

func (m *Memory) Delete(_ context.Context, key string) {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
}

func (m *Memory) Stats() Stats {
	m.mu.RLock()
	entries := int64(len(m.items))
	m.mu.RUnlock()
	return Stats{
		Hits:    m.hits.Load(),
		Misses:  m.misses.Load(),
		Entries: entries,
	}
}

// Close stops the janitor. Safe to call once.
func (m *Memory) Close() {
	close(m.stop)
}

func (m *Memory) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stop:
			return
		}
	}
}

func (m *Memory) sweep() {
	now := time.Now()
	m.mu.Lock()
	for k, e := range m.items {
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			delete(m.items, k)
		}
	}
	m.mu.Unlock()
}

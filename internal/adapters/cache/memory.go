package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	val     []byte
	expires time.Time // zero means no expiry
}

// minSweep is the map size below which Set never sweeps.
const minSweep = 256

// Memory is an in-process Cache. Expired entries are dropped lazily on read,
// and Set sweeps every expired entry whenever the map doubles since the last
// sweep. There is no background sweeper.
type Memory struct {
	mu        sync.Mutex
	items     map[string]entry
	now       func() time.Time
	nextSweep int
}

// MemoryOption configures a Memory cache.
type MemoryOption func(*Memory)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemory constructs an empty in-memory cache.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{items: make(map[string]entry), now: time.Now, nextSweep: minSweep}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get implements Cache.Get.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.items, key)
		return nil, false, nil
	}
	out := make([]byte, len(e.val))
	copy(out, e.val)
	return out, true, nil
}

// Set implements Cache.Set. A non-positive ttl stores without expiry.
func (m *Memory) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	e := entry{val: append([]byte(nil), val...)}
	now := m.now()
	if ttl > 0 {
		e.expires = now.Add(ttl)
	}
	m.mu.Lock()
	m.items[key] = e
	if len(m.items) >= m.nextSweep {
		m.sweepLocked(now)
	}
	m.mu.Unlock()
	return nil
}

// sweepLocked drops expired entries and doubles the next threshold from the
// surviving size, so sweeps cost O(1) amortized per Set.
func (m *Memory) sweepLocked(now time.Time) {
	for k, e := range m.items {
		if !e.expires.IsZero() && !now.Before(e.expires) {
			delete(m.items, k)
		}
	}
	m.nextSweep = max(2*len(m.items), minSweep)
}

// Delete implements Cache.Delete.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

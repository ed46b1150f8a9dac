package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. Entries are lost on restart; expired
// entries are swept in the background.
type MemoryStore struct {
	mu    sync.RWMutex
	data  map[string]entry
	now   func() time.Time
	clean *time.Ticker
	done  chan struct{}
	once  sync.Once
}

type entry struct {
	value  []byte
	expire time.Time // zero means no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expire.IsZero() && now.After(e.expire)
}

// NewMemoryStore creates a store that sweeps expired entries every 30s.
func NewMemoryStore() *MemoryStore {
	return newMemoryStore(time.Now, 30*time.Second)
}

func newMemoryStore(now func() time.Time, sweep time.Duration) *MemoryStore {
	m := &MemoryStore{
		data:  make(map[string]entry),
		now:   now,
		clean: time.NewTicker(sweep),
		done:  make(chan struct{}),
	}
	go m.cleanup()
	return m
}

func (m *MemoryStore) Name() string { return "memory" }

func (m *MemoryStore) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expire = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.data[key] = e
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	e, ok := m.data[key]
	m.mu.RUnlock()
	if !ok || e.expired(m.now()) {
		return nil, ErrNotFound
	}
	return e.value, nil
}

// Len returns the number of stored entries, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

func (m *MemoryStore) Close() error {
	m.once.Do(func() {
		m.clean.Stop()
		close(m.done)
	})
	return nil
}

func (m *MemoryStore) cleanup() {
	for {
		select {
		case <-m.done:
			return
		case <-m.clean.C:
			m.sweep()
		}
	}
}

func (m *MemoryStore) sweep() {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, e := range m.data {
		if e.expired(now) {
			delete(m.data, k)
		}
	}
}

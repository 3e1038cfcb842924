package cache

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultMemoryCapacity is the default maximum number of entries in a MemoryStore.
const DefaultMemoryCapacity = 1000

// MemoryStore is a goroutine-safe in-process Store with LRU eviction and
// per-entry expiry.
type MemoryStore struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	lruList  *list.List
	now      func() time.Time

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

type memoryEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// NewMemoryStore creates a store holding at most capacity entries.
// A non-positive capacity selects DefaultMemoryCapacity.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryStore{
		capacity: capacity,
		items:    make(map[string]*list.Element, capacity),
		lruList:  list.New(),
		now:      time.Now,
	}
}

// Get returns a copy of the cached value, or nil on a miss.
// Accessing an entry moves it to the front of the LRU list.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.items[key]
	if !ok {
		m.misses.Add(1)
		return nil, nil
	}
	entry := elem.Value.(*memoryEntry)
	if entry.expired(m.now()) {
		m.remove(elem)
		m.misses.Add(1)
		return nil, nil
	}

	m.lruList.MoveToFront(elem)
	m.hits.Add(1)
	return append([]byte(nil), entry.value...), nil
}

// Set stores a copy of value, evicting the least recently used entry when full.
func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = m.now().Add(ttl)
	}
	value = append([]byte(nil), value...)

	if elem, ok := m.items[key]; ok {
		m.lruList.MoveToFront(elem)
		entry := elem.Value.(*memoryEntry)
		entry.value = value
		entry.expiresAt = expiresAt
		return nil
	}

	if m.lruList.Len() >= m.capacity {
		if oldest := m.lruList.Back(); oldest != nil {
			m.remove(oldest)
			m.evictions.Add(1)
		}
	}

	m.items[key] = m.lruList.PushFront(&memoryEntry{key: key, value: value, expiresAt: expiresAt})
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, ok := m.items[key]; ok {
		m.remove(elem)
	}
	return nil
}

// DeletePrefix removes every key starting with prefix.
func (m *MemoryStore) DeletePrefix(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, elem := range m.items {
		if strings.HasPrefix(key, prefix) {
			m.remove(elem)
		}
	}
	return nil
}

// remove must be called with the lock held.
func (m *MemoryStore) remove(elem *list.Element) {
	m.lruList.Remove(elem)
	delete(m.items, elem.Value.(*memoryEntry).key)
}

// Stats holds cache performance metrics.
type Stats struct {
	Size      int
	Capacity  int
	Hits      uint64
	Misses    uint64
	Evictions uint64
	HitRate   float64 // hits / (hits + misses)
}

// Stats returns cache statistics.
func (m *MemoryStore) Stats() Stats {
	m.mu.Lock()
	size := m.lruList.Len()
	m.mu.Unlock()

	hits := m.hits.Load()
	misses := m.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Size:      size,
		Capacity:  m.capacity,
		Hits:      hits,
		Misses:    misses,
		Evictions: m.evictions.Load(),
		HitRate:   hitRate,
	}
}

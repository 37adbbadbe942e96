package cache

import (
	"bytes"
	"container/list"
	"sync"
	"sync/atomic"
)

// memoryEntry is stored in the LRU list.
type memoryEntry struct {
	fp   string
	data []byte
}

// Memory is a thread-safe, entry-bounded LRU of PNG bytes keyed by
// fingerprint. It uses container/list for O(1) eviction and promotion.
type Memory struct {
	mu         sync.Mutex
	items      map[string]*list.Element
	order      *list.List // front = most recent, back = least recent
	maxEntries int

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewMemory creates an LRU holding at most maxEntries icons. If maxEntries is
// <= 0, a default of 256 is used.
func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = 256
	}
	return &Memory{
		items:      make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: maxEntries,
	}
}

// Get returns a copy of the bytes cached for fp and promotes the entry.
func (m *Memory) Get(fp string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.items[fp]
	if !ok {
		m.misses.Add(1)
		return nil, false
	}
	m.order.MoveToFront(elem)
	m.hits.Add(1)
	return bytes.Clone(elem.Value.(*memoryEntry).data), true
}

// Put stores a copy of data under fp, evicting the least recently used
// entries when the cache is full.
func (m *Memory) Put(fp string, data []byte) {
	data = bytes.Clone(data)

	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, ok := m.items[fp]; ok {
		elem.Value.(*memoryEntry).data = data
		m.order.MoveToFront(elem)
		return
	}

	for m.order.Len() >= m.maxEntries {
		m.evictBackLocked()
	}
	m.items[fp] = m.order.PushFront(&memoryEntry{fp: fp, data: data})
}

// Len returns the number of cached entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}

// MemoryStats reports hit/miss/eviction counts for the memory tier.
type MemoryStats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Entries   int
}

// Stats returns current memory tier statistics.
func (m *Memory) Stats() MemoryStats {
	return MemoryStats{
		Hits:      m.hits.Load(),
		Misses:    m.misses.Load(),
		Evictions: m.evictions.Load(),
		Entries:   m.Len(),
	}
}

// evictBackLocked removes the least recently used entry.
// Caller must hold m.mu.
func (m *Memory) evictBackLocked() {
	back := m.order.Back()
	if back == nil {
		return
	}
	entry := m.order.Remove(back).(*memoryEntry)
	delete(m.items, entry.fp)
	m.evictions.Add(1)
}

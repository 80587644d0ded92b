package wordcache

import (
	"sync"

	"github.com/mrlokans/wordsync/internal/entities"
)

// memoryTier is a bounded map evicting in insertion order.
// Reads never change an entry's position, and overwriting an existing key
// keeps its original slot.
type memoryTier struct {
	mu       sync.Mutex
	capacity int
	order    []string
	items    map[string]*entities.WordRecord
}

func newMemoryTier(capacity int) *memoryTier {
	return &memoryTier{
		capacity: capacity,
		items:    make(map[string]*entities.WordRecord, capacity),
	}
}

func (m *memoryTier) get(key string) (*entities.WordRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.items[key]
	return record, ok
}

func (m *memoryTier) has(key string) bool {
	_, ok := m.get(key)
	return ok
}

// set stores record and returns how many entries were evicted.
func (m *memoryTier) set(key string, record *entities.WordRecord) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.items[key]; exists {
		m.items[key] = record
		return 0
	}

	m.items[key] = record
	m.order = append(m.order, key)

	evicted := 0
	for len(m.order) > m.capacity {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.items, oldest)
		evicted++
	}
	return evicted
}

func (m *memoryTier) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.items)
}

func (m *memoryTier) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.order = nil
	m.items = make(map[string]*entities.WordRecord, m.capacity)
}

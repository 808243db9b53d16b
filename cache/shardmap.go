package cache

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// DefaultShards is the shard count used when callers pass a non-positive value.
const DefaultShards = 32

// ShardedMap is a string-keyed concurrent map. Each shard has its own lock, so
// writers to different keys rarely contend and a single key is only ever
// mutated under its shard's write lock.
type ShardedMap[V any] struct {
	shards []*shard[V]
}

type shard[V any] struct {
	mu    sync.RWMutex
	items map[string]V
}

// NewShardedMap creates a map with n shards.
func NewShardedMap[V any](n int) *ShardedMap[V] {
	if n <= 0 {
		n = DefaultShards
	}
	m := &ShardedMap[V]{shards: make([]*shard[V], n)}
	for i := range m.shards {
		m.shards[i] = &shard[V]{items: make(map[string]V)}
	}
	return m
}

func (m *ShardedMap[V]) shardFor(key string) *shard[V] {
	return m.shards[xxhash.Sum64String(key)%uint64(len(m.shards))]
}

// Load returns the value stored under key.
func (m *ShardedMap[V]) Load(key string) (V, bool) {
	s := m.shardFor(key)
	s.mu.RLock()
	v, ok := s.items[key]
	s.mu.RUnlock()
	return v, ok
}

// Store sets the value for key, replacing any previous value.
func (m *ShardedMap[V]) Store(key string, value V) {
	s := m.shardFor(key)
	s.mu.Lock()
	s.items[key] = value
	s.mu.Unlock()
}

// LoadOrStore returns the existing value for key if present. Otherwise it
// stores value and returns it with loaded == false.
func (m *ShardedMap[V]) LoadOrStore(key string, value V) (actual V, loaded bool) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.items[key]; ok {
		return existing, true
	}
	s.items[key] = value
	return value, false
}

// Delete removes key and reports whether it was present.
func (m *ShardedMap[V]) Delete(key string) bool {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[key]; !ok {
		return false
	}
	delete(s.items, key)
	return true
}

// DeleteIf removes key only when match returns true for its current value.
func (m *ShardedMap[V]) DeleteIf(key string, match func(V) bool) bool {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items[key]
	if !ok || !match(v) {
		return false
	}
	delete(s.items, key)
	return true
}

// Update atomically replaces the value under key with the result of fn. fn
// receives the current value and whether it exists; returning keep == false
// removes the key.
func (m *ShardedMap[V]) Update(key string, fn func(current V, exists bool) (next V, keep bool)) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists := s.items[key]
	next, keep := fn(current, exists)
	if keep {
		s.items[key] = next
	} else if exists {
		delete(s.items, key)
	}
}

// Range calls fn for every entry, one shard at a time. fn must not call back
// into the map. Returning false stops the iteration.
func (m *ShardedMap[V]) Range(fn func(key string, value V) bool) {
	for _, s := range m.shards {
		s.mu.RLock()
		for k, v := range s.items {
			if !fn(k, v) {
				s.mu.RUnlock()
				return
			}
		}
		s.mu.RUnlock()
	}
}

// Len returns the number of entries across all shards.
func (m *ShardedMap[V]) Len() int {
	n := 0
	for _, s := range m.shards {
		s.mu.RLock()
		n += len(s.items)
		s.mu.RUnlock()
	}
	return n
}

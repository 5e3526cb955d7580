package registry

import (
	"hash/fnv"
	"sync"
)

// shardCount is the number of stripes in a sharded map. Contention is
// per-shard, so this bounds how many concurrent writers can collide.
const shardCount = 32

// shardedMap is a string-keyed concurrent map striped across shardCount
// locks. Every mutation is atomic per key; readers observe a consistent
// snapshot of a single entry. No cross-entry consistency is provided.
type shardedMap[V any] struct {
	shards [shardCount]mapShard[V]
}

type mapShard[V any] struct {
	mu      sync.RWMutex
	entries map[string]V
}

func newShardedMap[V any]() *shardedMap[V] {
	m := &shardedMap[V]{}
	for i := range m.shards {
		m.shards[i].entries = make(map[string]V)
	}
	return m
}

func (m *shardedMap[V]) shard(key string) *mapShard[V] {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &m.shards[h.Sum32()%shardCount]
}

// get returns a copy of the value for key.
func (m *shardedMap[V]) get(key string) (V, bool) {
	s := m.shard(key)
	s.mu.RLock()
	v, ok := s.entries[key]
	s.mu.RUnlock()
	return v, ok
}

// set stores the value for key.
func (m *shardedMap[V]) set(key string, value V) {
	s := m.shard(key)
	s.mu.Lock()
	s.entries[key] = value
	s.mu.Unlock()
}

// delete removes key.
func (m *shardedMap[V]) delete(key string) {
	s := m.shard(key)
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// update applies fn to the current value for key (zero value if absent)
// and stores the result, all under the shard lock. fn must not block.
func (m *shardedMap[V]) update(key string, fn func(current V, exists bool) V) V {
	s := m.shard(key)
	s.mu.Lock()
	current, ok := s.entries[key]
	next := fn(current, ok)
	s.entries[key] = next
	s.mu.Unlock()
	return next
}

// updateExisting applies fn only when key is present.
func (m *shardedMap[V]) updateExisting(key string, fn func(current V) V) bool {
	s := m.shard(key)
	s.mu.Lock()
	current, ok := s.entries[key]
	if ok {
		s.entries[key] = fn(current)
	}
	s.mu.Unlock()
	return ok
}

// length returns the total entry count across shards.
func (m *shardedMap[V]) length() int {
	n := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}

// forEach calls fn for every entry. Each shard is locked only while its
// entries are visited; fn must not call back into the map.
func (m *shardedMap[V]) forEach(fn func(key string, value V)) {
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		for k, v := range s.entries {
			fn(k, v)
		}
		s.mu.RUnlock()
	}
}

// deleteIf removes every entry for which fn returns true, returning the
// number removed.
func (m *shardedMap[V]) deleteIf(fn func(key string, value V) bool) int {
	removed := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		for k, v := range s.entries {
			if fn(k, v) {
				delete(s.entries, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Package store provides the hash-keyed object store backing each resource
// kind of the cache.
//
// One Store instance is created per resource kind (shader modules, pipeline
// layouts, descriptor-set layouts, descriptor pools, descriptor sets, render
// passes, graphics pipelines, compute pipelines, framebuffers). Each instance
// owns its own lock, so requests for unrelated kinds never serialize against
// each other, while GetOrCreate still guarantees at most one construction per
// key within a kind.
package store

import (
	"sync"
	"sync/atomic"
)

// Store is a thread-safe map from content hash to a cached object.
//
// Entries are never evicted individually: an entry inserted for a key stays
// until Clear. Lookups use a read lock; construction holds the write lock
// across the whole lookup-or-build-insert sequence.
type Store[V any] struct {
	mu      sync.RWMutex
	entries map[uint64]V

	// Statistics (atomic for lock-free reads).
	hits   atomic.Uint64
	misses atomic.Uint64
}

// Stats reports cache effectiveness counters for one resource kind.
type Stats struct {
	Len     int
	Hits    uint64
	Misses  uint64
	HitRate float64
}

// New creates an empty store.
func New[V any]() *Store[V] {
	return &Store[V]{
		entries: make(map[uint64]V),
	}
}

// Get retrieves a cached value by key.
// Returns (value, true) if found, (zero, false) otherwise.
func (s *Store[V]) Get(key uint64) (V, bool) {
	s.mu.RLock()
	v, ok := s.entries[key]
	s.mu.RUnlock()
	if ok {
		s.hits.Add(1)
		return v, true
	}
	s.misses.Add(1)
	var zero V
	return zero, false
}

// GetOrCreate returns the cached value for key, building and inserting it if
// absent.
//
// The build function runs with the store's write lock held, so concurrent
// requests for the same key observe exactly one construction. Requests for
// other keys of the same kind block for the duration of the build; requests
// against other kinds (other Store instances) proceed in parallel. If build
// fails, nothing is inserted and the error is returned.
func (s *Store[V]) GetOrCreate(key uint64, build func() (V, error)) (V, error) {
	// Fast path: read lock.
	s.mu.RLock()
	if v, ok := s.entries[key]; ok {
		s.mu.RUnlock()
		s.hits.Add(1)
		return v, nil
	}
	s.mu.RUnlock()

	// Slow path: write lock with double-check.
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.entries[key]; ok {
		s.hits.Add(1)
		return v, nil
	}

	s.misses.Add(1)

	v, err := build()
	if err != nil {
		var zero V
		return zero, err
	}
	s.entries[key] = v
	return v, nil
}

// Insert stores a value under key, replacing any existing entry.
func (s *Store[V]) Insert(key uint64, v V) {
	s.mu.Lock()
	s.entries[key] = v
	s.mu.Unlock()
}

// Delete removes an entry. Returns true if the entry existed.
func (s *Store[V]) Delete(key uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; !ok {
		return false
	}
	delete(s.entries, key)
	return true
}

// Range calls fn for each entry under the read lock until fn returns false.
// fn must not call back into the store.
func (s *Store[V]) Range(fn func(key uint64, v V) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, v := range s.entries {
		if !fn(k, v) {
			return
		}
	}
}

// Mutate hands fn the live entry map under the write lock.
//
// This is the maintenance hook for bulk rewrites that must be atomic with
// respect to concurrent requests of the same kind, such as re-keying
// descriptor sets after an image view swap. fn must not call back into the
// store and must leave the map internally consistent.
func (s *Store[V]) Mutate(fn func(entries map[uint64]V)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.entries)
}

// Keys returns a snapshot of all keys in unspecified order.
func (s *Store[V]) Keys() []uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]uint64, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of cached entries.
func (s *Store[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear removes every entry, calling destroy on each value first when
// destroy is non-nil. Statistics reset to zero.
//
// Callers must guarantee no outstanding use of the evicted objects; the
// store performs no reference counting or deferred destruction.
func (s *Store[V]) Clear(destroy func(V)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if destroy != nil {
		for _, v := range s.entries {
			destroy(v)
		}
	}
	s.entries = make(map[uint64]V)
	s.hits.Store(0)
	s.misses.Store(0)
}

// Stats returns current counters. Mostly lock-free; Len takes the read lock.
func (s *Store[V]) Stats() Stats {
	hits := s.hits.Load()
	misses := s.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Len:     s.Len(),
		Hits:    hits,
		Misses:  misses,
		HitRate: hitRate,
	}
}

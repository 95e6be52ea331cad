package cancel

import "sync"

// SafeMap is a mutex-guarded map. Iteration helpers operate on snapshots so
// callers never observe the live container while it mutates.
//
// Go mutexes are not re-entrant, so multi-step sequences use the Atomic
// scope: the lock is taken once and the callback works on the raw map.
type SafeMap[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

// NewSafeMap creates an empty SafeMap.
func NewSafeMap[K comparable, V any]() *SafeMap[K, V] {
	return &SafeMap[K, V]{m: make(map[K]V)}
}

// Get returns the value for key and whether it was present.
func (s *SafeMap[K, V]) Get(key K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok
}

// Set stores value under key.
func (s *SafeMap[K, V]) Set(key K, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
}

// Delete removes key. It is a no-op if the key is absent.
func (s *SafeMap[K, V]) Delete(key K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
}

// Update applies fn to the current value for key (zero value if absent) and
// stores the result, all under one lock acquisition.
func (s *SafeMap[K, V]) Update(key K, fn func(V) V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = fn(s.m[key])
}

// Len returns the number of entries.
func (s *SafeMap[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

// Keys returns a snapshot of the keys.
func (s *SafeMap[K, V]) Keys() []K {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]K, 0, len(s.m))
	for k := range s.m {
		keys = append(keys, k)
	}
	return keys
}

// Snapshot returns a copy of the map contents.
func (s *SafeMap[K, V]) Snapshot() map[K]V {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[K]V, len(s.m))
	for k, v := range s.m {
		out[k] = v
	}
	return out
}

// Atomic runs fn with exclusive access to the underlying map. fn must not
// call other SafeMap methods on the same instance.
func (s *SafeMap[K, V]) Atomic(fn func(m map[K]V)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.m)
}

// SafeList is a mutex-guarded slice with snapshot iteration.
type SafeList[T any] struct {
	mu    sync.RWMutex
	items []T
}

// NewSafeList creates an empty SafeList.
func NewSafeList[T any]() *SafeList[T] {
	return &SafeList[T]{}
}

// Append adds items to the end of the list.
func (s *SafeList[T]) Append(items ...T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, items...)
}

// Len returns the number of items.
func (s *SafeList[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Get returns the item at index i and whether the index was in range.
func (s *SafeList[T]) Get(i int) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.items) {
		var zero T
		return zero, false
	}
	return s.items[i], true
}

// Snapshot returns a copy of the list contents.
func (s *SafeList[T]) Snapshot() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

// RemoveFunc removes all items for which match returns true and reports the
// number removed.
func (s *SafeList[T]) RemoveFunc(match func(T) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.items[:0]
	removed := 0
	for _, item := range s.items {
		if match(item) {
			removed++
			continue
		}
		kept = append(kept, item)
	}
	s.items = kept
	return removed
}

// Atomic runs fn with exclusive access to the underlying slice. The slice
// returned by fn replaces the list contents.
func (s *SafeList[T]) Atomic(fn func(items []T) []T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = fn(s.items)
}

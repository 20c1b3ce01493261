// Package weakmap provides a map whose values are held by weak pointers. An
// entry disappears once nothing else references its value, letting callers
// share a helper per identity without keeping it alive.
package weakmap

import (
	"runtime"
	"sync"
	"weak"
)

// Map maps comparable keys to weakly held *V values.
//
// The table is guarded by a mutex because cleanups for collected values run
// on a runtime goroutine.
type Map[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]weak.Pointer[V]
}

// New creates an empty map.
func New[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{entries: make(map[K]weak.Pointer[V])}
}

// Get returns the live value stored under k.
func (m *Map[K, V]) Get(k K) (*V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLocked(k)
}

func (m *Map[K, V]) getLocked(k K) (*V, bool) {
	wp, ok := m.entries[k]
	if !ok {
		return nil, false
	}
	v := wp.Value()
	if v == nil {
		delete(m.entries, k)
		return nil, false
	}
	return v, true
}

// GetOrCreate returns the live value under k, calling create and storing its
// result when there is none.
func (m *Map[K, V]) GetOrCreate(k K, create func() *V) *V {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.getLocked(k); ok {
		return v
	}
	v := create()
	m.putLocked(k, v)
	return v
}

// Put stores v under k, replacing any previous value.
func (m *Map[K, V]) Put(k K, v *V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putLocked(k, v)
}

func (m *Map[K, V]) putLocked(k K, v *V) {
	wp := weak.Make(v)
	m.entries[k] = wp
	runtime.AddCleanup(v, m.evict, cleanupArg[K, V]{key: k, ptr: wp})
}

// Delete removes the entry under k.
func (m *Map[K, V]) Delete(k K) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, k)
}

// Len returns the number of entries whose values are still alive.
func (m *Map[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, wp := range m.entries {
		if wp.Value() == nil {
			delete(m.entries, k)
			continue
		}
		n++
	}
	return n
}

type cleanupArg[K comparable, V any] struct {
	key K
	ptr weak.Pointer[V]
}

// evict drops the entry for a collected value unless the key has since been
// rebound to another value.
func (m *Map[K, V]) evict(arg cleanupArg[K, V]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.entries[arg.key]; ok && cur == arg.ptr {
		delete(m.entries, arg.key)
	}
}

// Package ttlmap provides a mutex-guarded map whose entries expire after a
// fixed time-to-live. Expiry is lazy: stale entries are dropped when they are
// next touched, not by a background timer. Every read or write of a live
// entry renews its lifetime.
package ttlmap

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value    V
	deadline time.Time
}

// Map is a string-keyed expiring map. A zero or negative TTL disables
// expiry entirely.
type Map[V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry[V]
	now     func() time.Time
}

func New[V any](ttl time.Duration) *Map[V] {
	return &Map[V]{
		ttl:     ttl,
		entries: map[string]entry[V]{},
		now:     time.Now,
	}
}

// SetClock overrides the time source. Intended for tests.
func (m *Map[V]) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Get returns the live value for key, renewing its lifetime. A stale entry
// is evicted and reported as absent.
func (m *Map[V]) Get(key string) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if m.expired(e) {
		delete(m.entries, key)
		var zero V
		return zero, false
	}
	e.deadline = m.deadline()
	m.entries[key] = e
	return e.value, true
}

// Set stores value under key with a fresh lifetime.
func (m *Map[V]) Set(key string, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry[V]{value: value, deadline: m.deadline()}
}

// Delete removes key if present.
func (m *Map[V]) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

// Clear removes all entries.
func (m *Map[V]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = map[string]entry[V]{}
}

// Len reports the number of live entries, evicting any that have gone stale.
func (m *Map[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, e := range m.entries {
		if m.expired(e) {
			delete(m.entries, key)
		}
	}
	return len(m.entries)
}

func (m *Map[V]) deadline() time.Time {
	if m.ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(m.ttl)
}

func (m *Map[V]) expired(e entry[V]) bool {
	if e.deadline.IsZero() {
		return false
	}
	return m.now().After(e.deadline)
}

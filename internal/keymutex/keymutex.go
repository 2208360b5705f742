// Package keymutex serializes work per string key.
//
// The resolver uses one lock per session key so that store mutations for a
// session have a single active writer, while work across distinct sessions
// proceeds fully in parallel. Entries are reference-counted and removed when
// the last holder unlocks, so the map does not grow with the number of
// sessions ever seen.
package keymutex

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// KeyMutex provides mutual exclusion scoped to a key.
// The zero value is not usable; call New.
type KeyMutex struct {
	mu    sync.Mutex
	locks map[string]*entry
}

// New creates an empty KeyMutex.
func New() *KeyMutex {
	return &KeyMutex{locks: make(map[string]*entry)}
}

// Lock acquires the lock for key, blocking while another goroutine holds it.
func (m *KeyMutex) Lock(key string) {
	m.mu.Lock()
	e, ok := m.locks[key]
	if !ok {
		e = &entry{}
		m.locks[key] = e
	}
	e.refs++
	m.mu.Unlock()

	e.mu.Lock()
}

// Unlock releases the lock for key. It must only be called by the current
// holder.
func (m *KeyMutex) Unlock(key string) {
	m.mu.Lock()
	e, ok := m.locks[key]
	if !ok {
		m.mu.Unlock()
		panic("keymutex: unlock of unheld key " + key)
	}
	e.refs--
	if e.refs == 0 {
		delete(m.locks, key)
	}
	m.mu.Unlock()

	e.mu.Unlock()
}

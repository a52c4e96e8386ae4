// Package keylock provides mutual exclusion keyed by record id.
package keylock

import (
	"sync"

	"github.com/google/uuid"
)

type entry struct {
	mu   sync.Mutex
	refs int
}

// Map hands out one mutex per key. Entries are dropped once nobody holds or
// waits on them, so the map only grows with the number of keys in flight.
type Map struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*entry
}

func New() *Map {
	return &Map{entries: make(map[uuid.UUID]*entry)}
}

// Lock blocks until the key is free and returns the matching unlock func.
func (m *Map) Lock(key uuid.UUID) func() {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		e = &entry{}
		m.entries[key] = e
	}
	e.refs++
	m.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()

			m.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(m.entries, key)
			}
			m.mu.Unlock()
		})
	}
}

// Len reports how many keys are currently held or waited on.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

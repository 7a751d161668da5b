// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package lazy provides a map whose values may be computed on first access.
package lazy

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned when deleting a key that is not present.
var ErrNotFound = errors.New("lazy: key not found")

type entry[V any] struct {
	once  sync.Once
	value V
	fn    func() V
}

func (e *entry[V]) get() V {
	e.once.Do(func() {
		if e.fn != nil {
			e.value = e.fn()
		}
	})
	return e.value
}

// Map is an insertion-ordered map whose entries are either values or
// functions evaluated once, on first access. Map is safe for concurrent use.
// The zero value is an empty map.
type Map[V any] struct {
	mu      sync.RWMutex
	keys    []string
	entries map[string]*entry[V]
}

// Set stores a value for key, replacing any existing entry.
func (m *Map[V]) Set(key string, v V) {
	m.put(key, &entry[V]{value: v})
}

// SetLazy stores fn for key; fn is called the first time key is read.
func (m *Map[V]) SetLazy(key string, fn func() V) {
	m.put(key, &entry[V]{fn: fn})
}

func (m *Map[V]) put(key string, e *entry[V]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		m.entries = map[string]*entry[V]{}
	}
	if _, ok := m.entries[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.entries[key] = e
}

// Get returns the value for key, evaluating a lazy entry if needed.
func (m *Map[V]) Get(key string) (V, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		var zero V
		return zero, false
	}
	return e.get(), true
}

// Has reports whether key is present without evaluating it.
func (m *Map[V]) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[key]
	return ok
}

// Delete removes key.
func (m *Map[V]) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	delete(m.entries, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
	return nil
}

// Len returns the number of entries.
func (m *Map[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Keys returns the keys in insertion order.
func (m *Map[V]) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.keys...)
}

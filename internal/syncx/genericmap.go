// Copyright 2025 The ModelBench Authors
// SPDX-License-Identifier: Apache-2.0

// Package syncx holds small concurrency helpers.
package syncx

import (
	"iter"
	"sync"
)

// Map is a type-safe wrapper around sync.Map with iterator accessors.
type Map[K comparable, V any] struct {
	m sync.Map
}

// Load returns the value stored for a key, or the zero value if absent.
// The ok result indicates whether the key was found.
func (m *Map[K, V]) Load(key K) (value V, ok bool) {
	v, ok := m.m.Load(key)
	if !ok {
		var zero V
		return zero, false
	}
	return v.(V), true
}

// Store sets the value for a key.
func (m *Map[K, V]) Store(key K, value V) {
	m.m.Store(key, value)
}

// Delete deletes the value for a key.
func (m *Map[K, V]) Delete(key K) {
	m.m.Delete(key)
}

// Range calls f sequentially for each key and value present in the map.
// If f returns false, range stops the iteration.
func (m *Map[K, V]) Range(f func(key K, value V) bool) {
	m.m.Range(func(key, value any) bool {
		return f(key.(K), value.(V))
	})
}

// Values returns an iterator over the values in the map. The iteration
// order is not specified.
func (m *Map[K, V]) Values() iter.Seq[V] {
	return func(yield func(V) bool) {
		m.m.Range(func(key, value any) bool {
			return yield(value.(V))
		})
	}
}

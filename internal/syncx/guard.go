// Package syncx provides extended synchronization primitives
package syncx

import "sync"

// RWGuard wraps an RWMutex around a value with scoped accessors. The pipeline
// uses it for hot-swappable state (settings, latest outcome); the version
// counter lets readers detect swaps without comparing values.
type RWGuard[T any] struct {
	mu      sync.RWMutex
	value   T
	version uint64
}

// NewGuard creates a guarded value at version 0.
func NewGuard[T any](initial T) *RWGuard[T] {
	return &RWGuard[T]{value: initial}
}

// Get returns a copy of the value (T should be a value type or immutable).
func (g *RWGuard[T]) Get() T {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.value
}

// With executes fn under the read lock.
func (g *RWGuard[T]) With(fn func(T)) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	fn(g.value)
}

// Set replaces the value and bumps the version.
func (g *RWGuard[T]) Set(v T) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value = v
	g.version++
}

// Swap replaces the value, bumps the version, and returns the old value.
func (g *RWGuard[T]) Swap(v T) T {
	g.mu.Lock()
	defer g.mu.Unlock()
	old := g.value
	g.value = v
	g.version++
	return old
}

// Update mutates the value in place under the write lock.
func (g *RWGuard[T]) Update(fn func(*T)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(&g.value)
	g.version++
}

// Version returns the number of mutations applied so far.
func (g *RWGuard[T]) Version() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.version
}

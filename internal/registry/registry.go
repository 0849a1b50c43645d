// Package registry provides a name-keyed collection that enforces unique names.
package registry

import (
	"errors"
	"iter"
	"slices"
	"sync"
)

var (
	// ErrAlreadyExists is returned by Create when the name is taken.
	ErrAlreadyExists = errors.New("registry: name already exists")
	// ErrNotFound is returned by Lookup when no entry has the name.
	ErrNotFound = errors.New("registry: name not found")
)

// Registry maps names to values. It is safe for concurrent use.
type Registry[T any] struct {
	mu      sync.RWMutex
	entries map[string]T
	order   []string
}

// New constructs an empty registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{
		entries: make(map[string]T),
	}
}

// Create inserts value under name unless the name is already taken.
func (r *Registry[T]) Create(name string, value T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[name]; ok {
		return ErrAlreadyExists
	}
	r.entries[name] = value
	r.order = append(r.order, name)
	return nil
}

// Lookup returns the value stored under name.
func (r *Registry[T]) Lookup(name string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	value, ok := r.entries[name]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	return value, nil
}

// Remove deletes name. Removing an absent name is a no-op.
func (r *Registry[T]) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[name]; !ok {
		return
	}
	delete(r.entries, name)
	r.order = slices.DeleteFunc(r.order, func(n string) bool { return n == name })
}

// Len reports the number of entries.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// All yields the entries in insertion order. Each iteration works on a
// snapshot taken when it starts, so the lock is never held while yielding.
func (r *Registry[T]) All() iter.Seq2[string, T] {
	return func(yield func(string, T) bool) {
		r.mu.RLock()
		names := append([]string(nil), r.order...)
		values := make([]T, len(names))
		for i, name := range names {
			values[i] = r.entries[name]
		}
		r.mu.RUnlock()

		for i, name := range names {
			if !yield(name, values[i]) {
				return
			}
		}
	}
}

// RemoveIf deletes name only when match accepts the stored value, and reports
// whether it did.
func (r *Registry[T]) RemoveIf(name string, match func(T) bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	value, ok := r.entries[name]
	if !ok || !match(value) {
		return false
	}
	delete(r.entries, name)
	r.order = slices.DeleteFunc(r.order, func(n string) bool { return n == name })
	return true
}

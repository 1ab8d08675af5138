// Package history keeps a bounded, ordered window of the most recent
// broadcast messages so newly joined clients can be brought up to date.
package history

import "sync"

// DefaultCapacity is the number of entries retained when no capacity is given.
const DefaultCapacity = 1000

// Buffer is a fixed-capacity ring of values in append order. Once full,
// each Append silently evicts the oldest entry.
type Buffer[T any] struct {
	mu    sync.RWMutex
	items []T
	start int
	size  int
}

// New creates a Buffer holding at most capacity entries.
func New[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

// Append adds v as the newest entry.
func (b *Buffer[T]) Append(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	capacity := len(b.items)
	if b.size < capacity {
		b.items[(b.start+b.size)%capacity] = v
		b.size++
		return
	}

	// Full: overwrite the oldest slot and advance the head.
	b.items[b.start] = v
	b.start = (b.start + 1) % capacity
}

// Recent returns up to limit of the newest entries, oldest first. A limit of
// zero or less, or one larger than the buffer, returns every retained entry.
// The returned slice is a copy.
func (b *Buffer[T]) Recent(limit int) []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if limit <= 0 || limit > b.size {
		limit = b.size
	}

	capacity := len(b.items)
	result := make([]T, limit)
	first := b.start + b.size - limit
	for i := range limit {
		result[i] = b.items[(first+i)%capacity]
	}
	return result
}

// Len returns the number of retained entries.
func (b *Buffer[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Cap returns the maximum number of retained entries.
func (b *Buffer[T]) Cap() int {
	return len(b.items)
}

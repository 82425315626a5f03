// Package store holds raw trace records between ingestion and archive
// builds. Live ingestion appends records concurrently; builds read a
// consistent snapshot and rebuild the archive when the generation counter
// moves.
package store

import "sync"

// RingBuffer is a thread-safe fixed-capacity buffer. Once full, a new
// item overwrites the oldest one.
type RingBuffer[T any] struct {
	mu       sync.RWMutex
	items    []T
	capacity int
	head     int
	size     int
}

func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity <= 0 {
		panic("ring buffer capacity must be greater than zero")
	}
	return &RingBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Add inserts an item, evicting the oldest if the buffer is full. The
// evicted item is returned so callers can release bookkeeping tied to it.
func (rb *RingBuffer[T]) Add(item T) (evicted T, wasFull bool) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.size == rb.capacity {
		evicted = rb.items[rb.head]
		wasFull = true
	}
	rb.items[rb.head] = item
	rb.head = (rb.head + 1) % rb.capacity
	if rb.size < rb.capacity {
		rb.size++
	}
	return evicted, wasFull
}

// All returns the contents oldest-first. The slice is a copy.
func (rb *RingBuffer[T]) All() []T {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if rb.size == 0 {
		return nil
	}

	out := make([]T, rb.size)
	if rb.size < rb.capacity {
		copy(out, rb.items[:rb.size])
	} else {
		// Wrapped: head points at the oldest item.
		n := copy(out, rb.items[rb.head:])
		copy(out[n:], rb.items[:rb.head])
	}
	return out
}

func (rb *RingBuffer[T]) Size() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.size
}

func (rb *RingBuffer[T]) Capacity() int {
	return rb.capacity
}

// Clear empties the buffer without releasing its backing array.
func (rb *RingBuffer[T]) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.size = 0
	rb.head = 0
}

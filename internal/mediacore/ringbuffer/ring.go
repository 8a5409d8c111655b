// Package ringbuffer provides a bounded, thread-safe circular container that
// keeps the most recent items and overwrites the oldest once full.
package ringbuffer

import (
	"math"
	"sync"
	"time"
)

// RingBuffer holds at most Cap() items in insertion order. All operations take
// an internal mutex held only for the O(1) mutation or the copy in Snapshot.
type RingBuffer[T any] struct {
	mu    sync.Mutex
	items []T
	head  int // index of the oldest item
	count int
	total uint64 // items ever pushed since the last Clear or Resize
}

// New creates a ring buffer. Capacities below 1 are raised to 1.
func New[T any](capacity int) *RingBuffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer[T]{items: make([]T, capacity)}
}

// CapacityFor derives the item capacity for holding duration of a stream
// delivering rate items per second, rounded up.
func CapacityFor(duration time.Duration, rate float64) int {
	n := int(math.Ceil(duration.Seconds() * rate))
	if n < 1 {
		return 1
	}
	return n
}

// Push appends item, evicting the oldest item when the buffer is full.
func (r *RingBuffer[T]) Push(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	capacity := len(r.items)
	if r.count < capacity {
		r.items[(r.head+r.count)%capacity] = item
		r.count++
	} else {
		r.items[r.head] = item
		r.head = (r.head + 1) % capacity
	}
	r.total++
}

// Snapshot returns a copy of the contents, oldest first. A concurrent Push is
// either fully included or fully excluded.
func (r *RingBuffer[T]) Snapshot() []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]T, r.count)
	capacity := len(r.items)
	first := min(r.count, capacity-r.head)
	copy(out, r.items[r.head:r.head+first])
	copy(out[first:], r.items[:r.count-first])
	return out
}

// Newest returns the most recently pushed item.
func (r *RingBuffer[T]) Newest() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	if r.count == 0 {
		return zero, false
	}
	return r.items[(r.head+r.count-1)%len(r.items)], true
}

// Clear empties the buffer and releases references to the evicted items.
func (r *RingBuffer[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	clear(r.items)
	r.head = 0
	r.count = 0
	r.total = 0
}

// Resize replaces the capacity. Existing contents are discarded.
func (r *RingBuffer[T]) Resize(capacity int) {
	if capacity < 1 {
		capacity = 1
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.items = make([]T, capacity)
	r.head = 0
	r.count = 0
	r.total = 0
}

// Len returns the number of items currently held.
func (r *RingBuffer[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Cap returns the capacity.
func (r *RingBuffer[T]) Cap() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Usage returns the fill level in the range [0, 1].
func (r *RingBuffer[T]) Usage() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return float64(r.count) / float64(len(r.items))
}

// Pushed returns the number of items pushed since the last Clear or Resize,
// including evicted ones.
func (r *RingBuffer[T]) Pushed() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

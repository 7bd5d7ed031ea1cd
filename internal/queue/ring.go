// Package queue provides the fixed-capacity drop-oldest ring buffer used for
// all bounded buffering in the kernel (local/outbound message queues, the
// loopback transport). Capacity is fixed at construction; the backing array
// never reallocates.
package queue

// Ring is a bounded FIFO with drop-oldest overflow semantics. Push always
// accepts the new element; when the ring is full the logically-oldest element
// is evicted first and the drop counter increments.
//
// Ring is not safe for concurrent use. The kernel is single-threaded by
// design; every queue is owned by exactly one component.
type Ring[T any] struct {
	buf     []T
	head    int // index of the oldest element
	size    int
	dropped uint64
}

// NewRing returns a ring with the given capacity. Capacity must be >= 1;
// anything lower is clamped to 1 so a misconfigured queue degrades to
// "last value wins" rather than panicking mid-tick.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends item, evicting the oldest element first if the ring is full.
func (r *Ring[T]) Push(item T) {
	if r.size == len(r.buf) {
		// Evict the oldest by advancing head.
		var zero T
		r.buf[r.head] = zero
		r.head = (r.head + 1) % len(r.buf)
		r.size--
		r.dropped++
	}
	r.buf[(r.head+r.size)%len(r.buf)] = item
	r.size++
}

// Pop removes and returns the oldest element.
func (r *Ring[T]) Pop() (T, bool) {
	var zero T
	if r.size == 0 {
		return zero, false
	}
	item := r.buf[r.head]
	r.buf[r.head] = zero
	r.head = (r.head + 1) % len(r.buf)
	r.size--
	return item, true
}

// Peek returns the oldest element without removing it.
func (r *Ring[T]) Peek() (T, bool) {
	var zero T
	if r.size == 0 {
		return zero, false
	}
	return r.buf[r.head], true
}

// Len returns the number of buffered elements.
func (r *Ring[T]) Len() int { return r.size }

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int { return len(r.buf) }

// Dropped returns the total number of elements evicted by overflow.
func (r *Ring[T]) Dropped() uint64 { return r.dropped }

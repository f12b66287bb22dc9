// Package tape keeps a bounded, per-symbol history of executed trades and
// the running trade statistics accumulated from them. All buffers are
// fixed-capacity rings so memory stays O(1) per symbol regardless of feed
// duration.
package tape

// Ring is a fixed-capacity ring buffer that overwrites its oldest entry on
// overflow. The zero value is not usable; construct with NewRing.
type Ring[T any] struct {
	buf   []T
	start int
	size  int
}

// NewRing creates a ring holding at most capacity entries. Capacity must be
// positive.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends v, evicting the oldest entry when the ring is full.
func (r *Ring[T]) Push(v T) {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = v
		r.size++
		return
	}
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
}

// Len returns the number of entries currently held.
func (r *Ring[T]) Len() int {
	return r.size
}

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int {
	return len(r.buf)
}

// Last returns the most recent n entries in chronological order (oldest
// first, newest last). It returns all entries when n exceeds Len.
func (r *Ring[T]) Last(n int) []T {
	if n > r.size {
		n = r.size
	}
	if n <= 0 {
		return nil
	}
	out := make([]T, n)
	first := r.size - n
	for i := 0; i < n; i++ {
		out[i] = r.buf[(r.start+first+i)%len(r.buf)]
	}
	return out
}

// All returns every held entry in chronological order.
func (r *Ring[T]) All() []T {
	return r.Last(r.size)
}

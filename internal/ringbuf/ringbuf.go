// Package ringbuf provides a fixed-capacity, newest-first buffer.
package ringbuf

import "sync"

// Ring holds at most Cap() items. Push places the new item at index 0 and
// drops the oldest item once the capacity is exceeded.
type Ring[T any] struct {
	mu    sync.Mutex
	items []T
	max   int
}

// New returns a ring holding at most max items. A max below 1 is treated as 1.
func New[T any](max int) *Ring[T] {
	if max < 1 {
		max = 1
	}
	return &Ring[T]{items: make([]T, 0, max+1), max: max}
}

// Push prepends item and evicts the oldest entry if the ring is over capacity.
func (r *Ring[T]) Push(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, item)
	copy(r.items[1:], r.items[:len(r.items)-1])
	r.items[0] = item
	if len(r.items) > r.max {
		var zero T
		r.items[len(r.items)-1] = zero
		r.items = r.items[:r.max]
	}
}

// Items returns a copy of the contents, newest first.
func (r *Ring[T]) Items() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, len(r.items))
	copy(out, r.items)
	return out
}

func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

func (r *Ring[T]) Cap() int { return r.max }

// Reset empties the ring.
func (r *Ring[T]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.items)
	r.items = r.items[:0]
}

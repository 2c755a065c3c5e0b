// Package ringbuf provides a fixed-capacity circular buffer. Once full,
// every push overwrites the logically oldest element; the buffer never
// grows past the capacity it was constructed with.
package ringbuf

// Ring is a fixed-capacity circular buffer. It is not safe for concurrent
// use; the pipeline mutates it only from its coordinator goroutine.
type Ring[T any] struct {
	items []T
	head  int // index of the oldest element
	size  int
}

// New creates a ring with the given capacity. Capacity must be positive.
func New[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		panic("ringbuf: capacity must be positive")
	}
	return &Ring[T]{items: make([]T, capacity)}
}

// Push appends an item, overwriting the oldest element when full. O(1).
func (r *Ring[T]) Push(item T) {
	tail := (r.head + r.size) % len(r.items)
	r.items[tail] = item
	if r.size < len(r.items) {
		r.size++
		return
	}
	r.head = (r.head + 1) % len(r.items)
}

// Get returns the element at logical index i, where 0 is the oldest. O(1).
func (r *Ring[T]) Get(i int) (T, bool) {
	var zero T
	if i < 0 || i >= r.size {
		return zero, false
	}
	return r.items[(r.head+i)%len(r.items)], true
}

// ToSlice returns the contents oldest-to-newest. O(n).
func (r *Ring[T]) ToSlice() []T {
	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.items[(r.head+i)%len(r.items)]
	}
	return out
}

// Clear resets the ring to empty without reallocating. O(1) logically;
// retained backing elements are released lazily as slots are overwritten.
func (r *Ring[T]) Clear() {
	r.head = 0
	r.size = 0
}

// Len returns the number of elements currently held.
func (r *Ring[T]) Len() int { return r.size }

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int { return len(r.items) }

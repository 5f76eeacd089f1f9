package history

// ring is a fixed capacity circular array. head is the next write position and
// the chronological order is rebuilt from (head, count) alone.
type ring[T any] struct {
	data  []T
	head  int
	count int
}

func newRing[T any](capacity int) ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return ring[T]{data: make([]T, capacity)}
}

func (r *ring[T]) capacity() int {
	return len(r.data)
}

// push overwrites the oldest entry once the ring is full.
func (r *ring[T]) push(v T) {
	r.data[r.head] = v
	r.head = (r.head + 1) % len(r.data)
	if r.count < len(r.data) {
		r.count++
	}
}

// last returns a pointer to the most recently written slot.
func (r *ring[T]) last() (*T, bool) {
	if r.count == 0 {
		return nil, false
	}
	return &r.data[(len(r.data)+r.head-1)%len(r.data)], true
}

// newest copies up to max of the most recent entries, oldest first.
func (r *ring[T]) newest(max int) []T {
	if max > r.count {
		max = r.count
	}
	if max <= 0 {
		return []T{}
	}
	out := make([]T, max)
	tail := (len(r.data) + r.head - max) % len(r.data)
	for i := 0; i < max; i++ {
		out[i] = r.data[(tail+i)%len(r.data)]
	}
	return out
}

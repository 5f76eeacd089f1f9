package store

import "context"

// Cell is a single overwritten slot. Set replaces the whole value at once so
// readers never see a partially updated value.
type Cell[T any] struct {
	guard *Guard
	value T
	set   bool
}

func NewCell[T any]() *Cell[T] {
	return &Cell[T]{guard: NewGuard()}
}

// Set is used by the single producer and waits for the guard as long as needed.
func (c *Cell[T]) Set(v T) {
	c.guard.Lock()
	c.value = v
	c.set = true
	c.guard.Unlock()
}

// Get returns a copy of the value. ok is false while nothing was stored yet.
func (c *Cell[T]) Get(ctx context.Context) (v T, ok bool, err error) {
	if err := c.guard.LockContext(ctx); err != nil {
		return v, false, err
	}
	defer c.guard.Unlock()
	return c.value, c.set, nil
}

// View calls fn with the guard held. fn must not keep the pointer.
func (c *Cell[T]) View(ctx context.Context, fn func(v *T, ok bool)) error {
	if err := c.guard.LockContext(ctx); err != nil {
		return err
	}
	defer c.guard.Unlock()
	fn(&c.value, c.set)
	return nil
}

// Guard exposes the cell's guard, for callers that need to hold it across
// several operations.
func (c *Cell[T]) Guard() *Guard {
	return c.guard
}

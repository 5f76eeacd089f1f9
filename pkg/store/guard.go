// Package store holds the shared state that the ingestion side writes and the
// network side reads. Every value sits behind its own Guard.
package store

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// ErrGuardTimeout is returned when a guard could not be taken before the
// caller's context expired.
var ErrGuardTimeout = errors.New("timed out waiting for guard")

// Guard is a mutual exclusion lock whose acquisition can be abandoned.
// It is not reentrant.
type Guard struct {
	sem *semaphore.Weighted
}

func NewGuard() *Guard {
	return &Guard{sem: semaphore.NewWeighted(1)}
}

// Lock blocks until the guard is held.
func (g *Guard) Lock() {
	// Acquire only fails on a done context.
	_ = g.sem.Acquire(context.Background(), 1)
}

// LockContext waits for the guard until ctx is done. A free guard is taken even
// when ctx has already expired.
func (g *Guard) LockContext(ctx context.Context) error {
	if g.sem.TryAcquire(1) {
		return nil
	}
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%w: %w", ErrGuardTimeout, err)
	}
	return nil
}

// Unlock panics when the guard is not held.
func (g *Guard) Unlock() {
	g.sem.Release(1)
}

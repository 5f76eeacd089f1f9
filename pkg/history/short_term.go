// Package history keeps the bounded in-memory logs of recent readings.
package history

import (
	"context"
	"time"

	"github.com/NotCoffee418/emucs_p1_reader/pkg/store"
	"github.com/NotCoffee418/emucs_p1_reader/pkg/types"
)

// ShortTermDuration is the window covered by the short term log.
const ShortTermDuration = 15 * time.Minute

type ShortTermEntry struct {
	Timestamp         int64   `json:"timestamp"`
	CurrentAvgDemand  float32 `json:"currentAvgDemand"`
	CurrentPowerUsage float32 `json:"currentPowerUsage"`
}

func NewShortTermEntry(r *types.Reading) ShortTermEntry {
	return ShortTermEntry{
		Timestamp:         r.Timestamp,
		CurrentAvgDemand:  r.CurrentAvgDemand,
		CurrentPowerUsage: r.CurrentPowerUsage,
	}
}

// ShortTermCapacity returns the number of samples needed to cover
// ShortTermDuration when the meter sends one telegram per interval.
func ShortTermCapacity(interval time.Duration) int {
	if interval <= 0 {
		interval = time.Second
	}
	return int(ShortTermDuration / interval)
}

// ShortTermLog records one sample per telegram.
type ShortTermLog struct {
	guard *store.Guard
	ring  ring[ShortTermEntry]
}

func NewShortTermLog(capacity int) *ShortTermLog {
	return &ShortTermLog{
		guard: store.NewGuard(),
		ring:  newRing[ShortTermEntry](capacity),
	}
}

func (l *ShortTermLog) Append(entry ShortTermEntry) {
	l.guard.Lock()
	defer l.guard.Unlock()
	l.ring.push(entry)
}

// Read copies up to max of the most recent entries, oldest first.
func (l *ShortTermLog) Read(ctx context.Context, max int) ([]ShortTermEntry, error) {
	if err := l.guard.LockContext(ctx); err != nil {
		return nil, err
	}
	defer l.guard.Unlock()
	return l.ring.newest(max), nil
}

func (l *ShortTermLog) Len() int {
	l.guard.Lock()
	defer l.guard.Unlock()
	return l.ring.count
}

func (l *ShortTermLog) Cap() int {
	return l.ring.capacity()
}

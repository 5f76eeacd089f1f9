package history

import (
	"context"

	"github.com/NotCoffee418/emucs_p1_reader/pkg/esmutils"
	"github.com/NotCoffee418/emucs_p1_reader/pkg/store"
	"github.com/NotCoffee418/emucs_p1_reader/pkg/types"
)

// QuarterHourSeconds is the size of one long term bucket.
const QuarterHourSeconds = 15 * 60

// DefaultLongTermCapacity keeps 31 days of quarter hours.
const DefaultLongTermCapacity = 31 * 24 * 4

// QuarterHour returns the bucket number of a Unix timestamp.
func QuarterHour(ts int64) int64 {
	return ts / QuarterHourSeconds
}

// LongTermEntry holds the energy counters in Wh (kWh ×1000).
type LongTermEntry struct {
	Timestamp                   int64  `json:"timestamp"`
	ElectricityDeliveredTariff1 uint32 `json:"electricityDeliveredTariff1"`
	ElectricityDeliveredTariff2 uint32 `json:"electricityDeliveredTariff2"`
	ElectricityReturnedTariff1  uint32 `json:"electricityReturnedTariff1"`
	ElectricityReturnedTariff2  uint32 `json:"electricityReturnedTariff2"`
}

func NewLongTermEntry(r *types.Reading) LongTermEntry {
	return LongTermEntry{
		Timestamp:                   r.Timestamp,
		ElectricityDeliveredTariff1: esmutils.KwhToWh(float64(r.ElectricityDeliveredTariff1)),
		ElectricityDeliveredTariff2: esmutils.KwhToWh(float64(r.ElectricityDeliveredTariff2)),
		ElectricityReturnedTariff1:  esmutils.KwhToWh(float64(r.ElectricityReturnedTariff1)),
		ElectricityReturnedTariff2:  esmutils.KwhToWh(float64(r.ElectricityReturnedTariff2)),
	}
}

// LongTermLog keeps one entry per quarter hour. Within a quarter hour the
// latest entry wins, so a slot holds the counters at the end of its interval.
type LongTermLog struct {
	guard *store.Guard
	ring  ring[LongTermEntry]
}

func NewLongTermLog(capacity int) *LongTermLog {
	if capacity <= 0 {
		capacity = DefaultLongTermCapacity
	}
	return &LongTermLog{
		guard: store.NewGuard(),
		ring:  newRing[LongTermEntry](capacity),
	}
}

func (l *LongTermLog) Append(entry LongTermEntry) {
	l.guard.Lock()
	defer l.guard.Unlock()

	if last, ok := l.ring.last(); ok && QuarterHour(last.Timestamp) == QuarterHour(entry.Timestamp) {
		*last = entry
		return
	}
	l.ring.push(entry)
}

// Read copies up to max of the most recent entries, oldest first.
func (l *LongTermLog) Read(ctx context.Context, max int) ([]LongTermEntry, error) {
	if err := l.guard.LockContext(ctx); err != nil {
		return nil, err
	}
	defer l.guard.Unlock()
	return l.ring.newest(max), nil
}

func (l *LongTermLog) Len() int {
	l.guard.Lock()
	defer l.guard.Unlock()
	return l.ring.count
}

func (l *LongTermLog) Cap() int {
	return l.ring.capacity()
}

// Package meter bundles the state shared between ingestion, the predictor and
// the web API. One Meter is created at startup and handed to every task.
package meter

import (
	"sync"
	"sync/atomic"

	"github.com/NotCoffee418/emucs_p1_reader/pkg/history"
	"github.com/NotCoffee418/emucs_p1_reader/pkg/predictor"
	"github.com/NotCoffee418/emucs_p1_reader/pkg/store"
	"github.com/NotCoffee418/emucs_p1_reader/pkg/types"
)

// SubscriberQueueSize is the number of readings buffered per subscriber.
// Readings published while a subscriber's queue is full are dropped for it.
const SubscriberQueueSize = 16

type Meter struct {
	Reading   *store.Cell[types.Reading]
	ShortTerm *history.ShortTermLog
	LongTerm  *history.LongTermLog
	Forecast  *store.Cell[predictor.Forecast]

	subscribersMu sync.RWMutex
	subscribers   []chan types.Reading
	closed        bool
	wg            sync.WaitGroup
	dropped       atomic.Uint64
}

func New(shortTermCapacity, longTermCapacity int) *Meter {
	return &Meter{
		Reading:   store.NewCell[types.Reading](),
		ShortTerm: history.NewShortTermLog(shortTermCapacity),
		LongTerm:  history.NewLongTermLog(longTermCapacity),
		Forecast:  predictor.NewForecastCell(),
	}
}

// Subscribe registers fn to be called for every published reading. Each
// subscriber has its own goroutine and sees readings in publish order.
func (m *Meter) Subscribe(fn func(reading types.Reading)) {
	m.subscribersMu.Lock()
	defer m.subscribersMu.Unlock()
	if m.closed {
		return
	}

	queue := make(chan types.Reading, SubscriberQueueSize)
	m.subscribers = append(m.subscribers, queue)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for reading := range queue {
			fn(reading)
		}
	}()
}

// Publish replaces the current reading, appends to both logs and only then
// notifies subscribers. It must only be called from the ingestion task and
// never waits for a subscriber.
func (m *Meter) Publish(reading types.Reading) {
	m.Reading.Set(reading)
	m.ShortTerm.Append(history.NewShortTermEntry(&reading))
	m.LongTerm.Append(history.NewLongTermEntry(&reading))

	m.subscribersMu.RLock()
	defer m.subscribersMu.RUnlock()
	for _, queue := range m.subscribers {
		select {
		case queue <- reading:
		default:
			m.dropped.Add(1)
		}
	}
}

// Dropped returns how many notifications were skipped because a subscriber
// fell behind.
func (m *Meter) Dropped() uint64 {
	return m.dropped.Load()
}

// Close stops notifying subscribers and waits for queued readings to be
// delivered.
func (m *Meter) Close() {
	m.subscribersMu.Lock()
	if !m.closed {
		m.closed = true
		for _, queue := range m.subscribers {
			close(queue)
		}
		m.subscribers = nil
	}
	m.subscribersMu.Unlock()
	m.wg.Wait()
}

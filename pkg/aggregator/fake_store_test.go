package aggregator

import (
	"context"
	"sort"

	"github.com/NotCoffee418/emucs_p1_reader/pkg/meterdb"
)

// fakeStore keeps rows in memory with the same semantics as meterdb.
type fakeStore struct {
	quarters   map[int64]meterdb.QuarterHourReading
	gas        map[int64]meterdb.GasReading
	aggregates map[meterdb.Timeframe]map[int64]meterdb.UsageAggregate
	deletedAt  int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		quarters:   map[int64]meterdb.QuarterHourReading{},
		gas:        map[int64]meterdb.GasReading{},
		aggregates: map[meterdb.Timeframe]map[int64]meterdb.UsageAggregate{},
	}
}

func (f *fakeStore) InsertQuarterHourReading(_ context.Context, r *meterdb.QuarterHourReading) error {
	f.quarters[r.QuarterStart] = *r
	return nil
}

func (f *fakeStore) InsertGasReading(_ context.Context, r *meterdb.GasReading) error {
	if _, ok := f.gas[r.Timestamp]; !ok {
		f.gas[r.Timestamp] = *r
	}
	return nil
}

func (f *fakeStore) QuarterHourReadings(_ context.Context, from, to int64) ([]meterdb.QuarterHourReading, error) {
	var out []meterdb.QuarterHourReading
	for start, r := range f.quarters {
		if start >= from && start <= to {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuarterStart < out[j].QuarterStart })
	return out, nil
}

func (f *fakeStore) LastQuarterHourReadingBefore(_ context.Context, ts int64) (meterdb.QuarterHourReading, bool, error) {
	var best meterdb.QuarterHourReading
	found := false
	for start, r := range f.quarters {
		if start < ts && (!found || start > best.QuarterStart) {
			best, found = r, true
		}
	}
	return best, found, nil
}

func (f *fakeStore) LastGasReadingBefore(_ context.Context, ts int64) (meterdb.GasReading, bool, error) {
	var best meterdb.GasReading
	found := false
	for t, r := range f.gas {
		if t < ts && (!found || t > best.Timestamp) {
			best, found = r, true
		}
	}
	return best, found, nil
}

func (f *fakeStore) UpsertUsageAggregate(_ context.Context, a *meterdb.UsageAggregate) error {
	if f.aggregates[a.Timeframe] == nil {
		f.aggregates[a.Timeframe] = map[int64]meterdb.UsageAggregate{}
	}
	f.aggregates[a.Timeframe][a.StartTime] = *a
	return nil
}

func (f *fakeStore) UsageAggregates(_ context.Context, tf meterdb.Timeframe, from, to int64) ([]meterdb.UsageAggregate, error) {
	var out []meterdb.UsageAggregate
	for start, a := range f.aggregates[tf] {
		if start >= from && start <= to {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out, nil
}

func (f *fakeStore) LastAggregateStart(_ context.Context, tf meterdb.Timeframe) (int64, error) {
	var last int64
	for start := range f.aggregates[tf] {
		if start > last {
			last = start
		}
	}
	return last, nil
}

func (f *fakeStore) DeleteReadingsBefore(_ context.Context, cutoff int64) (int64, error) {
	f.deletedAt = cutoff
	var n int64
	for start := range f.quarters {
		if start < cutoff {
			delete(f.quarters, start)
			n++
		}
	}
	for ts := range f.gas {
		if ts < cutoff {
			delete(f.gas, ts)
			n++
		}
	}
	return n, nil
}

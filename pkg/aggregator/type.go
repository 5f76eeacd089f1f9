package aggregator

import (
	"context"

	"github.com/NotCoffee418/emucs_p1_reader/pkg/meterdb"
)

// ReadingWriter persists completed quarter hours. *meterdb.MeterDB implements it.
type ReadingWriter interface {
	InsertQuarterHourReading(ctx context.Context, r *meterdb.QuarterHourReading) error
	InsertGasReading(ctx context.Context, r *meterdb.GasReading) error
}

// Store is the part of *meterdb.MeterDB the aggregation needs.
type Store interface {
	QuarterHourReadings(ctx context.Context, from, to int64) ([]meterdb.QuarterHourReading, error)
	LastQuarterHourReadingBefore(ctx context.Context, ts int64) (meterdb.QuarterHourReading, bool, error)
	LastGasReadingBefore(ctx context.Context, ts int64) (meterdb.GasReading, bool, error)
	UpsertUsageAggregate(ctx context.Context, a *meterdb.UsageAggregate) error
	UsageAggregates(ctx context.Context, tf meterdb.Timeframe, from, to int64) ([]meterdb.UsageAggregate, error)
	LastAggregateStart(ctx context.Context, tf meterdb.Timeframe) (int64, error)
	DeleteReadingsBefore(ctx context.Context, cutoff int64) (int64, error)
}

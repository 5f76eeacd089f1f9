package meterdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/NotCoffee418/emucs_p1_reader/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestDB applies the up section of the embedded migrations directly.
func newTestDB(t *testing.T) *MeterDB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "meter.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	entries, err := migrationFS.ReadDir("migrations")
	require.NoError(t, err)
	for _, entry := range entries {
		content, err := migrationFS.ReadFile("migrations/" + entry.Name())
		require.NoError(t, err)
		up := strings.SplitN(string(content), "-- +down", 2)[0]
		_, err = db.Exec(up)
		require.NoError(t, err, entry.Name())
	}
	return New(db)
}

func TestOpenMigratesAndReopens(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "meter.db")

	db, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, db.InsertQuarterHourReading(ctx, &QuarterHourReading{
		QuarterStart:       1589291100,
		ReadingTimestamp:   1589291649,
		DeliveredTariff2Wh: 15758,
	}))
	require.NoError(t, db.InsertGasReading(ctx, &GasReading{Timestamp: 1589291158, ConsumptionDM3: 112384}))
	require.NoError(t, db.Close())

	// Applied migrations are skipped on the second open.
	db, err = Open(ctx, path)
	require.NoError(t, err)
	defer db.Close()

	readings, err := db.QuarterHourReadings(ctx, 1589291100, 1589291100)
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, uint32(15758), readings[0].DeliveredTariff2Wh)

	gas, ok, err := db.LastGasReadingBefore(ctx, 1589292000)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(112384), gas.ConsumptionDM3)
}

func TestNewQuarterHourReading(t *testing.T) {
	r := NewQuarterHourReading(&types.Reading{
		Timestamp:                   1589291649,
		ElectricityDeliveredTariff1: 0.034,
		ElectricityDeliveredTariff2: 15.758,
		ElectricityReturnedTariff2:  0.011,
		CurrentAvgDemand:            2.351,
	})
	assert.Equal(t, QuarterHourReading{
		QuarterStart:       1589291100,
		ReadingTimestamp:   1589291649,
		DeliveredTariff1Wh: 34,
		DeliveredTariff2Wh: 15758,
		ReturnedTariff2Wh:  11,
		AvgDemandW:         2351,
	}, r)
}

func TestNewGasReading(t *testing.T) {
	_, ok := NewGasReading(&types.Reading{})
	assert.False(t, ok)

	gas, ok := NewGasReading(&types.Reading{GasTimestamp: 1589291158, GasDelivered: 112.384})
	require.True(t, ok)
	assert.Equal(t, GasReading{Timestamp: 1589291158, ConsumptionDM3: 112384}, gas)
}

func TestQuarterHourReadings(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for i, start := range []int64{900, 1800, 2700} {
		require.NoError(t, db.InsertQuarterHourReading(ctx, &QuarterHourReading{
			QuarterStart:       start,
			ReadingTimestamp:   start + 899,
			DeliveredTariff1Wh: uint32(100 * (i + 1)),
		}))
	}
	// Same quarter again replaces the row.
	require.NoError(t, db.InsertQuarterHourReading(ctx, &QuarterHourReading{QuarterStart: 1800, ReadingTimestamp: 2699, DeliveredTariff1Wh: 250}))

	readings, err := db.QuarterHourReadings(ctx, 1800, 2700)
	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, uint32(250), readings[0].DeliveredTariff1Wh)
	assert.Equal(t, int64(3599), readings[1].ReadingTimestamp)

	prev, ok, err := db.LastQuarterHourReadingBefore(ctx, 1800)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(900), prev.QuarterStart)

	_, ok, err = db.LastQuarterHourReadingBefore(ctx, 900)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGasReadings(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.InsertGasReading(ctx, &GasReading{Timestamp: 100, ConsumptionDM3: 5000}))
	require.NoError(t, db.InsertGasReading(ctx, &GasReading{Timestamp: 100, ConsumptionDM3: 9999}))
	require.NoError(t, db.InsertGasReading(ctx, &GasReading{Timestamp: 400, ConsumptionDM3: 5100}))

	gas, ok, err := db.LastGasReadingBefore(ctx, 400)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(5000), gas.ConsumptionDM3)
}

func TestUsageAggregatesAndCleanup(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	last, err := db.LastAggregateStart(ctx, Hourly)
	require.NoError(t, err)
	assert.Equal(t, int64(0), last)

	require.NoError(t, db.UpsertUsageAggregate(ctx, &UsageAggregate{Timeframe: Hourly, StartTime: 3600, DeliveredTariff1Wh: 10, SampleCount: 4}))
	require.NoError(t, db.UpsertUsageAggregate(ctx, &UsageAggregate{Timeframe: Hourly, StartTime: 7200, DeliveredTariff1Wh: 20, SampleCount: 4}))
	require.NoError(t, db.UpsertUsageAggregate(ctx, &UsageAggregate{Timeframe: Daily, StartTime: 0, DeliveredTariff1Wh: 30, SampleCount: 8}))

	hourly, err := db.UsageAggregates(ctx, Hourly, 0, 7200)
	require.NoError(t, err)
	require.Len(t, hourly, 2)
	assert.Equal(t, Hourly, hourly[1].Timeframe)
	assert.Equal(t, uint32(20), hourly[1].DeliveredTariff1Wh)

	last, err = db.LastAggregateStart(ctx, Hourly)
	require.NoError(t, err)
	assert.Equal(t, int64(7200), last)

	require.NoError(t, db.InsertQuarterHourReading(ctx, &QuarterHourReading{QuarterStart: 900}))
	require.NoError(t, db.InsertQuarterHourReading(ctx, &QuarterHourReading{QuarterStart: 4500}))
	require.NoError(t, db.InsertGasReading(ctx, &GasReading{Timestamp: 1000}))

	deleted, err := db.DeleteReadingsBefore(ctx, 3600)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	readings, err := db.QuarterHourReadings(ctx, 0, 10000)
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, int64(4500), readings[0].QuarterStart)
}

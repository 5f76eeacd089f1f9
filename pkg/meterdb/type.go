package meterdb

import (
	"github.com/NotCoffee418/emucs_p1_reader/pkg/esmutils"
	"github.com/NotCoffee418/emucs_p1_reader/pkg/history"
	"github.com/NotCoffee418/emucs_p1_reader/pkg/types"
)

// QuarterHourReading is the last reading seen in a quarter hour, counters in Wh.
type QuarterHourReading struct {
	QuarterStart       int64  `db:"quarter_start"`
	ReadingTimestamp   int64  `db:"reading_timestamp"`
	DeliveredTariff1Wh uint32 `db:"delivered_tariff1_wh"`
	DeliveredTariff2Wh uint32 `db:"delivered_tariff2_wh"`
	ReturnedTariff1Wh  uint32 `db:"returned_tariff1_wh"`
	ReturnedTariff2Wh  uint32 `db:"returned_tariff2_wh"`
	AvgDemandW         uint32 `db:"avg_demand_w"`
}

func NewQuarterHourReading(r *types.Reading) QuarterHourReading {
	entry := history.NewLongTermEntry(r)
	return QuarterHourReading{
		QuarterStart:       history.QuarterHour(r.Timestamp) * history.QuarterHourSeconds,
		ReadingTimestamp:   r.Timestamp,
		DeliveredTariff1Wh: entry.ElectricityDeliveredTariff1,
		DeliveredTariff2Wh: entry.ElectricityDeliveredTariff2,
		ReturnedTariff1Wh:  entry.ElectricityReturnedTariff1,
		ReturnedTariff2Wh:  entry.ElectricityReturnedTariff2,
		AvgDemandW:         esmutils.KwToW(float64(r.CurrentAvgDemand)),
	}
}

type GasReading struct {
	Timestamp      int64  `db:"timestamp"`
	ConsumptionDM3 uint32 `db:"consumption_dm3"`
}

// NewGasReading returns false when the reading carries no gas measurement.
func NewGasReading(r *types.Reading) (GasReading, bool) {
	if r.GasTimestamp == 0 {
		return GasReading{}, false
	}
	return GasReading{
		Timestamp:      r.GasTimestamp,
		ConsumptionDM3: esmutils.M3ToDM3(float64(r.GasDelivered)),
	}, true
}

type Timeframe uint8

const (
	Hourly  Timeframe = 0
	Daily   Timeframe = 1
	Monthly Timeframe = 2
)

func (t Timeframe) String() string {
	switch t {
	case Hourly:
		return "hourly"
	case Daily:
		return "daily"
	case Monthly:
		return "monthly"
	}
	return "unknown"
}

// UsageAggregate holds the consumption deltas over one timeframe.
type UsageAggregate struct {
	Timeframe          Timeframe `db:"timeframe"`
	StartTime          int64     `db:"start_time"`
	DeliveredTariff1Wh uint32    `db:"delivered_tariff1_wh"`
	DeliveredTariff2Wh uint32    `db:"delivered_tariff2_wh"`
	ReturnedTariff1Wh  uint32    `db:"returned_tariff1_wh"`
	ReturnedTariff2Wh  uint32    `db:"returned_tariff2_wh"`
	GasDM3             uint32    `db:"gas_dm3"`
	PeakDemandW        uint32    `db:"peak_demand_w"`
	SampleCount        uint32    `db:"sample_count"`
}

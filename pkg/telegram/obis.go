package telegram

import (
	"time"

	"github.com/NotCoffee418/emucs_p1_reader/pkg/types"
)

// fieldParser fills the reading from one line. It reports false when a value
// could not be extracted; the field then keeps its zero value.
type fieldParser func(r *types.Reading, line string, loc *time.Location) bool

// The trailing 13 months list is "(count)(1-0:1.6.0)(1-0:1.6.0)" followed by
// "(month)(appearance)(value*kW)" per month.
const (
	maxDemandYearHeaderTokens = 3
	maxDemandYearRecordTokens = 3
)

var catalog = map[string]fieldParser{
	"0-0:96.1.4": stringField(func(r *types.Reading) *string { return &r.VersionInfo }, types.VersionInfoMaxLen),
	"0-0:96.1.1": stringField(func(r *types.Reading) *string { return &r.EquipmentID }, types.EquipmentIDMaxLen),
	"0-0:1.0.0":  timestampField(func(r *types.Reading) *int64 { return &r.Timestamp }),

	"1-0:1.8.1":   floatField(func(r *types.Reading) *float32 { return &r.ElectricityDeliveredTariff1 }),
	"1-0:1.8.2":   floatField(func(r *types.Reading) *float32 { return &r.ElectricityDeliveredTariff2 }),
	"1-0:2.8.1":   floatField(func(r *types.Reading) *float32 { return &r.ElectricityReturnedTariff1 }),
	"1-0:2.8.2":   floatField(func(r *types.Reading) *float32 { return &r.ElectricityReturnedTariff2 }),
	"0-0:96.14.0": uintField(func(r *types.Reading) *uint32 { return &r.TariffIndicator }),

	"1-0:1.4.0":  floatField(func(r *types.Reading) *float32 { return &r.CurrentAvgDemand }),
	"1-0:1.6.0":  parseMaxDemandMonth,
	"0-0:98.1.0": parseMaxDemandYear,

	"1-0:1.7.0":  floatField(func(r *types.Reading) *float32 { return &r.CurrentPowerUsage }),
	"1-0:2.7.0":  floatField(func(r *types.Reading) *float32 { return &r.CurrentPowerReturn }),
	"1-0:21.7.0": floatField(func(r *types.Reading) *float32 { return &r.CurrentPowerUsageL1 }),
	"1-0:41.7.0": floatField(func(r *types.Reading) *float32 { return &r.CurrentPowerUsageL2 }),
	"1-0:61.7.0": floatField(func(r *types.Reading) *float32 { return &r.CurrentPowerUsageL3 }),
	"1-0:22.7.0": floatField(func(r *types.Reading) *float32 { return &r.CurrentPowerReturnL1 }),
	"1-0:42.7.0": floatField(func(r *types.Reading) *float32 { return &r.CurrentPowerReturnL2 }),
	"1-0:62.7.0": floatField(func(r *types.Reading) *float32 { return &r.CurrentPowerReturnL3 }),

	"1-0:32.7.0": floatField(func(r *types.Reading) *float32 { return &r.VoltageL1 }),
	"1-0:52.7.0": floatField(func(r *types.Reading) *float32 { return &r.VoltageL2 }),
	"1-0:72.7.0": floatField(func(r *types.Reading) *float32 { return &r.VoltageL3 }),
	"1-0:31.7.0": floatField(func(r *types.Reading) *float32 { return &r.CurrentL1 }),
	"1-0:51.7.0": floatField(func(r *types.Reading) *float32 { return &r.CurrentL2 }),
	"1-0:71.7.0": floatField(func(r *types.Reading) *float32 { return &r.CurrentL3 }),

	"0-0:96.3.10": parseBreakerState,
	"0-0:17.0.0":  floatField(func(r *types.Reading) *float32 { return &r.LimiterThreshold }),
	"1-0:31.4.0":  floatField(func(r *types.Reading) *float32 { return &r.FuseSupervisionThreshold }),
	"0-0:96.13.0": stringField(func(r *types.Reading) *string { return &r.TextMessage }, types.TextMessageMaxLen),

	"0-1:24.1.0": uintField(func(r *types.Reading) *uint32 { return &r.GasDeviceType }),
	"0-1:96.1.1": stringField(func(r *types.Reading) *string { return &r.GasEquipmentID }, types.EquipmentIDMaxLen),
	"0-1:24.4.0": uintField(func(r *types.Reading) *uint32 { return &r.GasValveState }),
	"0-1:24.2.3": parseGasDelivered,
}

func stringField(field func(*types.Reading) *string, maxLen int) fieldParser {
	return func(r *types.Reading, line string, _ *time.Location) bool {
		v, ok := stringBetween(line, '(', ')', maxLen)
		*field(r) = v
		return ok
	}
}

func timestampField(field func(*types.Reading) *int64) fieldParser {
	return func(r *types.Reading, line string, loc *time.Location) bool {
		v, ok := timestampBetween(line, '(', ')', loc)
		*field(r) = v
		return ok
	}
}

func floatField(field func(*types.Reading) *float32) fieldParser {
	return func(r *types.Reading, line string, _ *time.Location) bool {
		v, ok := floatBetween(line, '(', '*')
		*field(r) = v
		return ok
	}
}

func uintField(field func(*types.Reading) *uint32) fieldParser {
	return func(r *types.Reading, line string, _ *time.Location) bool {
		v, ok := uintBetween(line, '(', ')')
		*field(r) = v
		return ok
	}
}

func parseBreakerState(r *types.Reading, line string, _ *time.Location) bool {
	v, ok := uintBetween(line, '(', ')')
	if v > uint32(types.BreakerUnknown) {
		v = uint32(types.BreakerUnknown)
	}
	r.BreakerState = types.BreakerState(v)
	return ok
}

// 1-0:1.6.0(200509134558S)(02.589*kW)
func parseMaxDemandMonth(r *types.Reading, line string, loc *time.Location) bool {
	ts, tsOk := timestampBetween(line, '(', ')', loc)
	demand, demandOk := floatBetween(afterCloseParens(line, 1), '(', '*')
	r.MaxDemandMonth = types.MaxDemand{Timestamp: ts, Demand: demand}
	return tsOk && demandOk
}

// 0-1:24.2.3(200512134558S)(00112.384*m3)
func parseGasDelivered(r *types.Reading, line string, loc *time.Location) bool {
	ts, tsOk := timestampBetween(line, '(', ')', loc)
	value, valueOk := floatBetween(afterCloseParens(line, 1), '(', '*')
	r.GasTimestamp = ts
	r.GasDelivered = value
	return tsOk && valueOk
}

// parseMaxDemandYear walks the line by counting ')' delimiters. It relies on the
// exact token layout the meter sends and does not try to resync on damaged input.
func parseMaxDemandYear(r *types.Reading, line string, loc *time.Location) bool {
	count, ok := uintBetween(line, '(', ')')
	if !ok {
		return false
	}
	if count > types.MaxDemandYearSize {
		count = types.MaxDemandYearSize
	}

	allOk := true
	for i := 0; i < int(count); i++ {
		record := afterCloseParens(line, maxDemandYearHeaderTokens+i*maxDemandYearRecordTokens)
		if record == "" {
			return false
		}
		month, monthOk := timestampBetween(record, '(', ')', loc)
		appearance, appearanceOk := timestampBetween(afterCloseParens(record, 1), '(', ')', loc)
		demand, demandOk := floatBetween(afterCloseParens(record, 2), '(', '*')

		r.MaxDemandYear[i] = types.MaxDemand{Month: month, Timestamp: appearance, Demand: demand}
		r.MaxDemandYearCount = uint8(i + 1)
		allOk = allOk && monthOk && appearanceOk && demandOk
	}
	return allOk
}

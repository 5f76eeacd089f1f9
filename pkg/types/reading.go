package types

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
)

// Maximum stored lengths of the string fields. Longer values are truncated.
const (
	VersionInfoMaxLen = 16
	EquipmentIDMaxLen = 96
	TextMessageMaxLen = 1024

	// MaxDemandYearSize is the number of monthly peaks kept for the trailing 13 months.
	MaxDemandYearSize = 13
)

type BreakerState uint8

const (
	BreakerDisconnected       BreakerState = 0
	BreakerConnected          BreakerState = 1
	BreakerReadyForConnection BreakerState = 2

	// BreakerUnknown is what out of range meter values are clamped to.
	BreakerUnknown BreakerState = math.MaxUint8
)

func (b BreakerState) String() string {
	switch b {
	case BreakerDisconnected:
		return "disconnected"
	case BreakerConnected:
		return "connected"
	case BreakerReadyForConnection:
		return "readyForConnection"
	}
	return "unknown"
}

// BreakerState is encoded by name in JSON. Values without a name are written
// as their decimal number so they survive a round trip.
func (b BreakerState) MarshalText() ([]byte, error) {
	switch b {
	case BreakerDisconnected, BreakerConnected, BreakerReadyForConnection:
		return []byte(b.String()), nil
	}
	return []byte(strconv.FormatUint(uint64(b), 10)), nil
}

func (b *BreakerState) UnmarshalText(text []byte) error {
	for _, s := range []BreakerState{BreakerDisconnected, BreakerConnected, BreakerReadyForConnection} {
		if s.String() == string(text) {
			*b = s
			return nil
		}
	}
	if string(text) == "unknown" {
		*b = BreakerUnknown
		return nil
	}
	v, err := strconv.ParseUint(string(text), 10, 8)
	if err != nil {
		return fmt.Errorf("unknown breaker state %q", text)
	}
	*b = BreakerState(v)
	return nil
}

// MaxDemand is one peak of the quarter-hour average demand.
// Month is only set for the entries of the trailing 13 months list.
type MaxDemand struct {
	Month     int64   `json:"month,omitempty"`
	Timestamp int64   `json:"timestamp"`
	Demand    float32 `json:"demand"`
}

// Reading holds every field of one parsed telegram.
// Fields whose code was absent or unparseable keep their zero value.
type Reading struct {
	VersionInfo string `json:"versionInfo"`
	EquipmentID string `json:"equipmentId"`
	Timestamp   int64  `json:"timestamp"`

	// Totals (kWh)
	ElectricityDeliveredTariff1 float32 `json:"electricityDeliveredTariff1"`
	ElectricityDeliveredTariff2 float32 `json:"electricityDeliveredTariff2"`
	ElectricityReturnedTariff1  float32 `json:"electricityReturnedTariff1"`
	ElectricityReturnedTariff2  float32 `json:"electricityReturnedTariff2"`
	TariffIndicator             uint32  `json:"electricityTariff"`

	// Capacity tariff (kW)
	CurrentAvgDemand   float32                      `json:"currentAvgDemand"`
	MaxDemandMonth     MaxDemand                    `json:"maxDemandMonth"`
	MaxDemandYear      [MaxDemandYearSize]MaxDemand `json:"-"`
	MaxDemandYearCount uint8                        `json:"-"`

	// Current consumption/production (kW)
	CurrentPowerUsage    float32 `json:"currentPowerUsage"`
	CurrentPowerReturn   float32 `json:"currentPowerReturn"`
	CurrentPowerUsageL1  float32 `json:"currentPowerUsageL1"`
	CurrentPowerUsageL2  float32 `json:"currentPowerUsageL2"`
	CurrentPowerUsageL3  float32 `json:"currentPowerUsageL3"`
	CurrentPowerReturnL1 float32 `json:"currentPowerReturnL1"`
	CurrentPowerReturnL2 float32 `json:"currentPowerReturnL2"`
	CurrentPowerReturnL3 float32 `json:"currentPowerReturnL3"`

	// Electrical info
	VoltageL1 float32 `json:"voltageL1"`
	VoltageL2 float32 `json:"voltageL2"`
	VoltageL3 float32 `json:"voltageL3"`
	CurrentL1 float32 `json:"currentL1"`
	CurrentL2 float32 `json:"currentL2"`
	CurrentL3 float32 `json:"currentL3"`

	// Switches/status
	BreakerState             BreakerState `json:"breakerState"`
	LimiterThreshold         float32      `json:"limiterThreshold"`
	FuseSupervisionThreshold float32      `json:"fuseSupervisionThreshold"`
	TextMessage              string       `json:"textMessage"`

	// Gas (M-Bus channel 1)
	GasDeviceType  uint32  `json:"gasDeviceType"`
	GasEquipmentID string  `json:"gasEquipmentId"`
	GasValveState  uint32  `json:"gasValveState"`
	GasTimestamp   int64   `json:"gasTimestamp"`
	GasDelivered   float32 `json:"gasDelivered"`
}

// MaxDemandYearEntries returns the populated part of the trailing 13 months list.
func (r *Reading) MaxDemandYearEntries() []MaxDemand {
	n := int(r.MaxDemandYearCount)
	if n > MaxDemandYearSize {
		n = MaxDemandYearSize
	}
	out := make([]MaxDemand, n)
	copy(out, r.MaxDemandYear[:n])
	return out
}

// The meter sends serial numbers and text as hex encoded ASCII.
// Values that are not valid hex are returned as they are.
func (r *Reading) DecodedEquipmentID() string {
	return decodeHexText(r.EquipmentID)
}

func (r *Reading) DecodedGasEquipmentID() string {
	return decodeHexText(r.GasEquipmentID)
}

func (r *Reading) DecodedTextMessage() string {
	return decodeHexText(r.TextMessage)
}

func decodeHexText(s string) string {
	if decoded, err := hex.DecodeString(s); err == nil {
		return string(decoded)
	}
	return s
}

package webapi

import (
	"encoding/json"
	"net/http"

	"github.com/NotCoffee418/emucs_p1_reader/pkg/types"
)

type basicData struct {
	Timestamp                   int64   `json:"timestamp"`
	ElectricityDeliveredTariff1 float32 `json:"electricityDeliveredTariff1"`
	ElectricityDeliveredTariff2 float32 `json:"electricityDeliveredTariff2"`
	ElectricityReturnedTariff1  float32 `json:"electricityReturnedTariff1"`
	ElectricityReturnedTariff2  float32 `json:"electricityReturnedTariff2"`
	CurrentAvgDemand            float32 `json:"currentAvgDemand"`
	CurrentPowerUsage           float32 `json:"currentPowerUsage"`
	CurrentPowerReturn          float32 `json:"currentPowerReturn"`
}

type demandPeak struct {
	Timestamp int64   `json:"timestamp"`
	Demand    float32 `json:"demand"`
}

type completeData struct {
	basicData
	VersionInfo              string             `json:"versionInfo"`
	EquipmentID              string             `json:"equipmentId"`
	ElectricityTariff        uint32             `json:"electricityTariff"`
	MaxDemandMonth           demandPeak         `json:"maxDemandMonth"`
	MaxDemandYear            []demandPeak       `json:"maxDemandYear"`
	CurrentPowerUsageL1      float32            `json:"currentPowerUsageL1"`
	CurrentPowerUsageL2      float32            `json:"currentPowerUsageL2"`
	CurrentPowerUsageL3      float32            `json:"currentPowerUsageL3"`
	CurrentPowerReturnL1     float32            `json:"currentPowerReturnL1"`
	CurrentPowerReturnL2     float32            `json:"currentPowerReturnL2"`
	CurrentPowerReturnL3     float32            `json:"currentPowerReturnL3"`
	VoltageL1                float32            `json:"voltageL1"`
	VoltageL2                float32            `json:"voltageL2"`
	VoltageL3                float32            `json:"voltageL3"`
	CurrentL1                float32            `json:"currentL1"`
	CurrentL2                float32            `json:"currentL2"`
	CurrentL3                float32            `json:"currentL3"`
	BreakerState             types.BreakerState `json:"breakerState"`
	LimiterThreshold         float32            `json:"limiterThreshold"`
	FuseSupervisionThreshold float32            `json:"fuseSupervisionThreshold"`
}

func newBasicData(r *types.Reading) basicData {
	return basicData{
		Timestamp:                   r.Timestamp,
		ElectricityDeliveredTariff1: r.ElectricityDeliveredTariff1,
		ElectricityDeliveredTariff2: r.ElectricityDeliveredTariff2,
		ElectricityReturnedTariff1:  r.ElectricityReturnedTariff1,
		ElectricityReturnedTariff2:  r.ElectricityReturnedTariff2,
		CurrentAvgDemand:            r.CurrentAvgDemand,
		CurrentPowerUsage:           r.CurrentPowerUsage,
		CurrentPowerReturn:          r.CurrentPowerReturn,
	}
}

func newCompleteData(r *types.Reading) completeData {
	year := make([]demandPeak, 0, r.MaxDemandYearCount)
	for _, peak := range r.MaxDemandYearEntries() {
		year = append(year, demandPeak{Timestamp: peak.Timestamp, Demand: peak.Demand})
	}
	return completeData{
		basicData:                newBasicData(r),
		VersionInfo:              r.VersionInfo,
		EquipmentID:              r.EquipmentID,
		ElectricityTariff:        r.TariffIndicator,
		MaxDemandMonth:           demandPeak{Timestamp: r.MaxDemandMonth.Timestamp, Demand: r.MaxDemandMonth.Demand},
		MaxDemandYear:            year,
		CurrentPowerUsageL1:      r.CurrentPowerUsageL1,
		CurrentPowerUsageL2:      r.CurrentPowerUsageL2,
		CurrentPowerUsageL3:      r.CurrentPowerUsageL3,
		CurrentPowerReturnL1:     r.CurrentPowerReturnL1,
		CurrentPowerReturnL2:     r.CurrentPowerReturnL2,
		CurrentPowerReturnL3:     r.CurrentPowerReturnL3,
		VoltageL1:                r.VoltageL1,
		VoltageL2:                r.VoltageL2,
		VoltageL3:                r.VoltageL3,
		CurrentL1:                r.CurrentL1,
		CurrentL2:                r.CurrentL2,
		CurrentL3:                r.CurrentL3,
		BreakerState:             r.BreakerState,
		LimiterThreshold:         r.LimiterThreshold,
		FuseSupervisionThreshold: r.FuseSupervisionThreshold,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerStateJSON(t *testing.T) {
	data, err := json.Marshal(Reading{BreakerState: BreakerReadyForConnection})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"breakerState":"readyForConnection"`)

	var r Reading
	require.NoError(t, json.Unmarshal(data, &r))
	assert.Equal(t, BreakerReadyForConnection, r.BreakerState)

	assert.Error(t, json.Unmarshal([]byte(`{"breakerState":"on"}`), &r))
	assert.Equal(t, "unknown", BreakerState(7).String())
}

func TestMaxDemandYearEntries(t *testing.T) {
	var r Reading
	assert.Empty(t, r.MaxDemandYearEntries())

	r.MaxDemandYear[0] = MaxDemand{Month: 1, Timestamp: 2, Demand: 3.5}
	r.MaxDemandYear[1] = MaxDemand{Month: 4, Timestamp: 5, Demand: 6}
	r.MaxDemandYearCount = 1
	assert.Equal(t, []MaxDemand{{Month: 1, Timestamp: 2, Demand: 3.5}}, r.MaxDemandYearEntries())

	// The returned slice is a copy.
	entries := r.MaxDemandYearEntries()
	entries[0].Demand = 0
	assert.Equal(t, float32(3.5), r.MaxDemandYear[0].Demand)
}

func TestDecodedHexFields(t *testing.T) {
	r := Reading{
		EquipmentID:    "3153414733313031303231363035",
		GasEquipmentID: "37464C4F32313139303333373333",
		TextMessage:    "not hex",
	}
	assert.Equal(t, "1SAG3101021605", r.DecodedEquipmentID())
	assert.Equal(t, "7FLO2119033733", r.DecodedGasEquipmentID())
	assert.Equal(t, "not hex", r.DecodedTextMessage())
}

func TestBreakerStateWithoutNameRoundTrips(t *testing.T) {
	data, err := json.Marshal(Reading{BreakerState: 3, ElectricityDeliveredTariff1: 12.5})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"breakerState":"3"`)

	var r Reading
	require.NoError(t, json.Unmarshal(data, &r))
	assert.Equal(t, BreakerState(3), r.BreakerState)
	assert.Equal(t, float32(12.5), r.ElectricityDeliveredTariff1)

	require.NoError(t, json.Unmarshal([]byte(`{"breakerState":"unknown"}`), &r))
	assert.Equal(t, BreakerUnknown, r.BreakerState)

	assert.Error(t, json.Unmarshal([]byte(`{"breakerState":"256"}`), &r))
}

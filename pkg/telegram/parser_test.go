package telegram

import (
	"errors"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/NotCoffee418/emucs_p1_reader/pkg/types"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Example telegram of a Belgian e-MUCS meter.
var exampleLines = []string{
	`/FLU5\253769484_A`,
	``,
	`0-0:96.1.4(50217)`,
	`0-0:96.1.1(3153414733313031303231363035)`,
	`0-0:1.0.0(200512135409S)`,
	`1-0:1.8.1(000000.034*kWh)`,
	`1-0:1.8.2(000015.758*kWh)`,
	`1-0:2.8.1(000000.000*kWh)`,
	`1-0:2.8.2(000000.011*kWh)`,
	`1-0:1.4.0(02.351*kW)`,
	`1-0:1.6.0(200509134558S)(02.589*kW)`,
	`0-0:98.1.0(3)(1-0:1.6.0)(1-0:1.6.0)(200501000000S)(200423192538S)(03.695*kW)(200401000000S)(200305122139S)(05.980*kW)(200301000000S)(200210035421W)(04.318*kW)`,
	`0-0:96.14.0(0001)`,
	`1-0:1.7.0(00.000*kW)`,
	`1-0:2.7.0(00.000*kW)`,
	`1-0:21.7.0(00.000*kW)`,
	`1-0:41.7.0(00.000*kW)`,
	`1-0:61.7.0(00.000*kW)`,
	`1-0:22.7.0(00.000*kW)`,
	`1-0:42.7.0(00.000*kW)`,
	`1-0:62.7.0(00.000*kW)`,
	`1-0:32.7.0(234.7*V)`,
	`1-0:52.7.0(234.7*V)`,
	`1-0:72.7.0(234.7*V)`,
	`1-0:31.7.0(000.00*A)`,
	`1-0:51.7.0(000.00*A)`,
	`1-0:71.7.0(000.00*A)`,
	`0-0:96.3.10(1)`,
	`0-0:17.0.0(999.9*kW)`,
	`1-0:31.4.0(999*A)`,
	`0-0:96.13.0()`,
	`0-1:24.1.0(003)`,
	`0-1:96.1.1(37464C4F32313139303333373333)`,
	`0-1:24.4.0(1)`,
	`0-1:24.2.3(200512134558S)(00112.384*m3)`,
	`!`,
}

func exampleTelegram() []byte {
	return []byte(strings.Join(exampleLines, "\r\n") + "72CB\r\n")
}

// withCRC builds a frame from lines, the last one being "!".
func withCRC(lines ...string) []byte {
	body := strings.Join(lines, "\r\n")
	return []byte(body + ChecksumHex([]byte(body)) + "\r\n")
}

func newTestParser() *Parser {
	logger, _ := test.NewNullLogger()
	return NewParser(time.UTC, logger)
}

func TestChecksumReferenceValues(t *testing.T) {
	assert.Equal(t, "C57A", ChecksumHex([]byte("1234567890")))
	assert.Equal(t, uint16(0xBB3D), Checksum([]byte("123456789")))
}

func TestParseExampleTelegram(t *testing.T) {
	r, err := newTestParser().Parse(exampleTelegram())
	require.NoError(t, err)

	assert.Equal(t, "50217", r.VersionInfo)
	assert.Equal(t, "3153414733313031303231363035", r.EquipmentID)
	assert.Equal(t, "1SAG3101021605", r.DecodedEquipmentID())
	assert.Equal(t, int64(1589291649), r.Timestamp)

	assert.Equal(t, float32(0.034), r.ElectricityDeliveredTariff1)
	assert.Equal(t, float32(15.758), r.ElectricityDeliveredTariff2)
	assert.Equal(t, float32(0), r.ElectricityReturnedTariff1)
	assert.Equal(t, float32(0.011), r.ElectricityReturnedTariff2)
	assert.Equal(t, uint32(1), r.TariffIndicator)

	assert.Equal(t, float32(2.351), r.CurrentAvgDemand)
	assert.Equal(t, types.MaxDemand{Timestamp: 1589031958, Demand: 2.589}, r.MaxDemandMonth)

	require.Equal(t, uint8(3), r.MaxDemandYearCount)
	assert.Equal(t, []types.MaxDemand{
		{Month: 1588291200, Timestamp: 1587669938, Demand: 3.695},
		{Month: 1585699200, Timestamp: 1583410899, Demand: 5.980},
		{Month: 1583020800, Timestamp: 1581306861, Demand: 4.318},
	}, r.MaxDemandYearEntries())

	assert.Equal(t, float32(234.7), r.VoltageL1)
	assert.Equal(t, float32(234.7), r.VoltageL2)
	assert.Equal(t, float32(234.7), r.VoltageL3)
	assert.Equal(t, float32(0), r.CurrentL1)
	assert.Equal(t, types.BreakerConnected, r.BreakerState)
	assert.Equal(t, float32(999.9), r.LimiterThreshold)
	assert.Equal(t, float32(999), r.FuseSupervisionThreshold)
	assert.Equal(t, "", r.TextMessage)

	assert.Equal(t, uint32(3), r.GasDeviceType)
	assert.Equal(t, "37464C4F32313139303333373333", r.GasEquipmentID)
	assert.Equal(t, uint32(1), r.GasValveState)
	assert.Equal(t, int64(1589291158), r.GasTimestamp)
	assert.Equal(t, float32(112.384), r.GasDelivered)
}

func TestParseCorruptedChecksum(t *testing.T) {
	frame := exampleTelegram()
	frame[len(frame)-6] = '0' // "72CB" -> "02CB"

	_, err := newTestParser().Parse(frame)
	assert.True(t, errors.Is(err, ErrChecksumMismatch))
}

func TestParseCorruptedBody(t *testing.T) {
	frame := exampleTelegram()
	idx := strings.Index(string(frame), "02.351")
	frame[idx] = '9'

	_, err := newTestParser().Parse(frame)
	assert.True(t, errors.Is(err, ErrChecksumMismatch))
}

func TestParseLowercaseChecksumRejected(t *testing.T) {
	frame := []byte(strings.Join(exampleLines, "\r\n") + "72cb\r\n")

	_, err := newTestParser().Parse(frame)
	assert.True(t, errors.Is(err, ErrChecksumMismatch))
}

func TestParseMalformedFrames(t *testing.T) {
	p := newTestParser()
	for _, frame := range []string{
		"",
		"/!\r\n",
		"ABC!0000\r\n",
		"/ABC!00000\r\n",
		"/ABCDEF!XXXX\r\n\n",
	} {
		_, err := p.Parse([]byte(frame))
		assert.True(t, errors.Is(err, ErrMalformedFrame), "frame %q", frame)
	}
}

func TestParseNonHexChecksum(t *testing.T) {
	_, err := newTestParser().Parse([]byte("/ABCDEF!XXXX\r\n"))
	assert.True(t, errors.Is(err, ErrChecksumMismatch))
}

func TestAbsentFieldsStayZero(t *testing.T) {
	r, err := newTestParser().Parse(withCRC(
		`/TEST5`,
		``,
		`1-0:1.7.0(01.250*kW)`,
		`!`,
	))
	require.NoError(t, err)

	want := types.Reading{CurrentPowerUsage: 1.25}
	assert.Equal(t, want, r)
}

func TestUnknownLinesIgnored(t *testing.T) {
	r, err := newTestParser().Parse(withCRC(
		`/TEST5`,
		`9-9:99.99.99(123)`,
		`some free text`,
		`1-0:2.7.0(00.420*kW)`,
		`!`,
	))
	require.NoError(t, err)
	assert.Equal(t, float32(0.42), r.CurrentPowerReturn)
}

func TestUnparseableFieldDefaultsToZero(t *testing.T) {
	r, err := newTestParser().Parse(withCRC(
		`/TEST5`,
		`1-0:1.7.0(abc*kW)`,
		`0-0:1.0.0(2005)`,
		`0-0:96.14.0(x1)`,
		`1-0:32.7.0(230.1*V)`,
		`!`,
	))
	require.NoError(t, err)
	assert.Equal(t, float32(0), r.CurrentPowerUsage)
	assert.Equal(t, int64(0), r.Timestamp)
	assert.Equal(t, uint32(0), r.TariffIndicator)
	assert.Equal(t, float32(230.1), r.VoltageL1)
}

func TestStringFieldsAreTruncated(t *testing.T) {
	long := strings.Repeat("41", types.VersionInfoMaxLen)
	r, err := newTestParser().Parse(withCRC(
		`/TEST5`,
		`0-0:96.1.4(`+long+`)`,
		`!`,
	))
	require.NoError(t, err)
	assert.Equal(t, long[:types.VersionInfoMaxLen], r.VersionInfo)
}

func TestMaxDemandYearCountIsCapped(t *testing.T) {
	record := `(200501000000S)(200423192538S)(03.695*kW)`
	line := `0-0:98.1.0(20)(1-0:1.6.0)(1-0:1.6.0)` + strings.Repeat(record, 20)

	r, err := newTestParser().Parse(withCRC(`/TEST5`, line, `!`))
	require.NoError(t, err)
	assert.Equal(t, uint8(types.MaxDemandYearSize), r.MaxDemandYearCount)
	assert.Equal(t, float32(3.695), r.MaxDemandYear[12].Demand)
}

func TestMaxDemandYearStopsOnMissingRecords(t *testing.T) {
	line := `0-0:98.1.0(3)(1-0:1.6.0)(1-0:1.6.0)(200501000000S)(200423192538S)(03.695*kW)`

	r, err := newTestParser().Parse(withCRC(`/TEST5`, line, `!`))
	require.NoError(t, err)
	assert.Equal(t, uint8(1), r.MaxDemandYearCount)
	assert.Equal(t, int64(1587669938), r.MaxDemandYear[0].Timestamp)
}

func TestTimestampUsesParserLocation(t *testing.T) {
	brussels, err := time.LoadLocation("Europe/Brussels")
	if err != nil {
		t.Skip("time zone database not available")
	}
	logger, _ := test.NewNullLogger()
	p := NewParser(brussels, logger)

	r, err := p.Parse(withCRC(`/TEST5`, `0-0:1.0.0(200512135409S)`, `!`))
	require.NoError(t, err)
	// CEST is UTC+2
	assert.Equal(t, int64(1589291649-2*3600), r.Timestamp)
}

func TestBreakerStateOutOfRangeIsClamped(t *testing.T) {
	r, err := newTestParser().Parse(withCRC(
		`/TEST5`,
		`0-0:96.3.10(257)`,
		`!`,
	))
	require.NoError(t, err)
	assert.Equal(t, types.BreakerUnknown, r.BreakerState)
}

package port_reader

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/NotCoffee418/emucs_p1_reader/pkg/meter"
	"github.com/NotCoffee418/emucs_p1_reader/pkg/metrics"
	"github.com/NotCoffee418/emucs_p1_reader/pkg/telegram"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTelegram(power string) string {
	body := "/TEST5\\253769484_A\r\n\r\n" +
		"0-0:1.0.0(200512135409S)\r\n" +
		"1-0:1.7.0(" + power + "*kW)\r\n" +
		"!"
	return body + telegram.ChecksumHex([]byte(body)) + "\r\n"
}

func newTestReader(bufferSize int) (*P1Reader, *meter.Meter, *metrics.Metrics) {
	logger, _ := test.NewNullLogger()
	m := meter.New(16, 16)
	mtr := metrics.New(prometheus.NewRegistry())
	r := NewP1Reader("/dev/null", 115200, bufferSize, telegram.NewParser(time.UTC, logger), m, mtr, logger)
	r.retryDelay = 0
	return r, m, mtr
}

func TestConsumePublishesValidTelegrams(t *testing.T) {
	r, m, mtr := newTestReader(1024)

	stream := "garbage" + validTelegram("01.234") + "\r\n" + validTelegram("00.500")
	err := r.Consume(context.Background(), iotest.HalfReader(strings.NewReader(stream)))
	assert.True(t, errors.Is(err, io.EOF))

	reading, ok, err := m.Reading.Get(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, float32(0.5), reading.CurrentPowerUsage)
	assert.Equal(t, int64(1589291649), reading.Timestamp)
	assert.Equal(t, 2, m.ShortTerm.Len())
	assert.Equal(t, float64(2), testutil.ToFloat64(mtr.Telegrams))
}

func TestConsumeOneByteAtATime(t *testing.T) {
	r, m, _ := newTestReader(1024)

	err := r.Consume(context.Background(), iotest.OneByteReader(strings.NewReader(validTelegram("02.000"))))
	assert.True(t, errors.Is(err, io.EOF))

	reading, ok, err := m.Reading.Get(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, float32(2), reading.CurrentPowerUsage)
}

func TestConsumeDropsCorruptedTelegram(t *testing.T) {
	r, m, mtr := newTestReader(1024)

	corrupted := strings.Replace(validTelegram("01.234"), "01.234", "09.234", 1)
	err := r.Consume(context.Background(), strings.NewReader(corrupted))
	assert.True(t, errors.Is(err, io.EOF))

	_, ok, err := m.Reading.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, m.ShortTerm.Len())
	assert.Equal(t, float64(1), testutil.ToFloat64(mtr.ChecksumMismatches))
	assert.Equal(t, float64(0), testutil.ToFloat64(mtr.Telegrams))
}

func TestCorruptedTelegramKeepsPreviousReading(t *testing.T) {
	r, m, mtr := newTestReader(1024)

	corrupted := strings.Replace(validTelegram("00.500"), "00.500", "09.500", 1)
	stream := validTelegram("01.234") + corrupted
	err := r.Consume(context.Background(), iotest.HalfReader(strings.NewReader(stream)))
	assert.True(t, errors.Is(err, io.EOF))

	reading, ok, err := m.Reading.Get(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, float32(1.234), reading.CurrentPowerUsage)
	assert.Equal(t, 1, m.ShortTerm.Len())
	assert.Equal(t, 1, m.LongTerm.Len())
	assert.Equal(t, float64(1), testutil.ToFloat64(mtr.ChecksumMismatches))
	assert.Equal(t, float64(1), testutil.ToFloat64(mtr.Telegrams))
}

func TestConsumeCountsBufferOverruns(t *testing.T) {
	r, m, mtr := newTestReader(16)

	stream := "/" + strings.Repeat("A", 40) + "!0000\r\n"
	err := r.Consume(context.Background(), strings.NewReader(stream))
	assert.True(t, errors.Is(err, io.EOF))

	assert.GreaterOrEqual(t, testutil.ToFloat64(mtr.BufferOverruns), float64(1))
	_, ok, _ := m.Reading.Get(context.Background())
	assert.False(t, ok)
}

type failingReader struct {
	calls int
}

func (f *failingReader) Read([]byte) (int, error) {
	f.calls++
	return 0, errors.New("device not ready")
}

func TestConsumeGivesUpAfterConsecutiveErrors(t *testing.T) {
	r, _, _ := newTestReader(1024)

	src := &failingReader{}
	err := r.Consume(context.Background(), src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device not ready")
	assert.Equal(t, maxErrors, src.calls)
}

func TestConsumeStopsOnCancelledContext(t *testing.T) {
	r, _, _ := newTestReader(1024)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, r.Consume(ctx, bytes.NewReader([]byte(validTelegram("01.000")))))
}

package port_reader

import (
	"io"
	"sync"
	"time"

	"github.com/NotCoffee418/emucs_p1_reader/pkg/framer"
	"github.com/NotCoffee418/emucs_p1_reader/pkg/meter"
	"github.com/NotCoffee418/emucs_p1_reader/pkg/metrics"
	"github.com/NotCoffee418/emucs_p1_reader/pkg/telegram"
	"github.com/sirupsen/logrus"
)

const (
	// Bytes handed to the framer per read, like the UART FIFO threshold.
	DefaultChunkSize = 128

	// Consecutive read errors tolerated before giving up.
	maxErrors = 10
)

type P1Reader struct {
	port       string
	baudrate   uint
	serialPort io.ReadWriteCloser
	closeOnce  sync.Once

	chunkSize  int
	retryDelay time.Duration

	extractor *framer.Extractor
	parser    *telegram.Parser
	meter     *meter.Meter
	metrics   *metrics.Metrics
	logger    logrus.FieldLogger
}

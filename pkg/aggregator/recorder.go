package aggregator

import (
	"context"
	"fmt"

	"github.com/NotCoffee418/emucs_p1_reader/pkg/meterdb"
	"github.com/NotCoffee418/emucs_p1_reader/pkg/types"
	"github.com/sirupsen/logrus"
)

// Recorder keeps the latest reading of the running quarter hour and writes it
// out once a reading of another quarter hour arrives.
type Recorder struct {
	writer  ReadingWriter
	pending *meterdb.QuarterHourReading
	lastGas int64
	logger  logrus.FieldLogger
}

func NewRecorder(writer ReadingWriter, logger logrus.FieldLogger) *Recorder {
	return &Recorder{
		writer: writer,
		logger: logger.WithField("component", "recorder"),
	}
}

// Observe must be called for every reading, in arrival order.
func (r *Recorder) Observe(ctx context.Context, reading *types.Reading) error {
	if gas, ok := meterdb.NewGasReading(reading); ok && gas.Timestamp != r.lastGas {
		if err := r.writer.InsertGasReading(ctx, &gas); err != nil {
			return fmt.Errorf("failed to store gas reading: %w", err)
		}
		r.lastGas = gas.Timestamp
	}

	current := meterdb.NewQuarterHourReading(reading)
	if r.pending != nil && r.pending.QuarterStart != current.QuarterStart {
		if err := r.Flush(ctx); err != nil {
			return err
		}
	}
	r.pending = &current
	return nil
}

// Flush writes the pending quarter hour, used on shutdown.
func (r *Recorder) Flush(ctx context.Context) error {
	if r.pending == nil {
		return nil
	}
	if err := r.writer.InsertQuarterHourReading(ctx, r.pending); err != nil {
		return fmt.Errorf("failed to store quarter hour %d: %w", r.pending.QuarterStart, err)
	}
	r.logger.WithField("quarter_start", r.pending.QuarterStart).Debug("Stored quarter hour reading")
	r.pending = nil
	return nil
}

// Package metrics exposes the ingestion diagnostics as Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Telegrams          prometheus.Counter
	ChecksumMismatches prometheus.Counter
	MalformedFrames    prometheus.Counter
	BufferOverruns     prometheus.Counter
	ReadShortfalls     prometheus.Counter
	GuardTimeouts      *prometheus.CounterVec
	PredictedPeak      prometheus.Gauge
}

// New registers the collectors with reg. Use prometheus.DefaultRegisterer in
// the binaries and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Telegrams: factory.NewCounter(prometheus.CounterOpts{
			Name: "p1_telegrams_total",
			Help: "Telegrams that passed the CRC check and were published.",
		}),
		ChecksumMismatches: factory.NewCounter(prometheus.CounterOpts{
			Name: "p1_checksum_mismatches_total",
			Help: "Telegrams dropped because of a CRC mismatch.",
		}),
		MalformedFrames: factory.NewCounter(prometheus.CounterOpts{
			Name: "p1_malformed_frames_total",
			Help: "Frames dropped because the trailer was not '!XXXX\\r\\n'.",
		}),
		BufferOverruns: factory.NewCounter(prometheus.CounterOpts{
			Name: "p1_buffer_overruns_total",
			Help: "Times the framing buffer was full and framing restarted.",
		}),
		ReadShortfalls: factory.NewCounter(prometheus.CounterOpts{
			Name: "p1_read_shortfalls_total",
			Help: "Chunks that could not be read completely from the serial port.",
		}),
		GuardTimeouts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "p1_guard_timeouts_total",
			Help: "API requests that gave up waiting for a shared store.",
		}, []string{"store"}),
		PredictedPeak: factory.NewGauge(prometheus.GaugeOpts{
			Name: "p1_predicted_peak_kw",
			Help: "Predicted average demand at the end of the current quarter hour.",
		}),
	}
}

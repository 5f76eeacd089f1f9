// Package predictor forecasts the quarter-hour average demand peak from the
// short term log.
package predictor

import (
	"context"
	"time"

	"github.com/NotCoffee418/emucs_p1_reader/pkg/history"
	"github.com/NotCoffee418/emucs_p1_reader/pkg/store"
	"github.com/sirupsen/logrus"
)

const DefaultInterval = 5 * time.Second

// Forecast is the predicted average demand (kW) at Timestamp, the end of the
// current quarter hour.
type Forecast struct {
	Value     float32 `json:"value"`
	Timestamp int64   `json:"timestamp"`
}

type Predictor struct {
	log      *history.ShortTermLog
	forecast *store.Cell[Forecast]
	method   Method
	interval time.Duration
	loc      *time.Location
	logger   logrus.FieldLogger

	// Called after each stored forecast.
	OnForecast func(Forecast)
}

func New(
	log *history.ShortTermLog,
	forecast *store.Cell[Forecast],
	method Method,
	interval time.Duration,
	loc *time.Location,
	logger logrus.FieldLogger,
) *Predictor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if loc == nil {
		loc = time.Local
	}
	return &Predictor{
		log:      log,
		forecast: forecast,
		method:   method,
		interval: interval,
		loc:      loc,
		logger:   logger.WithField("component", "predictor"),
	}
}

// Run predicts once per interval until ctx is cancelled.
func (p *Predictor) Run(ctx context.Context) error {
	p.logger.WithFields(logrus.Fields{
		"method":   p.method.String(),
		"interval": p.interval,
	}).Info("Starting peak predictor")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.Cycle(ctx); err != nil {
				p.logger.WithError(err).Error("Peak prediction failed")
			}
		}
	}
}

// Cycle snapshots the short term log and stores a new forecast when there are
// at least two samples.
func (p *Predictor) Cycle(ctx context.Context) error {
	entries, err := p.log.Read(ctx, p.log.Cap())
	if err != nil {
		return err
	}

	forecast, ok := p.Predict(entries)
	if !ok {
		return nil
	}
	p.forecast.Set(forecast)

	p.logger.WithFields(logrus.Fields{
		"value":     forecast.Value,
		"timestamp": time.Unix(forecast.Timestamp, 0).In(p.loc).Format(time.RFC3339),
	}).Debug("Predicted peak")
	if p.OnForecast != nil {
		p.OnForecast(forecast)
	}
	return nil
}

// Predict computes a forecast from entries sorted oldest first. Only the samples
// from the start of the running quarter hour are used when that start is found.
func (p *Predictor) Predict(entries []history.ShortTermEntry) (Forecast, bool) {
	if len(entries) < 2 {
		return Forecast{}, false
	}
	window := entries[QuarterHourStart(entries, p.loc):]
	end := EndOfQuarterHour(window[len(window)-1].Timestamp, p.loc)

	var value float32
	switch p.method {
	case MethodWeightedAverage:
		value = weightedAverage(window)
	default:
		value = linearRegression(window, end)
	}
	return Forecast{Value: value, Timestamp: end}, true
}

// NewForecastCell creates the single slot the predictor writes to.
func NewForecastCell() *store.Cell[Forecast] {
	return store.NewCell[Forecast]()
}

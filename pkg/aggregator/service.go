package aggregator

import (
	"context"
	"fmt"
	"time"

	"github.com/NotCoffee418/emucs_p1_reader/pkg/meterdb"
	"github.com/sirupsen/logrus"
)

type Service struct {
	store         Store
	retentionDays int
	logger        logrus.FieldLogger
}

// NewService aggregates the quarter hours in store. Raw rows older than
// retentionDays are removed once they are covered by hourly aggregates.
func NewService(store Store, retentionDays int, logger logrus.FieldLogger) *Service {
	return &Service{
		store:         store,
		retentionDays: retentionDays,
		logger:        logger.WithField("component", "aggregator"),
	}
}

// roundToHourStart returns the Unix timestamp of the start of the hour for the given time
func roundToHourStart(t time.Time) int64 {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC).Unix()
}

// roundToDayStart returns the Unix timestamp of the start of the day for the given time
func roundToDayStart(t time.Time) int64 {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Unix()
}

// roundToMonthStart returns the Unix timestamp of the start of the month for the given time
func roundToMonthStart(t time.Time) int64 {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).Unix()
}

// timeframeEnd returns the Unix timestamp of the last second of the timeframe (next start - 1)
func timeframeEnd(tf meterdb.Timeframe, start int64) int64 {
	t := time.Unix(start, 0).UTC()
	switch tf {
	case meterdb.Daily:
		return t.AddDate(0, 0, 1).Unix() - 1
	case meterdb.Monthly:
		return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC).Unix() - 1
	}
	return t.Add(time.Hour).Unix() - 1
}

// counterDelta is the increase of a meter counter. A counter that went down
// (meter replaced or reset) counts as no usage.
func counterDelta(from, to uint32) uint32 {
	if to < from {
		return 0
	}
	return to - from
}

// hourlyUsage computes the usage over readings, the quarter hours of one hour.
// prev is the last reading before the hour; without it the first quarter
// of the hour is the baseline.
func hourlyUsage(start int64, prev *meterdb.QuarterHourReading, readings []meterdb.QuarterHourReading) meterdb.UsageAggregate {
	agg := meterdb.UsageAggregate{
		Timeframe:   meterdb.Hourly,
		StartTime:   start,
		SampleCount: uint32(len(readings)),
	}
	if len(readings) == 0 {
		return agg
	}
	base := readings[0]
	if prev != nil {
		base = *prev
	}
	last := readings[len(readings)-1]
	agg.DeliveredTariff1Wh = counterDelta(base.DeliveredTariff1Wh, last.DeliveredTariff1Wh)
	agg.DeliveredTariff2Wh = counterDelta(base.DeliveredTariff2Wh, last.DeliveredTariff2Wh)
	agg.ReturnedTariff1Wh = counterDelta(base.ReturnedTariff1Wh, last.ReturnedTariff1Wh)
	agg.ReturnedTariff2Wh = counterDelta(base.ReturnedTariff2Wh, last.ReturnedTariff2Wh)
	for _, r := range readings {
		if r.AvgDemandW > agg.PeakDemandW {
			agg.PeakDemandW = r.AvgDemandW
		}
	}
	return agg
}

// sumAggregates folds smaller aggregates into one of timeframe tf.
func sumAggregates(tf meterdb.Timeframe, start int64, parts []meterdb.UsageAggregate) meterdb.UsageAggregate {
	agg := meterdb.UsageAggregate{Timeframe: tf, StartTime: start}
	for _, p := range parts {
		agg.DeliveredTariff1Wh += p.DeliveredTariff1Wh
		agg.DeliveredTariff2Wh += p.DeliveredTariff2Wh
		agg.ReturnedTariff1Wh += p.ReturnedTariff1Wh
		agg.ReturnedTariff2Wh += p.ReturnedTariff2Wh
		agg.GasDM3 += p.GasDM3
		agg.SampleCount += p.SampleCount
		if p.PeakDemandW > agg.PeakDemandW {
			agg.PeakDemandW = p.PeakDemandW
		}
	}
	return agg
}

// AggregateHour stores the usage of the hour starting at hourStart.
// It returns false when no quarter hour of that hour was recorded.
func (s *Service) AggregateHour(ctx context.Context, hourStart int64) (bool, error) {
	hourEnd := timeframeEnd(meterdb.Hourly, hourStart)

	readings, err := s.store.QuarterHourReadings(ctx, hourStart, hourEnd)
	if err != nil {
		return false, err
	}
	// Only insert if we have data
	if len(readings) == 0 {
		return false, nil
	}

	var prev *meterdb.QuarterHourReading
	if p, ok, err := s.store.LastQuarterHourReadingBefore(ctx, hourStart); err != nil {
		return false, err
	} else if ok {
		prev = &p
	}
	agg := hourlyUsage(hourStart, prev, readings)

	// Gas is measured every few minutes, use the last value on each side of the hour.
	gasStart, okStart, err := s.store.LastGasReadingBefore(ctx, hourStart)
	if err != nil {
		return false, err
	}
	gasEnd, okEnd, err := s.store.LastGasReadingBefore(ctx, hourEnd+1)
	if err != nil {
		return false, err
	}
	if okStart && okEnd {
		agg.GasDM3 = counterDelta(gasStart.ConsumptionDM3, gasEnd.ConsumptionDM3)
	}

	return true, s.store.UpsertUsageAggregate(ctx, &agg)
}

// AggregateFromHourly stores the daily or monthly sum of the hourly aggregates.
func (s *Service) AggregateFromHourly(ctx context.Context, tf meterdb.Timeframe, start int64) (bool, error) {
	if tf == meterdb.Hourly {
		return s.AggregateHour(ctx, start)
	}
	hours, err := s.store.UsageAggregates(ctx, meterdb.Hourly, start, timeframeEnd(tf, start))
	if err != nil {
		return false, err
	}
	if len(hours) == 0 {
		return false, nil
	}
	agg := sumAggregates(tf, start, hours)
	return true, s.store.UpsertUsageAggregate(ctx, &agg)
}

// cleanupOldData removes raw rows older than the retention if we have aggregated them
func (s *Service) cleanupOldData(ctx context.Context, now time.Time) error {
	cutoff := now.UTC().AddDate(0, 0, -s.retentionDays)
	cutoffTimestamp := cutoff.Unix()

	// Only clean up if we have aggregated data up to the cutoff point
	lastAggregateHour, err := s.store.LastAggregateStart(ctx, meterdb.Hourly)
	if err != nil {
		return err
	}
	if lastAggregateHour < cutoffTimestamp {
		return nil
	}

	deleted, err := s.store.DeleteReadingsBefore(ctx, cutoffTimestamp)
	if err != nil {
		return err
	}
	s.logger.WithField("rows", deleted).Infof("Cleaned up data older than %s", cutoff.Format(time.RFC3339))
	return nil
}

// AggregateAndCleanup performs all aggregation and cleanup tasks.
// It is run by the collector's cron schedule, now is the time of the run.
func (s *Service) AggregateAndCleanup(ctx context.Context, now time.Time) error {
	now = now.UTC()

	// Aggregate the previous hour (current hour is still ongoing)
	hourStart := roundToHourStart(now.Add(-time.Hour))
	log := s.logger.WithField("hour_start", time.Unix(hourStart, 0).UTC().Format(time.RFC3339))
	if ok, err := s.AggregateHour(ctx, hourStart); err != nil {
		return fmt.Errorf("hourly aggregation: %w", err)
	} else if !ok {
		log.Info("No quarter hours recorded, skipping hourly aggregate")
	} else {
		log.Info("Aggregated hour")
	}

	// Aggregate the previous day if it's a new day
	if now.Hour() == 0 {
		dayStart := roundToDayStart(now.AddDate(0, 0, -1))
		if _, err := s.AggregateFromHourly(ctx, meterdb.Daily, dayStart); err != nil {
			return fmt.Errorf("daily aggregation: %w", err)
		}
	}

	// Aggregate the previous month if it's a new month
	if now.Hour() == 0 && now.Day() == 1 {
		monthStart := roundToMonthStart(now.AddDate(0, -1, 0))
		if _, err := s.AggregateFromHourly(ctx, meterdb.Monthly, monthStart); err != nil {
			return fmt.Errorf("monthly aggregation: %w", err)
		}
	}

	if err := s.cleanupOldData(ctx, now); err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}
	return nil
}

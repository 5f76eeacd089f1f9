package meterdb

import (
	"context"
	"database/sql"
	"errors"
)

const quarterHourColumns = "quarter_start, reading_timestamp, delivered_tariff1_wh, delivered_tariff2_wh, " +
	"returned_tariff1_wh, returned_tariff2_wh, avg_demand_w"

// InsertQuarterHourReading stores r, replacing an earlier row for the same quarter.
func (m *MeterDB) InsertQuarterHourReading(ctx context.Context, r *QuarterHourReading) error {
	_, err := m.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO quarter_hour_readings ("+quarterHourColumns+") "+
			"VALUES (?, ?, ?, ?, ?, ?, ?)",
		r.QuarterStart,
		r.ReadingTimestamp,
		r.DeliveredTariff1Wh,
		r.DeliveredTariff2Wh,
		r.ReturnedTariff1Wh,
		r.ReturnedTariff2Wh,
		r.AvgDemandW,
	)
	return err
}

// The meter repeats the gas value until the next M-Bus update, duplicates are ignored.
func (m *MeterDB) InsertGasReading(ctx context.Context, r *GasReading) error {
	_, err := m.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO gas_readings (timestamp, consumption_dm3) VALUES (?, ?)",
		r.Timestamp,
		r.ConsumptionDM3,
	)
	return err
}

// QuarterHourReadings returns the rows with from <= quarter_start <= to, oldest first.
func (m *MeterDB) QuarterHourReadings(ctx context.Context, from, to int64) ([]QuarterHourReading, error) {
	rows, err := m.db.QueryContext(ctx,
		"SELECT "+quarterHourColumns+" FROM quarter_hour_readings "+
			"WHERE quarter_start >= ? AND quarter_start <= ? ORDER BY quarter_start",
		from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []QuarterHourReading
	for rows.Next() {
		var r QuarterHourReading
		if err := scanQuarterHour(rows, &r); err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

// LastQuarterHourReadingBefore returns the newest row with quarter_start < ts.
func (m *MeterDB) LastQuarterHourReadingBefore(ctx context.Context, ts int64) (QuarterHourReading, bool, error) {
	row := m.db.QueryRowContext(ctx,
		"SELECT "+quarterHourColumns+" FROM quarter_hour_readings "+
			"WHERE quarter_start < ? ORDER BY quarter_start DESC LIMIT 1",
		ts,
	)
	var r QuarterHourReading
	if err := scanQuarterHour(row, &r); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, false, nil
		}
		return r, false, err
	}
	return r, true, nil
}

// LastGasReadingBefore returns the newest gas reading with timestamp < ts.
func (m *MeterDB) LastGasReadingBefore(ctx context.Context, ts int64) (GasReading, bool, error) {
	var r GasReading
	err := m.db.QueryRowContext(ctx,
		"SELECT timestamp, consumption_dm3 FROM gas_readings WHERE timestamp < ? ORDER BY timestamp DESC LIMIT 1",
		ts,
	).Scan(&r.Timestamp, &r.ConsumptionDM3)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, false, nil
		}
		return r, false, err
	}
	return r, true, nil
}

func (m *MeterDB) UpsertUsageAggregate(ctx context.Context, a *UsageAggregate) error {
	_, err := m.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO usage_aggregates "+
			"(timeframe, start_time, delivered_tariff1_wh, delivered_tariff2_wh, returned_tariff1_wh, "+
			"returned_tariff2_wh, gas_dm3, peak_demand_w, sample_count) "+
			"VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		a.Timeframe,
		a.StartTime,
		a.DeliveredTariff1Wh,
		a.DeliveredTariff2Wh,
		a.ReturnedTariff1Wh,
		a.ReturnedTariff2Wh,
		a.GasDM3,
		a.PeakDemandW,
		a.SampleCount,
	)
	return err
}

// UsageAggregates returns the aggregates of tf with from <= start_time <= to, oldest first.
func (m *MeterDB) UsageAggregates(ctx context.Context, tf Timeframe, from, to int64) ([]UsageAggregate, error) {
	rows, err := m.db.QueryContext(ctx,
		"SELECT timeframe, start_time, delivered_tariff1_wh, delivered_tariff2_wh, returned_tariff1_wh, "+
			"returned_tariff2_wh, gas_dm3, peak_demand_w, sample_count FROM usage_aggregates "+
			"WHERE timeframe = ? AND start_time >= ? AND start_time <= ? ORDER BY start_time",
		tf, from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var aggregates []UsageAggregate
	for rows.Next() {
		var a UsageAggregate
		if err := rows.Scan(
			&a.Timeframe,
			&a.StartTime,
			&a.DeliveredTariff1Wh,
			&a.DeliveredTariff2Wh,
			&a.ReturnedTariff1Wh,
			&a.ReturnedTariff2Wh,
			&a.GasDM3,
			&a.PeakDemandW,
			&a.SampleCount,
		); err != nil {
			return nil, err
		}
		aggregates = append(aggregates, a)
	}
	return aggregates, rows.Err()
}

// LastAggregateStart returns the start of the newest aggregate of tf, 0 when none exist.
func (m *MeterDB) LastAggregateStart(ctx context.Context, tf Timeframe) (int64, error) {
	var last sql.NullInt64
	err := m.db.QueryRowContext(ctx,
		"SELECT MAX(start_time) FROM usage_aggregates WHERE timeframe = ?", tf,
	).Scan(&last)
	if err != nil {
		return 0, err
	}
	return last.Int64, nil
}

// DeleteReadingsBefore removes raw quarter hour and gas rows older than cutoff.
func (m *MeterDB) DeleteReadingsBefore(ctx context.Context, cutoff int64) (int64, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM quarter_hour_readings WHERE quarter_start < ?", cutoff)
	if err != nil {
		return 0, err
	}
	deleted, _ := res.RowsAffected()

	res, err = tx.ExecContext(ctx, "DELETE FROM gas_readings WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, err
	}
	gasDeleted, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return deleted + gasDeleted, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanQuarterHour(s scanner, r *QuarterHourReading) error {
	return s.Scan(
		&r.QuarterStart,
		&r.ReadingTimestamp,
		&r.DeliveredTariff1Wh,
		&r.DeliveredTariff2Wh,
		&r.ReturnedTariff1Wh,
		&r.ReturnedTariff2Wh,
		&r.AvgDemandW,
	)
}

// Responsible for storing the data collected from the smart meter
// Depends on the interpreter API being online.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NotCoffee418/emucs_p1_reader/pkg/aggregator"
	"github.com/NotCoffee418/emucs_p1_reader/pkg/config"
	"github.com/NotCoffee418/emucs_p1_reader/pkg/interpreter"
	"github.com/NotCoffee418/emucs_p1_reader/pkg/meterdb"
	"github.com/NotCoffee418/emucs_p1_reader/pkg/pathing"
	"github.com/NotCoffee418/emucs_p1_reader/pkg/types"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := run(); err != nil {
		logrus.WithError(err).Fatal("Meter collector stopped")
	}
}

func run() error {
	if err := pathing.EnsureDirs(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	cfg, err := config.LoadMeterCollectorConfig(config.MeterCollectorConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load meter collector config: %w", err)
	}
	logger, err := config.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	dbPath := cfg.DatabasePath
	if dbPath == "" {
		dbPath = pathing.GetMeterDbPath()
	}
	db, err := meterdb.Open(ctx, dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	recorder := aggregator.NewRecorder(db, logger)
	service := aggregator.NewService(db, cfg.RetentionDays, logger)

	scheduler := cron.New(cron.WithLocation(time.UTC))
	if _, err := scheduler.AddFunc(cfg.AggregationSchedule, func() {
		if err := service.AggregateAndCleanup(ctx, time.Now()); err != nil {
			logger.WithError(err).Error("Aggregation failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid aggregation_schedule %q: %w", cfg.AggregationSchedule, err)
	}
	scheduler.Start()
	defer func() {
		<-scheduler.Stop().Done()
	}()

	// Subscribe to websocket with revive
	listenErr := interpreter.StartListener(ctx, cfg.InterpreterAPIHost, cfg.TLSEnabled, logger, func(reading *types.Reading) {
		if err := recorder.Observe(ctx, reading); err != nil {
			logger.WithError(err).Error("Failed to record reading")
		}
	})

	// Keep the running quarter hour when shutting down.
	if err := recorder.Flush(context.Background()); err != nil {
		logger.WithError(err).Error("Failed to store last quarter hour")
	}
	return listenErr
}

// Interpreter API is responsible for reading the P1 port and broadcasting the readings.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NotCoffee418/emucs_p1_reader/pkg/config"
	"github.com/NotCoffee418/emucs_p1_reader/pkg/history"
	"github.com/NotCoffee418/emucs_p1_reader/pkg/meter"
	"github.com/NotCoffee418/emucs_p1_reader/pkg/metrics"
	"github.com/NotCoffee418/emucs_p1_reader/pkg/pathing"
	"github.com/NotCoffee418/emucs_p1_reader/pkg/port_reader"
	"github.com/NotCoffee418/emucs_p1_reader/pkg/predictor"
	"github.com/NotCoffee418/emucs_p1_reader/pkg/solarinverter"
	"github.com/NotCoffee418/emucs_p1_reader/pkg/telegram"
	"github.com/NotCoffee418/emucs_p1_reader/pkg/webapi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		logrus.WithError(err).Fatal("Interpreter API stopped")
	}
}

func run() error {
	if err := pathing.EnsureDirs(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	// Load config
	cfg, err := config.LoadInterpreterAPIConfig(config.InterpreterAPIConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load interpreter API config: %w", err)
	}
	logger, err := config.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	method, err := predictor.ParseMethod(cfg.PredictorMethod)
	if err != nil {
		return err
	}

	mtr := metrics.New(prometheus.DefaultRegisterer)
	m := meter.New(history.ShortTermCapacity(cfg.TelegramInterval()), cfg.LongTermCapacity)

	// P1 reader feeds the meter state
	p1Reader := port_reader.NewP1Reader(
		cfg.SerialDevice,
		cfg.Baudrate,
		cfg.BufferSize,
		telegram.NewParser(loc, logger),
		m,
		mtr,
		logger,
	)

	peakPredictor := predictor.New(m.ShortTerm, m.Forecast, method, cfg.PredictorInterval(), loc, logger)
	peakPredictor.OnForecast = func(f predictor.Forecast) {
		mtr.PredictedPeak.Set(float64(f.Value))
	}

	var solar webapi.SolarReader
	if cfg.SolarEnabled() {
		solar = solarinverter.NewReader(cfg.SolarInverter(), logger)
	}

	api := webapi.NewServer(m, solar, mtr, prometheus.DefaultGatherer, webapi.Options{
		GuardTimeout: cfg.GuardTimeout(),
		RateLimit:    cfg.RateLimit,
		RateBurst:    cfg.RateBurst,
	}, logger)
	m.Subscribe(api.Hub().Broadcast)
	defer m.Close()

	listener := fmt.Sprintf("%s:%d", cfg.ListenAddress, cfg.ListenPort)
	httpServer := &http.Server{
		Addr:              listener,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return p1Reader.Run(ctx)
	})
	g.Go(func() error {
		return peakPredictor.Run(ctx)
	})
	g.Go(func() error {
		logger.Infof("Starting e-MUCS P1 Interpreter API on %s", listener)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

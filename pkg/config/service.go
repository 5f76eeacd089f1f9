package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata"

	"github.com/BurntSushi/toml"
	"github.com/NotCoffee418/emucs_p1_reader/pkg/pathing"
	"github.com/NotCoffee418/emucs_p1_reader/pkg/solarinverter"
)

func DefaultInterpreterAPIConfig() *InterpreterAPIConfig {
	return &InterpreterAPIConfig{
		SerialDevice:            "/dev/ttyUSB0",
		Baudrate:                115200,
		ListenAddress:           "0.0.0.0",
		ListenPort:              9039,
		BufferSize:              1024,
		TelegramIntervalMs:      1000,
		LongTermCapacity:        31 * 24 * 4,
		TimeZone:                "Europe/Brussels",
		PredictorMethod:         "linear_regression",
		PredictorIntervalMs:     5000,
		GuardTimeoutMs:          1000,
		RateLimit:               20,
		RateBurst:               40,
		LogLevel:                "info",
		LogFormat:               "text",
		SolarInverterModbusPort: 502,
		WlanConnectionId:        "preconfigured", // Check with `nmcli device status`
	}
}

func DefaultMeterCollectorConfig() *MeterCollectorConfig {
	return &MeterCollectorConfig{
		InterpreterAPIHost:  "localhost:9039",
		TLSEnabled:          false,
		AggregationSchedule: "5 * * * *",
		RetentionDays:       400,
		LogLevel:            "info",
		LogFormat:           "text",
	}
}

func InterpreterAPIConfigPath() string {
	return filepath.Join(pathing.GetConfigDir(), "interpreter_api.toml")
}

func MeterCollectorConfigPath() string {
	return filepath.Join(pathing.GetConfigDir(), "meter_collector.toml")
}

// LoadInterpreterAPIConfig reads configPath. A missing file is created with
// the defaults. Keys missing from an existing file keep their default.
func LoadInterpreterAPIConfig(configPath string) (*InterpreterAPIConfig, error) {
	cfg := DefaultInterpreterAPIConfig()
	if err := loadOrCreate(configPath, cfg); err != nil {
		return nil, err
	}
	if cfg.BufferSize <= 0 {
		return nil, fmt.Errorf("buffer_size must be positive, got %d", cfg.BufferSize)
	}
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadMeterCollectorConfig(configPath string) (*MeterCollectorConfig, error) {
	cfg := DefaultMeterCollectorConfig()
	if err := loadOrCreate(configPath, cfg); err != nil {
		return nil, err
	}
	if cfg.RetentionDays <= 0 {
		return nil, fmt.Errorf("retention_days must be positive, got %d", cfg.RetentionDays)
	}
	return cfg, nil
}

func loadOrCreate(configPath string, cfg any) error {
	// Create default if not exists
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		cfgFile, err := os.Create(configPath)
		if err != nil {
			return fmt.Errorf("failed to create default config %s: %w", configPath, err)
		}
		defer cfgFile.Close()
		if err := toml.NewEncoder(cfgFile).Encode(cfg); err != nil {
			return fmt.Errorf("failed to write default config %s: %w", configPath, err)
		}
		return nil
	}

	// Load existing config
	if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", configPath, err)
	}
	return nil
}

func (c *InterpreterAPIConfig) TelegramInterval() time.Duration {
	return time.Duration(c.TelegramIntervalMs) * time.Millisecond
}

func (c *InterpreterAPIConfig) PredictorInterval() time.Duration {
	return time.Duration(c.PredictorIntervalMs) * time.Millisecond
}

func (c *InterpreterAPIConfig) GuardTimeout() time.Duration {
	return time.Duration(c.GuardTimeoutMs) * time.Millisecond
}

// Location is the zone the meter clock runs in. Empty means local time.
func (c *InterpreterAPIConfig) Location() (*time.Location, error) {
	if c.TimeZone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid time_zone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// SolarInverter returns the inverter connection settings.
func (c *InterpreterAPIConfig) SolarInverter() solarinverter.Config {
	return solarinverter.Config{
		Host:             c.SolarInverterIp,
		Port:             c.SolarInverterModbusPort,
		WlanConnectionId: c.WlanConnectionId,
	}
}

// SolarEnabled reports whether every inverter setting is present.
func (c *InterpreterAPIConfig) SolarEnabled() bool {
	return c.SolarInverter().IsConfigured()
}

// Package solarinverter reads the current output of a Huawei SUN2000 style
// inverter over Modbus TCP so it can be shown next to the meter data.
package solarinverter

import (
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/goburrow/modbus"
	probing "github.com/prometheus-community/pro-bing"
	"github.com/sirupsen/logrus"
)

var (
	ErrModbusNotConfigured = fmt.Errorf("modbus not configured") // may be intended
	ErrModbusReadFailed    = fmt.Errorf("modbus read failed")
	ErrModbusNotConnected  = fmt.Errorf("modbus not connected")
)

const (
	activePowerRegister = 32080
	maxRetries          = 3
	defaultCacheTTL     = 10 * time.Second
)

type Config struct {
	Host string
	Port int
	// Should be named `preconfigured`
	// Check with `nmcli device status`
	WlanConnectionId string
}

// IsConfigured checks if the modbus configuration is set.
// This feature is optional, Empty values as config are acceptable.
func (c Config) IsConfigured() bool {
	return c.Host != "" && c.Port != 0 && c.WlanConnectionId != ""
}

type Reader struct {
	cfg    Config
	logger logrus.FieldLogger

	mu                sync.Mutex
	lastSolarReadWatt int32
	lastSolarReadTime time.Time
	cacheTTL          time.Duration

	// Replaced in tests.
	ping          func(host string) (bool, time.Duration, error)
	readRegisters func(address string) ([]byte, error)
	reconnect     func() error
	sleep         func(time.Duration)
	now           func() time.Time
}

func NewReader(cfg Config, logger logrus.FieldLogger) *Reader {
	r := &Reader{
		cfg:           cfg,
		logger:        logger.WithField("component", "solarinverter"),
		cacheTTL:      defaultCacheTTL,
		ping:          ping,
		readRegisters: readActivePower,
		sleep:         time.Sleep,
		now:           time.Now,
	}
	r.reconnect = r.tryReconnect
	return r
}

// ReadSolarData returns the current inverter output in W.
func (r *Reader) ReadSolarData() (int32, error) {
	// Check if configured
	if !r.cfg.IsConfigured() {
		return 0, ErrModbusNotConfigured
	}

	// Use cached reads to avoid spamming the poor inverter
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.lastSolarReadTime.IsZero() && r.lastSolarReadTime.After(r.now().Add(-r.cacheTTL)) {
		return r.lastSolarReadWatt, nil
	}

	address := fmt.Sprintf("%s:%d", r.cfg.Host, r.cfg.Port)
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			// Try reconnecting on retry attempts
			if err := r.reconnect(); err != nil {
				lastErr = fmt.Errorf("reconnect failed on attempt %d: %w", attempt+1, err)
				continue
			}
		}

		// Ping check before attempting modbus connection
		if ok, _, err := r.ping(r.cfg.Host); !ok || err != nil {
			lastErr = fmt.Errorf("ping failed on attempt %d: %w", attempt+1, err)
			if attempt < maxRetries-1 {
				r.sleep(2 * time.Second)
			}
			continue
		}

		result, err := r.readRegisters(address)
		if err != nil {
			lastErr = fmt.Errorf("read power failed on attempt %d: %w", attempt+1, err)
			r.logger.WithError(err).Debug("Inverter read failed")
			if attempt < maxRetries-1 {
				r.sleep(2 * time.Second)
			}
			continue
		}

		power, err := decodePower(result)
		if err != nil {
			lastErr = err
			continue
		}
		r.lastSolarReadWatt = power
		r.lastSolarReadTime = r.now()
		return power, nil
	}

	r.logger.WithError(lastErr).Warn("Could not read solar inverter")
	return 0, errors.Join(ErrModbusReadFailed, lastErr)
}

// decodePower converts the two big endian registers of the active power to W.
func decodePower(result []byte) (int32, error) {
	if len(result) < 4 {
		return 0, fmt.Errorf("short register read: %d bytes", len(result))
	}
	return int32(result[0])<<24 | int32(result[1])<<16 | int32(result[2])<<8 | int32(result[3]), nil
}

func readActivePower(address string) ([]byte, error) {
	handler := modbus.NewTCPClientHandler(address)
	handler.Timeout = 10 * time.Second
	handler.SlaveId = 0

	if err := handler.Connect(); err != nil {
		handler.Close()
		return nil, fmt.Errorf("connection failed: %w", err)
	}
	defer handler.Close()

	// The 2s delay after connecting causes everything to not implode as much
	time.Sleep(2 * time.Second)
	client := modbus.NewClient(handler)

	// Read Active Power
	return client.ReadHoldingRegisters(activePowerRegister, 2)
}

func (r *Reader) tryReconnect() error {
	// Check if already connected
	ok, _, err := r.ping(r.cfg.Host)
	if err == nil && ok {
		return nil // Already connected, no need to reconnect
	}

	// Try reconnecting to wifi
	cmd := exec.Command("nmcli", "connection", "up", r.cfg.WlanConnectionId)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to bring up wifi connection: %w", err)
	}

	// Wait a bit for the connection to establish
	r.sleep(5 * time.Second)

	// Check connection again
	ok, _, err = r.ping(r.cfg.Host)
	if err != nil {
		return err
	}
	if !ok {
		return ErrModbusNotConnected
	}
	return nil
}

func ping(host string) (bool, time.Duration, error) {
	pinger, err := probing.NewPinger(host)
	if err != nil {
		return false, 0, err
	}

	pinger.Count = 1
	pinger.Timeout = 2 * time.Second
	pinger.SetPrivileged(false) // UDP-based, no root needed

	err = pinger.Run()
	if err != nil {
		return false, 0, err
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv > 0 {
		return true, stats.AvgRtt, nil
	}

	return false, 0, fmt.Errorf("no response")
}

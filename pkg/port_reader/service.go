package port_reader

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/NotCoffee418/emucs_p1_reader/pkg/framer"
	"github.com/NotCoffee418/emucs_p1_reader/pkg/meter"
	"github.com/NotCoffee418/emucs_p1_reader/pkg/metrics"
	"github.com/NotCoffee418/emucs_p1_reader/pkg/telegram"
	"github.com/jacobsa/go-serial/serial"
	"github.com/sirupsen/logrus"
)

// Initialize a new P1Reader client.
// Valid telegrams are published to m, everything else is counted in mtr.
func NewP1Reader(
	port string,
	baudrate uint,
	bufferSize int,
	parser *telegram.Parser,
	m *meter.Meter,
	mtr *metrics.Metrics,
	logger logrus.FieldLogger,
) *P1Reader {
	reader := &P1Reader{
		port:       port,
		baudrate:   baudrate,
		chunkSize:  DefaultChunkSize,
		retryDelay: time.Second,
		parser:     parser,
		meter:      m,
		metrics:    mtr,
		logger:     logger.WithField("component", "p1_reader"),
	}
	if bufferSize > 0 && bufferSize < reader.chunkSize {
		reader.chunkSize = bufferSize
	}
	reader.extractor = framer.NewExtractor(bufferSize, reader.handleFrame, logger)
	return reader
}

// Run opens the serial port and reads telegrams until ctx is cancelled or
// too many consecutive read errors occur.
func (p *P1Reader) Run(ctx context.Context) error {
	if err := p.connect(); err != nil {
		return err
	}
	defer p.disconnect()

	// A blocked Read only returns once the port is closed.
	stop := context.AfterFunc(ctx, p.disconnect)
	defer stop()

	return p.Consume(ctx, p.serialPort)
}

// Consume feeds bytes from r to the framer until ctx is cancelled, r reaches
// EOF or maxErrors consecutive reads fail.
func (p *P1Reader) Consume(ctx context.Context, r io.Reader) error {
	br := bufio.NewReaderSize(r, p.chunkSize)
	consecutiveErrors := 0
	var lastError error

	for consecutiveErrors < maxErrors {
		if ctx.Err() != nil {
			return nil
		}

		// Block until at least one byte is pending, then take what arrived.
		_, err := br.Peek(1)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("serial source closed: %w", err)
			}
			consecutiveErrors++
			lastError = err
			p.logger.WithError(err).Warnf("Error reading from P1 port (%d/%d)", consecutiveErrors, maxErrors)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(p.retryDelay):
			}
			continue
		}
		consecutiveErrors = 0

		size := br.Buffered()
		if size > p.chunkSize {
			size = p.chunkSize
		}
		if err := p.extractor.ReadChunk(br, size); err != nil {
			switch {
			case errors.Is(err, framer.ErrBufferOverrun):
				p.metrics.BufferOverruns.Inc()
				// The chunk was never consumed, drop it.
				_, _ = br.Discard(size)
			case errors.Is(err, framer.ErrReadShortfall):
				p.metrics.ReadShortfalls.Inc()
			}
		}
	}

	p.logger.WithError(lastError).Errorf("Too many consecutive errors (%d), stopping reader", maxErrors)
	return fmt.Errorf("too many consecutive read errors: %w", lastError)
}

func (p *P1Reader) handleFrame(frame []byte) {
	reading, err := p.parser.Parse(frame)
	if err != nil {
		switch {
		case errors.Is(err, telegram.ErrChecksumMismatch):
			p.metrics.ChecksumMismatches.Inc()
		case errors.Is(err, telegram.ErrMalformedFrame):
			p.metrics.MalformedFrames.Inc()
		}
		p.logger.WithError(err).Warn("Dropping telegram")
		return
	}

	p.metrics.Telegrams.Inc()
	p.meter.Publish(reading)
}

// Open the connection to the P1 port.
func (p *P1Reader) connect() error {
	options := serial.OpenOptions{
		PortName:        p.port,
		BaudRate:        p.baudrate,
		DataBits:        8,
		StopBits:        1,
		ParityMode:      serial.PARITY_NONE,
		MinimumReadSize: 1,
	}

	port, err := serial.Open(options)
	if err != nil {
		return fmt.Errorf("failed to open serial port: %w", err)
	}

	p.serialPort = port
	p.logger.WithField("port", p.port).Info("Connected to P1 port")
	return nil
}

func (p *P1Reader) disconnect() {
	if p.serialPort == nil {
		return
	}
	p.closeOnce.Do(func() {
		p.serialPort.Close()
		p.logger.Info("Disconnected from P1 port")
	})
}

// Package framer cuts P1 telegrams out of a raw serial byte stream.
//
// A telegram starts with '/' and ends with '!', four CRC characters and CRLF.
// Bytes arrive in chunks of arbitrary size which do not line up with telegrams,
// so the Extractor accumulates them in a fixed buffer and runs a small state
// machine over every chunk.
package framer

import (
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// DefaultBufferSize matches the UART driver buffer of the meter interface.
const DefaultBufferSize = 1024

var (
	// The accumulated bytes would exceed the buffer. Framing restarts from idle.
	ErrBufferOverrun = errors.New("buffer overrun")
	// Fewer bytes than announced could be read. Framing state is left untouched.
	ErrReadShortfall = errors.New("read shortfall")
)

type State uint8

const (
	StateIdle State = iota
	StateInFrame
	StateAwaitingTerminator
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInFrame:
		return "in_frame"
	case StateAwaitingTerminator:
		return "awaiting_terminator"
	}
	return "unknown"
}

// FrameHandler receives one complete frame, from '/' up to and including CRLF.
// The slice aliases the extractor buffer and is only valid during the call.
type FrameHandler func(frame []byte)

// Extractor is not safe for concurrent use; it is driven by a single reader.
type Extractor struct {
	buf        []byte
	cursor     int // next free position in buf
	state      State
	frameStart int
	onFrame    FrameHandler
	logger     logrus.FieldLogger
}

func NewExtractor(capacity int, onFrame FrameHandler, logger logrus.FieldLogger) *Extractor {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	return &Extractor{
		buf:     make([]byte, capacity),
		onFrame: onFrame,
		logger:  logger.WithField("component", "framer"),
	}
}

func (e *Extractor) State() State {
	return e.state
}

// Buffered returns the number of bytes currently held for a partial frame.
func (e *Extractor) Buffered() int {
	return e.cursor
}

func (e *Extractor) Capacity() int {
	return len(e.buf)
}

// Reset drops all buffered data and returns to idle.
func (e *Extractor) Reset() {
	e.state = StateIdle
	e.cursor = 0
	e.frameStart = 0
}

// Write feeds one chunk of received bytes. Complete frames are handed to the
// frame handler before Write returns. A chunk that does not fit returns
// ErrBufferOverrun; the chunk is dropped and framing restarts from idle.
func (e *Extractor) Write(chunk []byte) (int, error) {
	if err := e.reserve(len(chunk)); err != nil {
		return 0, err
	}
	copy(e.buf[e.cursor:], chunk)
	e.scan(len(chunk))
	return len(chunk), nil
}

// ReadChunk reads exactly size bytes from r into the buffer and processes them.
// It is used when the source announces how many bytes are pending.
func (e *Extractor) ReadChunk(r io.Reader, size int) error {
	if err := e.reserve(size); err != nil {
		return err
	}
	n, err := io.ReadFull(r, e.buf[e.cursor:e.cursor+size])
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"expected": size,
			"got":      n,
		}).Error("Not all bytes were read from the serial port")
		return fmt.Errorf("%w: expected %d bytes, got %d: %v", ErrReadShortfall, size, n, err)
	}
	e.scan(size)
	return nil
}

func (e *Extractor) reserve(size int) error {
	if e.cursor+size <= len(e.buf) {
		return nil
	}
	buffered := e.cursor
	e.logger.WithFields(logrus.Fields{
		"buffered": buffered,
		"chunk":    size,
		"capacity": len(e.buf),
	}).Warn("Not enough space in the buffer, resetting state")
	e.Reset()
	return fmt.Errorf("%w: %d buffered + %d new > %d", ErrBufferOverrun, buffered, size, len(e.buf))
}

// scan runs the state machine over the size bytes just placed at the cursor.
func (e *Extractor) scan(size int) {
	end := e.cursor + size
	for i := e.cursor; i < end; i++ {
		b := e.buf[i]
		switch e.state {
		case StateIdle:
			if b == '/' {
				e.state = StateInFrame
				e.frameStart = i
			}
		case StateInFrame:
			if b == '!' {
				e.state = StateAwaitingTerminator
			}
		case StateAwaitingTerminator:
			if b == '\n' && e.buf[i-1] == '\r' {
				frameSize := i - e.frameStart + 1
				e.logger.WithField("size", frameSize).Debug("Complete telegram found")
				if e.onFrame != nil {
					e.onFrame(e.buf[e.frameStart : e.frameStart+frameSize])
				}
				e.state = StateIdle
				e.frameStart = 0
			}
		}
	}

	if e.state == StateIdle {
		// Nothing before the next '/' is worth keeping.
		e.cursor = 0
		return
	}

	// Keep the partial frame at the start of the buffer so a telegram spread
	// over many chunks always has the full capacity available.
	if e.frameStart != 0 {
		n := copy(e.buf, e.buf[e.frameStart:end])
		e.cursor = n
		e.frameStart = 0
		return
	}
	e.cursor = end
}

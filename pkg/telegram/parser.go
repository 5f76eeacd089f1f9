// Package telegram validates and decodes P1 telegrams into a types.Reading.
package telegram

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/NotCoffee418/emucs_p1_reader/pkg/types"
	"github.com/sirupsen/logrus"
)

const lineSep = "\r\n"

// trailerLen is the 4 CRC characters followed by CRLF.
const trailerLen = 4 + len(lineSep)

var (
	ErrMalformedFrame   = errors.New("malformed telegram frame")
	ErrChecksumMismatch = errors.New("telegram checksum mismatch")
)

type Parser struct {
	loc    *time.Location
	logger logrus.FieldLogger
}

// NewParser creates a parser interpreting meter timestamps in loc.
// A nil loc uses the local time zone.
func NewParser(loc *time.Location, logger logrus.FieldLogger) *Parser {
	if loc == nil {
		loc = time.Local
	}
	return &Parser{
		loc:    loc,
		logger: logger.WithField("component", "telegram"),
	}
}

// Parse checks the CRC of a complete frame and decodes every known line into
// a fresh Reading. Nothing is returned for frames that fail the CRC.
func (p *Parser) Parse(frame []byte) (types.Reading, error) {
	if err := checkFrame(frame); err != nil {
		return types.Reading{}, err
	}
	if given, computed, ok := validateCRC(frame); !ok {
		return types.Reading{}, fmt.Errorf("%w: telegram says %s, computed %s", ErrChecksumMismatch, given, computed)
	}

	var reading types.Reading
	body := string(frame[:len(frame)-trailerLen])
	for _, line := range strings.Split(body, lineSep) {
		code, _, found := strings.Cut(line, "(")
		if !found {
			continue
		}
		parse, known := catalog[code]
		if !known {
			continue
		}
		if !parse(&reading, line, p.loc) {
			p.logger.WithFields(logrus.Fields{
				"code": code,
				"line": line,
			}).Debug("Field could not be parsed, using zero value")
		}
	}
	return reading, nil
}

func checkFrame(frame []byte) error {
	n := len(frame)
	if n < 1+1+trailerLen {
		return fmt.Errorf("%w: %d bytes is too short", ErrMalformedFrame, n)
	}
	if frame[0] != '/' {
		return fmt.Errorf("%w: does not start with '/'", ErrMalformedFrame)
	}
	if frame[n-trailerLen-1] != '!' || string(frame[n-len(lineSep):]) != lineSep {
		return fmt.Errorf("%w: missing '!XXXX\\r\\n' trailer", ErrMalformedFrame)
	}
	return nil
}

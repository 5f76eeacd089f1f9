package telegram

import (
	"strconv"
	"strings"
	"time"
)

// timestampLayout is YYMMDDhhmmss. The trailing DST flag (S/W) is not read.
const (
	timestampLayout = "060102150405"
	timestampLen    = len(timestampLayout)
)

// stringBetween returns the text strictly between the first start byte and the
// first end byte after it, cut to maxLen bytes.
func stringBetween(line string, start, end byte, maxLen int) (string, bool) {
	from := strings.IndexByte(line, start)
	if from < 0 {
		return "", false
	}
	to := strings.IndexByte(line[from+1:], end)
	if to < 0 {
		return "", false
	}
	s := line[from+1 : from+1+to]
	if maxLen > 0 && len(s) > maxLen {
		s = s[:maxLen]
	}
	return s, true
}

// timestampBetween reads a local YYMMDDhhmmss time as a Unix timestamp, 0 on failure.
func timestampBetween(line string, start, end byte, loc *time.Location) (int64, bool) {
	s, ok := stringBetween(line, start, end, 0)
	if !ok || len(s) < timestampLen {
		return 0, false
	}
	t, err := time.ParseInLocation(timestampLayout, s[:timestampLen], loc)
	if err != nil {
		return 0, false
	}
	return t.Unix(), true
}

func floatBetween(line string, start, end byte) (float32, bool) {
	s, ok := stringBetween(line, start, end, 0)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, false
	}
	return float32(v), true
}

func uintBetween(line string, start, end byte) (uint32, bool) {
	s, ok := stringBetween(line, start, end, 0)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}

// afterCloseParens returns the rest of line after its n-th ')'.
// An empty string means the line has fewer than n tokens.
func afterCloseParens(line string, n int) string {
	pos := 0
	for i := 0; i < n; i++ {
		idx := strings.IndexByte(line[pos:], ')')
		if idx < 0 {
			return ""
		}
		pos += idx + 1
	}
	return line[pos:]
}

package predictor

import (
	"fmt"
	"math"
	"time"

	"github.com/NotCoffee418/emucs_p1_reader/pkg/history"
	"gonum.org/v1/gonum/stat"
)

type Method uint8

const (
	MethodLinearRegression Method = iota
	MethodWeightedAverage
)

func (m Method) String() string {
	switch m {
	case MethodLinearRegression:
		return "linear_regression"
	case MethodWeightedAverage:
		return "weighted_average"
	}
	return fmt.Sprintf("method(%d)", uint8(m))
}

func ParseMethod(s string) (Method, error) {
	switch s {
	case "linear_regression", "":
		return MethodLinearRegression, nil
	case "weighted_average":
		return MethodWeightedAverage, nil
	}
	return 0, fmt.Errorf("unknown predict peak method %q", s)
}

// QuarterHourStart returns the index of the first entry that starts a quarter
// hour (hh:00:00, hh:15:00, ...) in loc, or 0 when there is none.
func QuarterHourStart(entries []history.ShortTermEntry, loc *time.Location) int {
	for i, e := range entries {
		t := time.Unix(e.Timestamp, 0).In(loc)
		if t.Minute()%15 == 0 && t.Second() == 0 {
			return i
		}
	}
	return 0
}

// EndOfQuarterHour returns the timestamp at which the quarter hour containing ts ends.
func EndOfQuarterHour(ts int64, loc *time.Location) int64 {
	t := time.Unix(ts, 0).In(loc)
	minute := (t.Minute()/15 + 1) * 15
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), minute, 0, 0, loc).Unix()
}

// linearRegression fits the average demand against time with least squares and
// extends the line from the last sample to end.
func linearRegression(entries []history.ShortTermEntry, end int64) float32 {
	first := entries[0].Timestamp
	xs := make([]float64, len(entries))
	ys := make([]float64, len(entries))
	for i, e := range entries {
		xs[i] = float64(e.Timestamp - first)
		ys[i] = float64(e.CurrentAvgDemand)
	}

	_, slope := stat.LinearRegression(xs, ys, nil, false)
	if math.IsNaN(slope) || math.IsInf(slope, 0) {
		// A single timestamp has no slope.
		slope = 0
	}

	last := entries[len(entries)-1]
	return float32(float64(last.CurrentAvgDemand) + slope*float64(end-last.Timestamp))
}

// weightedAverage averages the power usage, the weight growing linearly with
// the age of the sample since the first one. The result is the demand if that
// load stays constant for the rest of the quarter hour.
func weightedAverage(entries []history.ShortTermEntry) float32 {
	first := entries[0].Timestamp
	usage := make([]float64, len(entries))
	weights := make([]float64, len(entries))
	for i, e := range entries {
		usage[i] = float64(e.CurrentPowerUsage)
		weights[i] = float64(e.Timestamp - first + 1)
	}
	return float32(stat.Mean(usage, weights))
}

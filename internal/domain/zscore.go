package domain

import "time"

// FlatStddevThreshold is the standard-deviation floor below which a z-score is forced
// to 0 rather than exploding to +/-Inf.
const FlatStddevThreshold = 1e-9

// ZScore is the standardized value of one indicator at one timestamp,
// computed against a rolling window's mean and standard deviation.
type ZScore struct {
	IndicatorID string
	Timestamp   time.Time
	RawValue    float64
	Mean        float64
	Stddev      *float64
	Z           *float64
}

// ComputeZ derives z = (rawValue - mean) / stddev, returning nil if stddev
// is nil (insufficient history) and 0 if stddev is below the flat
// threshold.
func ComputeZ(rawValue, mean float64, stddev *float64) *float64 {
	if stddev == nil {
		return nil
	}
	if *stddev < FlatStddevThreshold {
		zero := 0.0
		return &zero
	}
	z := (rawValue - mean) / *stddev
	return &z
}

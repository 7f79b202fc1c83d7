package stats

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/aristath/pxi/internal/domain"
)

// MinHistoryPoints is the floor below which a z-score is undefined per
// spec: n < 5 means "insufficient data", not "compute anyway".
const MinHistoryPoints = 5

// DefaultWindowDays is the rolling window used for ingest-time z-scoring.
// The historical backfill may use a wider window; this is a configuration
// parameter, not a code constant, hence its exposure here as a default.
const DefaultWindowDays = 90

// VolatilityWindowDays is the lookback for rolling volatility and stability
// rating.
const VolatilityWindowDays = 30

// OutlierZThreshold is the |z| above which the latest observation is
// classified Outlier.
const OutlierZThreshold = 3.0

// Snapshot computes a StatsSnapshot from a history of raw (value,
// timestamp) points for one indicator, resampling to daily and
// forward-filling sparse series first.
func Snapshot(indicatorID string, history []TimedValue, windowDays int, asOf time.Time) domain.StatsSnapshot {
	daily := ForwardFill(Resample(history), ForwardFillThreshold)

	values := make([]float64, len(daily))
	for i, d := range daily {
		values[i] = d.Value
	}

	snap := domain.StatsSnapshot{
		IndicatorID: indicatorID,
		WindowDays:  windowDays,
		N:           len(values),
		AsOf:        asOf,
	}
	if len(values) == 0 {
		return snap
	}

	snap.Min, snap.Max = minMax(values)
	snap.Mean = stat.Mean(values, nil)
	if len(values) >= MinHistoryPoints {
		sigma := stat.StdDev(values, nil)
		snap.Stddev = &sigma
	}
	return snap
}

// ComputeZScore derives the rolling z-score for a new sample given a
// StatsSnapshot computed over the preceding window. Per spec: if stddev is
// nil (n<5), z is undefined; if stddev < flat threshold, z = 0.
func ComputeZScore(indicatorID string, sampleValue float64, timestamp time.Time, snap domain.StatsSnapshot) domain.ZScore {
	z := domain.ComputeZ(sampleValue, snap.Mean, snap.Stddev)
	return domain.ZScore{
		IndicatorID: indicatorID,
		Timestamp:   timestamp,
		RawValue:    sampleValue,
		Mean:        snap.Mean,
		Stddev:      snap.Stddev,
		Z:           z,
	}
}

// RollingVolatility computes sigma over the last VolatilityWindowDays
// resampled daily values.
func RollingVolatility(history []TimedValue) *float64 {
	daily := ForwardFill(Resample(history), ForwardFillThreshold)
	if len(daily) > VolatilityWindowDays {
		daily = daily[len(daily)-VolatilityWindowDays:]
	}
	if len(daily) < MinHistoryPoints {
		return nil
	}
	values := make([]float64, len(daily))
	for i, d := range daily {
		values[i] = d.Value
	}
	sigma := stat.StdDev(values, nil)
	return &sigma
}

// StabilityRating buckets a rolling sigma into the fixed partition of
// stability bands.
func StabilityRating(sigma float64) domain.StabilityRating {
	switch {
	case sigma < 0.5:
		return domain.StabilityVeryStable
	case sigma < 1.5:
		return domain.StabilityStable
	case sigma < 3.0:
		return domain.StabilityVolatile
	default:
		return domain.StabilityUnstable
	}
}

// ClassifyHealth applies the fixed health rules in priority order: Invalid,
// Flat, Outlier, Stale, else OK.
func ClassifyHealth(recentValues []float64, latestZ *float64, snap domain.StatsSnapshot) domain.Health {
	for _, v := range recentValues {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return domain.HealthInvalid
		}
	}
	if snap.Stddev != nil && *snap.Stddev < domain.FlatStddevThreshold {
		return domain.HealthFlat
	}
	if latestZ != nil && math.Abs(*latestZ) >= OutlierZThreshold {
		return domain.HealthOutlier
	}
	if snap.N < MinHistoryPoints {
		return domain.HealthStale
	}
	return domain.HealthOK
}

func minMax(values []float64) (float64, float64) {
	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

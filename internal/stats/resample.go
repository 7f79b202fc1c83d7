// Package stats implements the statistical engine: daily resampling,
// sparse-series forward-fill, rolling z-scores, rolling volatility, and
// per-indicator health classification.
package stats

import (
	"sort"
	"time"
)

// DatedValue is one value observed on one UTC calendar date.
type DatedValue struct {
	Date  time.Time // truncated to the UTC calendar date (midnight)
	Value float64
}

// Resample groups (value, timestamp) points by UTC calendar date, retaining
// the latest timestamp's value per date. The result is ordered oldest-first,
// one value per date.
func Resample(points []TimedValue) []DatedValue {
	latestForDate := make(map[time.Time]TimedValue)
	for _, p := range points {
		date := p.Timestamp.UTC().Truncate(24 * time.Hour)
		existing, ok := latestForDate[date]
		if !ok || p.Timestamp.After(existing.Timestamp) {
			latestForDate[date] = TimedValue{Timestamp: p.Timestamp, Value: p.Value}
		}
	}

	dates := make([]time.Time, 0, len(latestForDate))
	for d := range latestForDate {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	out := make([]DatedValue, 0, len(dates))
	for _, d := range dates {
		out = append(out, DatedValue{Date: d, Value: latestForDate[d].Value})
	}
	return out
}

// TimedValue is a raw (value, timestamp) observation, the input to Resample.
type TimedValue struct {
	Timestamp time.Time
	Value     float64
}

// ForwardFillThreshold is the minimum fraction of the date span that must
// already be covered before forward-fill is skipped as unnecessary.
const ForwardFillThreshold = 0.5

// ForwardFill carries the last observed value across missing days when the
// resampled coverage is below ForwardFillThreshold of the date span and the
// span exceeds one day. It is pure: no I/O, and the threshold is a
// parameter rather than a package constant so callers can tune it.
func ForwardFill(values []DatedValue, threshold float64) []DatedValue {
	if len(values) < 2 {
		return values
	}

	span := int(values[len(values)-1].Date.Sub(values[0].Date).Hours()/24) + 1
	if span <= 1 {
		return values
	}

	coverage := float64(len(values)) / float64(span)
	if coverage >= threshold {
		return values
	}

	byDate := make(map[time.Time]float64, len(values))
	for _, v := range values {
		byDate[v.Date] = v.Value
	}

	out := make([]DatedValue, 0, span)
	last := values[0].Value
	for i := 0; i < span; i++ {
		d := values[0].Date.AddDate(0, 0, i)
		if v, ok := byDate[d]; ok {
			last = v
		}
		out = append(out, DatedValue{Date: d, Value: last})
	}
	return out
}

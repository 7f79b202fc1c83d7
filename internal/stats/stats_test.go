package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/pxi/internal/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResample_KeepsLatestPerDate(t *testing.T) {
	points := []TimedValue{
		{Timestamp: day(2026, 1, 1).Add(9 * time.Hour), Value: 10},
		{Timestamp: day(2026, 1, 1).Add(16 * time.Hour), Value: 12},
		{Timestamp: day(2026, 1, 2).Add(9 * time.Hour), Value: 15},
	}
	out := Resample(points)
	require.Len(t, out, 2)
	assert.Equal(t, 12.0, out[0].Value)
	assert.Equal(t, 15.0, out[1].Value)
}

func TestForwardFill_SkipsWhenDense(t *testing.T) {
	values := []DatedValue{
		{Date: day(2026, 1, 1), Value: 1},
		{Date: day(2026, 1, 2), Value: 2},
	}
	out := ForwardFill(values, ForwardFillThreshold)
	assert.Equal(t, values, out)
}

func TestForwardFill_FillsSparseSeries(t *testing.T) {
	values := []DatedValue{
		{Date: day(2026, 1, 1), Value: 1},
		{Date: day(2026, 1, 10), Value: 2},
	}
	out := ForwardFill(values, ForwardFillThreshold)
	require.Len(t, out, 10)
	assert.Equal(t, 1.0, out[4].Value)
	assert.Equal(t, 2.0, out[9].Value)
}

func TestSnapshot_InsufficientHistoryHasNilStddev(t *testing.T) {
	history := []TimedValue{
		{Timestamp: day(2026, 1, 1), Value: 10},
		{Timestamp: day(2026, 1, 2), Value: 11},
	}
	snap := Snapshot("vix", history, DefaultWindowDays, day(2026, 1, 3))
	assert.Nil(t, snap.Stddev)
	assert.Equal(t, 2, snap.N)
}

func TestSnapshot_SufficientHistoryComputesStddev(t *testing.T) {
	history := make([]TimedValue, 0, 10)
	for i := 0; i < 10; i++ {
		history = append(history, TimedValue{Timestamp: day(2026, 1, 1).AddDate(0, 0, i), Value: float64(10 + i)})
	}
	snap := Snapshot("vix", history, DefaultWindowDays, day(2026, 1, 11))
	require.NotNil(t, snap.Stddev)
	assert.Greater(t, *snap.Stddev, 0.0)
}

func TestClassifyHealth_Stale(t *testing.T) {
	health := ClassifyHealth([]float64{1, 2}, nil, domain.StatsSnapshot{N: 2})
	assert.Equal(t, domain.HealthStale, health)
}

func TestClassifyHealth_OK(t *testing.T) {
	z := 0.5
	health := ClassifyHealth([]float64{1, 2, 3, 4, 5}, &z, domain.StatsSnapshot{N: 10})
	assert.Equal(t, domain.HealthOK, health)
}

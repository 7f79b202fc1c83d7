package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSharpeRatio_NilOnFlatSeries(t *testing.T) {
	assert.Nil(t, SharpeRatio([]float64{1, 1, 1, 1}))
}

func TestSharpeRatio_NilOnTooFewPoints(t *testing.T) {
	assert.Nil(t, SharpeRatio([]float64{1}))
}

func TestSharpeRatio_ComputesForVaryingSeries(t *testing.T) {
	sharpe := SharpeRatio([]float64{0.1, 0.2, 0.15, 0.3, 0.25, 0.4})
	require.NotNil(t, sharpe)
}

func TestCalculateDrawdownMetrics_TracksPeakAndTrough(t *testing.T) {
	dd := CalculateDrawdownMetrics([]float64{1.0, 1.5, 1.2, 0.9, 1.1})
	require.NotNil(t, dd)
	assert.Equal(t, 1.5, dd.PeakValue)
	assert.Equal(t, 1.1, dd.CurrentValue)
	assert.InDelta(t, 0.4, dd.MaxDrawdown, 1e-9)
	assert.InDelta(t, (1.5-1.1)/1.5, dd.CurrentDrawdown, 1e-9)
}

func TestCalculateDrawdownMetrics_NilOnTooFewPoints(t *testing.T) {
	assert.Nil(t, CalculateDrawdownMetrics([]float64{1.0}))
}

func TestComputeRiskMetrics_BundlesAllDiagnostics(t *testing.T) {
	metrics := ComputeRiskMetrics([]float64{-0.5, -0.2, 0.1, 0.4, 0.9, 0.6, 0.3})
	assert.Equal(t, 7, metrics.Observations)
	require.NotNil(t, metrics.Drawdown)
	require.NotNil(t, metrics.Volatility)
	require.NotNil(t, metrics.MeanReturn)
}

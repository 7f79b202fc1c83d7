// Package analytics derives Sharpe-ratio, drawdown, and composite risk
// metrics from the trailing PXI series, the same return/drawdown formulas
// the teacher applies to portfolio price series, applied here to the
// composite stress index instead of a security price.
package analytics

import "math"

// Returns converts a level series into period-over-period simple returns.
func Returns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		out = append(out, (values[i]-values[i-1])/values[i-1])
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var sumSq float64
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)-1))
}

// SharpeRatio computes the annualized Sharpe ratio of the PXI's
// day-over-day changes against a zero risk-free rate, assuming one
// observation per calendar day (periodsPerYear=365, the PXI runs
// continuously rather than on a trading calendar). Returns nil when there
// are fewer than two returns or the series is flat.
func SharpeRatio(values []float64) *float64 {
	returns := Returns(values)
	if len(returns) < 2 {
		return nil
	}
	sd := stddev(returns)
	if sd == 0 {
		return nil
	}
	sharpe := mean(returns) / sd * math.Sqrt(365)
	return &sharpe
}

// DrawdownMetrics summarizes how far the PXI has fallen from its trailing
// peak. For a stress index this tracks de-escalation rather than loss, but
// the shape of the calculation (peak-to-trough, days since peak) is
// identical to a portfolio drawdown.
type DrawdownMetrics struct {
	MaxDrawdown     float64
	CurrentDrawdown float64
	DaysInDrawdown  int
	PeakValue       float64
	CurrentValue    float64
}

// CalculateDrawdownMetrics walks values once, tracking the running peak and
// the deepest peak-to-trough decline observed.
func CalculateDrawdownMetrics(values []float64) *DrawdownMetrics {
	if len(values) < 2 {
		return nil
	}

	peak := values[0]
	peakIndex := 0
	maxDrawdown := 0.0

	for i, v := range values {
		if v > peak {
			peak = v
			peakIndex = i
		}
		if peak != 0 {
			if dd := (peak - v) / math.Abs(peak); dd > maxDrawdown {
				maxDrawdown = dd
			}
		}
	}

	current := values[len(values)-1]
	currentDrawdown := 0.0
	if peak != 0 {
		currentDrawdown = (peak - current) / math.Abs(peak)
	}

	return &DrawdownMetrics{
		MaxDrawdown:     maxDrawdown,
		CurrentDrawdown: currentDrawdown,
		DaysInDrawdown:  len(values) - 1 - peakIndex,
		PeakValue:       peak,
		CurrentValue:    current,
	}
}

// RiskMetrics bundles the derived diagnostics the analytics endpoints
// report for the 90-day PXI series.
type RiskMetrics struct {
	Sharpe       *float64
	Drawdown     *DrawdownMetrics
	Volatility   *float64 // annualized stddev of daily changes
	MeanReturn   *float64
	Observations int
}

// ComputeRiskMetrics derives the full risk bundle from a chronological PXI
// value series.
func ComputeRiskMetrics(values []float64) RiskMetrics {
	metrics := RiskMetrics{Observations: len(values)}
	metrics.Sharpe = SharpeRatio(values)
	metrics.Drawdown = CalculateDrawdownMetrics(values)

	returns := Returns(values)
	if len(returns) >= 2 {
		vol := stddev(returns) * math.Sqrt(365)
		metrics.Volatility = &vol
		m := mean(returns)
		metrics.MeanReturn = &m
	}
	return metrics
}

// Package composite implements the composite engine: dynamic weighting,
// cap-and-redistribute normalization, the composite PXI value, threshold
// regime classification, and alert emission.
package composite

import (
	"math"
	"time"

	"github.com/aristath/pxi/internal/domain"
)

// DefaultCap is the per-indicator normalized-weight cap (MAX_METRIC_CONTRIBUTION).
const DefaultCap = 0.25

const (
	magnitudeBeta  = 2.0 // |z| > 2
	magnitudeAlpha = 1.5 // |z| > 1
)

// IndicatorInput bundles one indicator's definition, latest sample, and
// current z-score for one tick's composite calculation.
type IndicatorInput struct {
	Definition domain.IndicatorDefinition
	Sample     domain.Sample
	Z          *float64 // nil if undefined (insufficient history)
}

// Config holds the composite engine's tunables.
type Config struct {
	Cap float64 // per-indicator normalized-weight cap, default DefaultCap
}

// Result bundles the computed composite row with the alerts it emits.
type Result struct {
	Composite domain.Composite
	Alerts    []domain.Alert
}

// Compute runs one tick of the composite engine. previousValues maps
// indicatorID to its last composite-tick raw value, used for the
// deviation_review alert; previousPxi is nil on the very first successful
// tick (no pxi_change alert is emitted then). recentDeviationCounts maps
// indicatorID to how many deviation_review alerts it has accrued in the
// last 30 days, used for the bound_suggestion escalation.
func Compute(now time.Time, inputs []IndicatorInput, cfg Config, previousValues map[string]float64, previousPxi *float64, recentDeviationCounts map[string]int) Result {
	if cfg.Cap <= 0 {
		cfg.Cap = DefaultCap
	}

	type weighted struct {
		input        IndicatorInput
		effective    float64
		direction    float64
	}

	var participants []weighted
	var alerts []domain.Alert

	for _, in := range inputs {
		if in.Z == nil {
			continue
		}
		if in.Definition.Weight <= 0 {
			continue
		}

		signalMult := in.Sample.Metadata.Multiplier()
		magnitudeMult := magnitudeMultiplier(*in.Z)
		effective := in.Definition.Weight * magnitudeMult * signalMult

		participants = append(participants, weighted{
			input:     in,
			effective: effective,
			direction: in.Definition.Direction(),
		})

		alerts = append(alerts, highZScoreAlerts(in, now)...)
		if dev, ok := deviationReviewAlert(in, now, previousValues); ok {
			alerts = append(alerts, dev)
			if recentDeviationCounts[in.Definition.ID]+1 >= 3 {
				alerts = append(alerts, boundSuggestionAlert(in, now))
			}
		}
	}

	effectives := make([]float64, len(participants))
	for i, p := range participants {
		effectives[i] = p.effective
	}
	normalized := normalizeAndCap(effectives, cfg.Cap)

	var rawPxi, totalWeight float64
	metrics := make([]domain.MetricContribution, 0, len(participants))
	pampCount, stressCount := 0, 0
	for i, p := range participants {
		contribution := normalized[i] * (*p.input.Z) * p.direction
		rawPxi += contribution
		totalWeight += p.effective
		metrics = append(metrics, domain.MetricContribution{
			IndicatorID:      p.input.Definition.ID,
			Value:            p.input.Sample.Value,
			Z:                p.input.Z,
			NormalizedWeight: normalized[i],
			Contribution:     contribution,
		})
		if contribution > 0 {
			pampCount++
		} else if contribution < 0 {
			stressCount++
		}
	}

	pxi := round3(domain.Clamp(rawPxi, -3, 3))
	regime := domain.ClassifyRegime(pxi)

	comp := domain.Composite{
		CalculatedAt: now,
		RawPxi:       rawPxi,
		Pxi:          pxi,
		Metrics:      metrics,
		Regime:       regime,
		TotalWeight:  totalWeight,
		PampCount:    pampCount,
		StressCount:  stressCount,
	}

	alerts = append(alerts, compositeBreachAlert(comp, now)...)
	if previousPxi != nil {
		if a, ok := pxiChangeAlert(pxi, *previousPxi, now); ok {
			alerts = append(alerts, a)
		}
	}

	return Result{Composite: comp, Alerts: alerts}
}

func magnitudeMultiplier(z float64) float64 {
	abs := math.Abs(z)
	switch {
	case abs > 2:
		return magnitudeBeta
	case abs > 1:
		return magnitudeAlpha
	default:
		return 1.0
	}
}

// normalizeAndCap implements the two-stage normalization: initial weight
// share (stage a), then a single cap-and-redistribute pass (stage b). Only
// indicators over cap in the initial share are clamped; the freed excess is
// handed to the rest in one shot, even if that pushes one of them over cap
// in turn — redistribution is not iterated, matching the worked example
// where a single pass leaves the recipients above the cap by design.
//
// If every participant is already over cap in the initial share, the cap
// has no feasible recipient for the excess. Rather than discard weight mass
// (which would break the sum-to-one invariant), the cap is left unenforced
// for that tick and the uncapped shares are returned unchanged.
func normalizeAndCap(effectives []float64, cap float64) []float64 {
	n := len(effectives)
	if n == 0 {
		return nil
	}

	var total float64
	for _, w := range effectives {
		total += w
	}
	if total <= 0 {
		return make([]float64, n)
	}

	weights := make([]float64, n)
	for i, w := range effectives {
		weights[i] = w / total
	}

	overCap := make([]bool, n)
	var excess float64
	for i, w := range weights {
		if w > cap {
			overCap[i] = true
			excess += w - cap
		}
	}
	if excess == 0 {
		return weights
	}

	var recipientTotal float64
	for i, w := range weights {
		if !overCap[i] {
			recipientTotal += w
		}
	}
	if recipientTotal == 0 {
		return weights
	}

	result := make([]float64, n)
	for i, w := range weights {
		if overCap[i] {
			result[i] = cap
		} else {
			result[i] = w + excess*w/recipientTotal
		}
	}
	return result
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

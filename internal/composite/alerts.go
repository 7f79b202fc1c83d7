package composite

import (
	"fmt"
	"math"
	"time"

	"github.com/aristath/pxi/internal/domain"
)

const (
	highZWarnThreshold     = 1.5
	highZCriticalThreshold = 2.5

	deviationReviewThreshold = 0.10 // |delta/prev| > 10%

	compositeBreachThreshold     = 1.0
	compositeBreachCriticalAbove = 2.0

	pxiChangeThreshold = 0.5
)

func highZScoreAlerts(in IndicatorInput, now time.Time) []domain.Alert {
	if in.Z == nil || math.Abs(*in.Z) <= highZWarnThreshold {
		return nil
	}
	severity := domain.SeverityWarning
	if math.Abs(*in.Z) > highZCriticalThreshold {
		severity = domain.SeverityCritical
	}
	id := in.Definition.ID
	value := in.Sample.Value
	return []domain.Alert{{
		AlertType:   domain.AlertHighZScore,
		IndicatorID: &id,
		Timestamp:   now,
		RawValue:    &value,
		Z:           in.Z,
		Message:     fmt.Sprintf("%s z-score %.2f exceeds threshold", in.Definition.Label, *in.Z),
		Severity:    severity,
	}}
}

func deviationReviewAlert(in IndicatorInput, now time.Time, previousValues map[string]float64) (domain.Alert, bool) {
	prev, ok := previousValues[in.Definition.ID]
	if !ok || prev == 0 {
		return domain.Alert{}, false
	}
	delta := (in.Sample.Value - prev) / prev
	if math.Abs(delta) <= deviationReviewThreshold {
		return domain.Alert{}, false
	}
	id := in.Definition.ID
	value := in.Sample.Value
	threshold := deviationReviewThreshold
	return domain.Alert{
		AlertType:   domain.AlertDeviationReview,
		IndicatorID: &id,
		Timestamp:   now,
		RawValue:    &value,
		Threshold:   &threshold,
		Message:     fmt.Sprintf("%s moved %.1f%% since previous tick", in.Definition.Label, delta*100),
		Severity:    domain.SeverityInfo,
	}, true
}

func boundSuggestionAlert(in IndicatorInput, now time.Time) domain.Alert {
	id := in.Definition.ID
	widenedLower := in.Definition.LowerBound * 0.8
	widenedUpper := in.Definition.UpperBound * 1.2
	return domain.Alert{
		AlertType:   domain.AlertBoundSuggestion,
		IndicatorID: &id,
		Timestamp:   now,
		Message: fmt.Sprintf("%s: repeated deviation reviews; consider widening bounds to [%.3f, %.3f]",
			in.Definition.Label, widenedLower, widenedUpper),
		Severity: domain.SeverityInfo,
	}
}

func compositeBreachAlert(comp domain.Composite, now time.Time) []domain.Alert {
	if math.Abs(comp.Pxi) <= compositeBreachThreshold {
		return nil
	}
	severity := domain.SeverityWarning
	if math.Abs(comp.Pxi) > compositeBreachCriticalAbove {
		severity = domain.SeverityCritical
	}
	threshold := compositeBreachThreshold
	pxi := comp.Pxi
	return []domain.Alert{{
		AlertType: domain.AlertCompositeBreach,
		Timestamp: now,
		RawValue:  &pxi,
		Threshold: &threshold,
		Message:   fmt.Sprintf("composite PXI %.3f breached threshold", comp.Pxi),
		Severity:  severity,
	}}
}

func pxiChangeAlert(pxi, previousPxi float64, now time.Time) (domain.Alert, bool) {
	delta := pxi - previousPxi
	if math.Abs(delta) <= pxiChangeThreshold {
		return domain.Alert{}, false
	}
	threshold := pxiChangeThreshold
	value := pxi
	return domain.Alert{
		AlertType: domain.AlertPxiChange,
		Timestamp: now,
		RawValue:  &value,
		Threshold: &threshold,
		Message:   fmt.Sprintf("composite PXI moved %.3f since previous tick", delta),
		Severity:  domain.SeverityWarning,
	}, true
}

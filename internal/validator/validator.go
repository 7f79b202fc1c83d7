// Package validator checks a batch of ingested samples before they reach
// the store. Validation is all-or-nothing for the batch: the first
// offending rule aborts the whole batch, which the caller logs and drops.
package validator

import (
	"math"

	"github.com/aristath/pxi/internal/catalog"
	"github.com/aristath/pxi/internal/domain"
)

// Validate checks a batch of samples against the fixed rule set. It returns
// the first violation found, wrapped in a *domain.ValidationError, or nil
// if the whole batch is valid. Individual missing indicators are tolerated;
// only samples actually present in the batch are checked.
func Validate(samples []domain.Sample) error {
	byIndicator := make(map[string]domain.Sample, len(samples))
	for _, s := range samples {
		byIndicator[s.IndicatorID] = s
	}

	defs := catalog.ByID()
	for _, s := range samples {
		if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
			return &domain.ValidationError{
				Rule: "finite", IndicatorID: s.IndicatorID,
				Detail: "value is NaN or infinite",
			}
		}

		def, ok := defs[s.IndicatorID]
		if !ok {
			continue
		}
		if s.Value < def.HardMin || s.Value > def.HardMax {
			return &domain.ValidationError{
				Rule: "hard_bounds", IndicatorID: s.IndicatorID,
				Detail: "value outside [hardMin, hardMax]",
			}
		}
	}

	if err := validateHYExceedsIG(byIndicator); err != nil {
		return err
	}

	return nil
}

// validateHYExceedsIG enforces the cross-indicator rule HY_OAS > IG_OAS
// when both are present in the batch.
func validateHYExceedsIG(byIndicator map[string]domain.Sample) error {
	hy, hasHY := byIndicator[catalog.IndicatorHYOAS]
	ig, hasIG := byIndicator[catalog.IndicatorIGOAS]
	if !hasHY || !hasIG {
		return nil
	}
	if hy.Value <= ig.Value {
		return &domain.ValidationError{
			Rule:   "hy_exceeds_ig",
			Detail: "HY OAS must exceed IG OAS",
		}
	}
	return nil
}

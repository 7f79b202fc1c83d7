package validator

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/pxi/internal/catalog"
	"github.com/aristath/pxi/internal/domain"
)

func sampleAt(id string, value float64) domain.Sample {
	now := time.Now().UTC()
	return domain.Sample{IndicatorID: id, Value: value, Unit: "index", SourceTimestamp: now, IngestedAt: now}
}

func TestValidate_RejectsNaN(t *testing.T) {
	err := Validate([]domain.Sample{sampleAt(catalog.IndicatorVIX, math.NaN())})
	require.Error(t, err)
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "finite", ve.Rule)
}

func TestValidate_RejectsInf(t *testing.T) {
	err := Validate([]domain.Sample{sampleAt(catalog.IndicatorVIX, math.Inf(1))})
	require.Error(t, err)
}

func TestValidate_RejectsOutOfHardBounds(t *testing.T) {
	err := Validate([]domain.Sample{sampleAt(catalog.IndicatorVIX, 999)})
	require.Error(t, err)
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "hard_bounds", ve.Rule)
}

func TestValidate_HYMustExceedIG(t *testing.T) {
	err := Validate([]domain.Sample{
		sampleAt(catalog.IndicatorHYOAS, 1.0),
		sampleAt(catalog.IndicatorIGOAS, 1.5),
	})
	require.Error(t, err)
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "hy_exceeds_ig", ve.Rule)
}

func TestValidate_AcceptsValidBatch(t *testing.T) {
	err := Validate([]domain.Sample{
		sampleAt(catalog.IndicatorVIX, 18.5),
		sampleAt(catalog.IndicatorHYOAS, 4.0),
		sampleAt(catalog.IndicatorIGOAS, 1.2),
	})
	assert.NoError(t, err)
}

func TestValidate_TolerateesMissingIndicators(t *testing.T) {
	err := Validate([]domain.Sample{sampleAt(catalog.IndicatorHYOAS, 4.0)})
	assert.NoError(t, err)
}

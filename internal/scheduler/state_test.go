package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/pxi/internal/domain"
)

func TestState_PreviousPxi_NilUntilSet(t *testing.T) {
	s := NewState()
	assert.Nil(t, s.PreviousPxi())

	s.SetPreviousPxi(42.5)
	require.NotNil(t, s.PreviousPxi())
	assert.Equal(t, 42.5, *s.PreviousPxi())
}

func TestState_PreviousRawValue_UnknownIndicatorMisses(t *testing.T) {
	s := NewState()
	_, ok := s.PreviousRawValue("vix")
	assert.False(t, ok)

	s.SetPreviousRawValues(map[string]float64{"vix": 18.2})
	v, ok := s.PreviousRawValue("vix")
	require.True(t, ok)
	assert.Equal(t, 18.2, v)
}

func TestState_DeviationCounts_IncrementsPerIndicator(t *testing.T) {
	s := NewState()
	assert.Equal(t, 0, s.DeviationCount("hy_oas"))

	s.IncrementDeviationCount("hy_oas")
	s.IncrementDeviationCount("hy_oas")
	s.IncrementDeviationCount("ig_oas")

	assert.Equal(t, 2, s.DeviationCount("hy_oas"))
	assert.Equal(t, 1, s.DeviationCount("ig_oas"))

	counts := s.DeviationCounts()
	assert.Equal(t, 2, counts["hy_oas"])
	counts["hy_oas"] = 99
	assert.Equal(t, 2, s.DeviationCount("hy_oas"), "DeviationCounts must return a copy")
}

func TestState_SignalOverride_RoundTrips(t *testing.T) {
	s := NewState()
	_, ok := s.SignalOverride("btc_24h_return")
	assert.False(t, ok)

	s.SetSignalOverride("btc_24h_return", 0.75)
	v, ok := s.SignalOverride("btc_24h_return")
	require.True(t, ok)
	assert.Equal(t, 0.75, v)
}

func TestState_RecordFailure_IncrementsAndRecordSuccessResets(t *testing.T) {
	s := NewState()
	assert.Equal(t, 1, s.RecordFailure())
	assert.Equal(t, 2, s.RecordFailure())

	s.RecordSuccess()
	h := s.Health()
	assert.Equal(t, 0, h.ConsecutiveFailures)
	assert.WithinDuration(t, time.Now().UTC(), h.LastSuccess, 2*time.Second)
}

func TestState_Health_StaleSinceZeroBeforeFirstSuccess(t *testing.T) {
	s := NewState()
	h := s.Health()
	assert.Zero(t, h.StaleSince)
	assert.True(t, h.LastSuccess.IsZero())
}

func TestState_PreviousRegime_DefaultsToZeroValue(t *testing.T) {
	s := NewState()
	assert.Equal(t, domain.DiscoveredRegimeLabel(""), s.PreviousRegime())

	s.SetPreviousRegime(domain.DiscoveredStress)
	assert.Equal(t, domain.DiscoveredStress, s.PreviousRegime())
}

func TestState_Phase_DefaultsToIdle(t *testing.T) {
	s := NewState()
	assert.Equal(t, PhaseIdle, s.Phase())

	s.SetPhase(PhaseComputing)
	assert.Equal(t, PhaseComputing, s.Phase())
}

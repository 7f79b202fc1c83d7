package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/pxi/internal/domain"
)

type fakeOverridesFetcher struct {
	id        string
	overrides domain.SignalOverrides
	err       error
}

func (f fakeOverridesFetcher) IndicatorID() string { return f.id }
func (f fakeOverridesFetcher) FetchOverrides(ctx context.Context) (domain.SignalOverrides, error) {
	return f.overrides, f.err
}

func TestTechnicalJob_Run_RecordsMultiplierInState(t *testing.T) {
	mult := 0.75
	state := NewState()
	job := NewTechnicalJob([]OverridesFetcher{
		fakeOverridesFetcher{id: "btc_24h_return", overrides: domain.SignalOverrides{SignalMultiplier: &mult}},
	}, state, zerolog.Nop())

	require.NoError(t, job.Run())

	v, ok := state.SignalOverride("btc_24h_return")
	require.True(t, ok)
	assert.Equal(t, 0.75, v)
}

func TestTechnicalJob_Run_SkipsIndicatorWithNoOverride(t *testing.T) {
	state := NewState()
	job := NewTechnicalJob([]OverridesFetcher{
		fakeOverridesFetcher{id: "usd_index", overrides: domain.SignalOverrides{}},
	}, state, zerolog.Nop())

	require.NoError(t, job.Run())

	_, ok := state.SignalOverride("usd_index")
	assert.False(t, ok)
}

func TestTechnicalJob_Run_ContinuesPastOneFetcherFailure(t *testing.T) {
	mult := 1.1
	state := NewState()
	job := NewTechnicalJob([]OverridesFetcher{
		fakeOverridesFetcher{id: "usd_index", err: errors.New("provider unreachable")},
		fakeOverridesFetcher{id: "btc_24h_return", overrides: domain.SignalOverrides{SignalMultiplier: &mult}},
	}, state, zerolog.Nop())

	require.NoError(t, job.Run())

	_, ok := state.SignalOverride("usd_index")
	assert.False(t, ok)
	v, ok := state.SignalOverride("btc_24h_return")
	require.True(t, ok)
	assert.Equal(t, 1.1, v)
}

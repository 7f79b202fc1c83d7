package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/pxi/internal/domain"
)

// OverridesFetcher produces a signal multiplier override for one indicator.
// Implemented by clients.TechnicalSignalClient.
type OverridesFetcher interface {
	IndicatorID() string
	FetchOverrides(ctx context.Context) (domain.SignalOverrides, error)
}

// TechnicalJob refreshes momentum-derived signal overrides for indicators
// whose composite weight should occasionally be damped or amplified based
// on overbought/oversold momentum. Runs twice daily, independent of the
// per-minute ingest tick.
type TechnicalJob struct {
	fetchers []OverridesFetcher
	state    *State
	log      zerolog.Logger
	running  atomic.Bool
}

// NewTechnicalJob wires the twice-daily momentum refresh. The computed
// multipliers land in shared State, where the next ingest tick picks them
// up and attaches them to the relevant indicator's sample metadata.
func NewTechnicalJob(fetchers []OverridesFetcher, state *State, log zerolog.Logger) *TechnicalJob {
	return &TechnicalJob{fetchers: fetchers, state: state, log: log.With().Str("job", "technical").Logger()}
}

func (j *TechnicalJob) Name() string { return "technical" }

func (j *TechnicalJob) Run() error {
	if !j.running.CompareAndSwap(false, true) {
		j.log.Warn().Msg("previous technical run still running, skipping this one")
		return nil
	}
	defer j.running.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, f := range j.fetchers {
		overrides, err := f.FetchOverrides(ctx)
		if err != nil {
			j.log.Warn().Err(err).Str("indicator", f.IndicatorID()).Msg("technical signal refresh failed")
			continue
		}
		if overrides.SignalMultiplier == nil {
			continue
		}
		j.state.SetSignalOverride(f.IndicatorID(), *overrides.SignalMultiplier)
		j.log.Info().Str("indicator", f.IndicatorID()).Float64("multiplier", *overrides.SignalMultiplier).
			Msg("recorded momentum-derived signal multiplier for next ingest tick")
	}
	return nil
}

package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/pxi/internal/catalog"
	"github.com/aristath/pxi/internal/clients"
	"github.com/aristath/pxi/internal/composite"
	"github.com/aristath/pxi/internal/domain"
	"github.com/aristath/pxi/internal/stats"
	"github.com/aristath/pxi/internal/store"
	"github.com/aristath/pxi/internal/validator"
)

// TickTimeout is the hard deadline for one full ingest→compute→alert cycle.
const TickTimeout = 55 * time.Second

const (
	fetchRetryAttempts = 3
	fetchRetryBackoff  = 5 * time.Second
	// fetchAttemptTimeout is the deadline for a single fetch attempt. Each
	// attempt's context derives from the caller's, so the caller's own
	// deadline (TickTimeout inside TickJob) still bounds the whole sequence.
	fetchAttemptTimeout = 55 * time.Second
)

// Notifier delivers a short text notification for critical alerts and
// regime transitions. Implemented by internal/webhook.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Broadcaster pushes a tick's encoded result to connected stream clients.
// Implemented by internal/server's websocket hub; optional, set after
// construction since the server depends on the scheduler package, not the
// other way around.
type Broadcaster interface {
	Broadcast(payload []byte)
}

// TickJob runs the per-minute ingest pipeline: fetch all providers,
// validate, store, compute z-scores and the composite, emit alerts.
type TickJob struct {
	fetchers      []clients.Fetcher
	store         *store.Store
	state         *State
	notifier      Notifier
	broadcaster   Broadcaster
	compositeCfg  composite.Config
	log           zerolog.Logger
	running       atomic.Bool
}

// SetBroadcaster wires an optional stream broadcaster, invoked with the
// newly computed composite after each successful tick.
func (j *TickJob) SetBroadcaster(b Broadcaster) {
	j.broadcaster = b
}

// NewTickJob wires the per-minute pipeline's dependencies.
func NewTickJob(fetchers []clients.Fetcher, st *store.Store, state *State, notifier Notifier, compositeCfg composite.Config, log zerolog.Logger) *TickJob {
	wrapped := make([]clients.Fetcher, len(fetchers))
	for i, f := range fetchers {
		wrapped[i] = retryFetcher{inner: f, attempts: fetchRetryAttempts, backoff: fetchRetryBackoff, attemptTimeout: fetchAttemptTimeout, log: log}
	}
	return &TickJob{
		fetchers:     wrapped,
		store:        st,
		state:        state,
		notifier:     notifier,
		compositeCfg: compositeCfg,
		log:          log.With().Str("job", "tick").Logger(),
	}
}

func (j *TickJob) Name() string { return "tick" }

func (j *TickJob) Run() error {
	if !j.running.CompareAndSwap(false, true) {
		j.log.Warn().Msg("previous tick still running, skipping this one")
		return nil
	}
	defer j.running.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), TickTimeout)
	defer cancel()

	if err := j.run(ctx); err != nil {
		failures := j.state.RecordFailure()
		if failures >= ConsecutiveFailuresFatal {
			j.log.Fatal().Err(err).Int("consecutive_failures", failures).Msg("tick pipeline has failed repeatedly")
		}
		j.state.SetPhase(PhaseIdle)
		return err
	}

	j.state.RecordSuccess()
	j.state.SetPhase(PhaseIdle)
	return nil
}

func (j *TickJob) run(ctx context.Context) error {
	now := time.Now().UTC()

	j.state.SetPhase(PhaseFetchingAll)
	results := clients.FanOut(ctx, j.fetchers, j.log)
	samples := clients.Successes(results)
	if len(samples) == 0 {
		return errors.New("all provider fetches failed this tick")
	}
	for i, sample := range samples {
		if mult, ok := j.state.SignalOverride(sample.IndicatorID); ok {
			samples[i].Metadata = domain.SignalOverrides{SignalMultiplier: &mult}
		}
	}

	j.state.SetPhase(PhaseValidating)
	if err := validator.Validate(samples); err != nil {
		return fmt.Errorf("validation rejected batch: %w", err)
	}

	j.state.SetPhase(PhaseStoring)
	if err := j.store.UpsertSamples(ctx, samples); err != nil {
		return fmt.Errorf("store samples: %w", err)
	}

	j.state.SetPhase(PhaseComputing)
	statsSnapshots, err := j.store.FetchLatestStats(ctx)
	if err != nil {
		return fmt.Errorf("fetch latest stats: %w", err)
	}

	defs := catalog.ByID()
	zscores := make([]domain.ZScore, 0, len(samples))
	inputs := make([]composite.IndicatorInput, 0, len(samples))
	newRawValues := make(map[string]float64, len(samples))

	for _, sample := range samples {
		def, ok := defs[sample.IndicatorID]
		if !ok {
			continue
		}
		snap := statsSnapshots[sample.IndicatorID]
		z := stats.ComputeZScore(sample.IndicatorID, sample.Value, sample.SourceTimestamp, snap)
		zscores = append(zscores, z)
		inputs = append(inputs, composite.IndicatorInput{Definition: def, Sample: sample, Z: z.Z})
		newRawValues[sample.IndicatorID] = sample.Value
	}

	if err := j.store.InsertZScores(ctx, zscores); err != nil {
		return fmt.Errorf("store zscores: %w", err)
	}

	previousValues := make(map[string]float64, len(newRawValues))
	for id := range newRawValues {
		if v, ok := j.state.PreviousRawValue(id); ok {
			previousValues[id] = v
		}
	}

	// deviation_review alerts per indicator over the last 30 days, read from
	// the store so the count survives restarts and ages out.
	deviationCounts := make(map[string]int, len(inputs))
	for _, in := range inputs {
		id := in.Definition.ID
		recent, err := j.store.FetchRecentAlerts(ctx, domain.AlertDeviationReview, &id, 30)
		if err != nil {
			return fmt.Errorf("fetch recent deviation alerts: %w", err)
		}
		deviationCounts[id] = len(recent)
	}

	result := composite.Compute(now, inputs, j.compositeCfg, previousValues, j.state.PreviousPxi(), deviationCounts)

	j.state.SetPhase(PhaseAlertEmitting)
	if err := j.store.InsertComposite(ctx, result.Composite); err != nil {
		return fmt.Errorf("store composite: %w", err)
	}
	if err := j.store.InsertAlerts(ctx, result.Alerts); err != nil {
		return fmt.Errorf("store alerts: %w", err)
	}

	for _, a := range result.Alerts {
		if a.AlertType == domain.AlertDeviationReview && a.IndicatorID != nil {
			j.state.IncrementDeviationCount(*a.IndicatorID)
		}
		if j.notifier != nil && (a.Severity == domain.SeverityCritical || a.AlertType == domain.AlertCompositeBreach) {
			if err := j.notifier.Notify(ctx, a.Message); err != nil {
				j.log.Warn().Err(err).Str("alert_id", a.ID).Msg("failed to deliver alert notification")
			}
		}
	}

	j.state.SetPreviousPxi(result.Composite.Pxi)
	j.state.SetPreviousRawValues(newRawValues)

	if j.broadcaster != nil {
		if payload, err := json.Marshal(result.Composite); err == nil {
			j.broadcaster.Broadcast(payload)
		}
	}

	j.log.Info().Float64("pxi", result.Composite.Pxi).Str("regime", string(result.Composite.Regime)).
		Int("alerts", len(result.Alerts)).Msg("tick completed")
	return nil
}

// retryFetcher wraps a Fetcher with bounded retry, fixed backoff, and a
// per-attempt deadline. Each attempt gets a fresh attemptTimeout context
// derived from the caller's ctx, so the caller's deadline still applies:
// under TickJob's TickTimeout (55s, equal to fetchAttemptTimeout) a first
// attempt that runs to its deadline leaves no time for the retries.
type retryFetcher struct {
	inner          clients.Fetcher
	attempts       int
	backoff        time.Duration
	attemptTimeout time.Duration
	log            zerolog.Logger
}

func (r retryFetcher) IndicatorID() string { return r.inner.IndicatorID() }

func (r retryFetcher) Fetch(ctx context.Context) (domain.Sample, error) {
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, r.attemptTimeout)
		sample, err := r.inner.Fetch(attemptCtx)
		cancel()
		if err == nil {
			return sample, nil
		}
		lastErr = err
		if attempt < r.attempts {
			r.log.Debug().Err(err).Str("indicator", r.inner.IndicatorID()).Int("attempt", attempt).
				Msg("fetch failed, retrying after backoff")
			select {
			case <-ctx.Done():
				return domain.Sample{}, ctx.Err()
			case <-time.After(r.backoff):
			}
		}
	}
	return domain.Sample{}, lastErr
}

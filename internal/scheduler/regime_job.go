package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/pxi/internal/catalog"
	"github.com/aristath/pxi/internal/domain"
	"github.com/aristath/pxi/internal/regime"
	"github.com/aristath/pxi/internal/stats"
	"github.com/aristath/pxi/internal/store"
)

// RegimeJob runs once daily: rebuilds the k-means feature matrix over the
// trailing window, classifies each day's regime, persists the rows, and
// fires the webhook notifier on a label transition from the previous run.
type RegimeJob struct {
	detector    *regime.Detector
	persistence *regime.Persistence
	store       *store.Store
	state       *State
	notifier    Notifier
	log         zerolog.Logger
	running     atomic.Bool
}

// NewRegimeJob wires the daily regime detection pass.
func NewRegimeJob(detector *regime.Detector, persistence *regime.Persistence, st *store.Store, state *State, notifier Notifier, log zerolog.Logger) *RegimeJob {
	return &RegimeJob{
		detector:    detector,
		persistence: persistence,
		store:       st,
		state:       state,
		notifier:    notifier,
		log:         log.With().Str("job", "regime").Logger(),
	}
}

func (j *RegimeJob) Name() string { return "regime" }

func (j *RegimeJob) Run() error {
	if !j.running.CompareAndSwap(false, true) {
		j.log.Warn().Msg("previous regime run still running, skipping this one")
		return nil
	}
	defer j.running.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	now := time.Now().UTC()
	since := now.AddDate(0, 0, -regime.FeatureWindowDays)

	zByIndicatorByDate := make(map[string]map[string]float64)
	sigmaByIndicatorByDate := make(map[string]map[string]float64)

	for _, def := range catalog.Indicators() {
		history, err := j.store.FetchHistorical(ctx, def.ID, since)
		if err != nil {
			j.log.Error().Err(err).Str("indicator", def.ID).Msg("fetch historical failed")
			continue
		}
		if len(history) == 0 {
			continue
		}

		timed := make([]stats.TimedValue, len(history))
		for i, s := range history {
			timed[i] = stats.TimedValue{Timestamp: s.SourceTimestamp, Value: s.Value}
		}
		daily := stats.ForwardFill(stats.Resample(timed), stats.ForwardFillThreshold)

		zByDate := make(map[string]float64, len(daily))
		sigmaByDate := make(map[string]float64, len(daily))
		for i, d := range daily {
			window := daily[:i+1]
			snap := stats.Snapshot(def.ID, toTimedValues(window), stats.DefaultWindowDays, d.Date)
			if snap.Stddev == nil {
				continue
			}
			z := domain.ComputeZ(d.Value, snap.Mean, snap.Stddev)
			if z == nil {
				continue
			}
			dateKey := d.Date.Format("2006-01-02")
			zByDate[dateKey] = *z

			sigma := stats.RollingVolatility(toTimedValues(window))
			if sigma != nil {
				sigmaByDate[dateKey] = *sigma
			}
		}
		zByIndicatorByDate[def.ID] = zByDate
		sigmaByIndicatorByDate[def.ID] = sigmaByDate
	}

	features := j.detector.BuildFeatureMatrix(zByIndicatorByDate, sigmaByIndicatorByDate)
	rows, err := j.detector.Run(features)
	if err != nil {
		return fmt.Errorf("run regime detector: %w", err)
	}

	previousLabel, err := j.persistence.PreviousLabel(ctx)
	if err != nil {
		j.log.Warn().Err(err).Msg("could not load previous regime label")
	}

	if err := j.persistence.RecordRegimeRows(ctx, rows); err != nil {
		return fmt.Errorf("persist regime rows: %w", err)
	}

	latest := rows[len(rows)-1]
	if previousLabel != "" && previousLabel != latest.Regime && j.notifier != nil {
		msg := fmt.Sprintf("regime transitioned from %s to %s as of %s", previousLabel, latest.Regime, latest.Date)
		if err := j.notifier.Notify(ctx, msg); err != nil {
			j.log.Warn().Err(err).Msg("failed to deliver regime transition notification")
		}
	}
	j.state.SetPreviousRegime(latest.Regime)

	j.log.Info().Str("regime", string(latest.Regime)).Str("date", latest.Date).Msg("regime detection completed")
	return nil
}

func toTimedValues(values []stats.DatedValue) []stats.TimedValue {
	out := make([]stats.TimedValue, len(values))
	for i, v := range values {
		out[i] = stats.TimedValue{Timestamp: v.Date, Value: v.Value}
	}
	return out
}

package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/pxi/internal/catalog"
	"github.com/aristath/pxi/internal/domain"
	"github.com/aristath/pxi/internal/stats"
	"github.com/aristath/pxi/internal/store"
)

// CorrelationWindowDays is the lookback used for the daily correlation
// diagnostic, matching the regime detector's feature window.
const CorrelationWindowDays = 90

// ValidationJob runs once daily: recomputes each indicator's rolling stats
// snapshot, classifies health, and logs a correlation diagnostic across all
// tracked pairs. Nothing here alerts — it is observability only.
type ValidationJob struct {
	store   *store.Store
	log     zerolog.Logger
	running atomic.Bool
}

// NewValidationJob wires the daily health + correlation pass.
func NewValidationJob(st *store.Store, log zerolog.Logger) *ValidationJob {
	return &ValidationJob{store: st, log: log.With().Str("job", "validation").Logger()}
}

func (j *ValidationJob) Name() string { return "validation" }

func (j *ValidationJob) Run() error {
	if !j.running.CompareAndSwap(false, true) {
		j.log.Warn().Msg("previous validation run still running, skipping this one")
		return nil
	}
	defer j.running.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	now := time.Now().UTC()
	since := now.AddDate(0, 0, -CorrelationWindowDays)

	dailySeries := make(map[string][]float64)
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

		snap := stats.Snapshot(def.ID, timed, CorrelationWindowDays, now)
		if err := j.store.UpsertStatsSnapshot(ctx, snap); err != nil {
			j.log.Error().Err(err).Str("indicator", def.ID).Msg("persist stats snapshot failed")
			continue
		}

		recentValues := make([]float64, 0, len(timed))
		for _, t := range timed {
			recentValues = append(recentValues, t.Value)
		}
		var latestZ *float64
		if len(recentValues) > 0 {
			z := domain.ComputeZ(recentValues[len(recentValues)-1], snap.Mean, snap.Stddev)
			latestZ = z
		}
		health := stats.ClassifyHealth(recentValues, latestZ, snap)
		if health != domain.HealthOK {
			j.log.Warn().Str("indicator", def.ID).Str("health", string(health)).Msg("indicator health degraded")
		}

		daily := stats.ForwardFill(stats.Resample(timed), stats.ForwardFillThreshold)
		values := make([]float64, len(daily))
		for i, d := range daily {
			values[i] = d.Value
		}
		dailySeries[def.ID] = values
	}

	j.logCorrelations(dailySeries)
	return nil
}

// logCorrelations computes gonum/stat.Correlation over every indicator pair
// that shares enough overlapping daily history, logging the matrix rather
// than alerting on it.
func (j *ValidationJob) logCorrelations(series map[string][]float64) {
	ids := make([]string, 0, len(series))
	for id := range series {
		ids = append(ids, id)
	}
	for i := 0; i < len(ids); i++ {
		for k := i + 1; k < len(ids); k++ {
			a, b := series[ids[i]], series[ids[k]]
			n := len(a)
			if len(b) < n {
				n = len(b)
			}
			if n < stats.MinHistoryPoints {
				continue
			}
			corr := stat.Correlation(a[len(a)-n:], b[len(b)-n:], nil)
			j.log.Debug().Str("indicator_a", ids[i]).Str("indicator_b", ids[k]).
				Float64("correlation", corr).Int("n", n).Msg("daily correlation diagnostic")
		}
	}
}

// Package clients implements the provider fetchers: one per external data
// source, each independent and safely runnable in parallel. A single
// provider failure never aborts the others — FanOut collects successes and
// logs failures per indicator.
package clients

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/pxi/internal/domain"
)

// FanOutTimeout bounds the entire fan-out's wall-clock wait, not any single
// fetcher call — per-attempt deadlines belong to the fetcher itself (see
// retryFetcher in internal/scheduler), since a fetcher may retry internally
// and each attempt needs its own full budget.
const FanOutTimeout = 2 * time.Minute

// Fetcher produces one Sample for one indicator. Implementations MUST NOT
// share mutable state and MUST be safe to call concurrently with other
// Fetchers.
type Fetcher interface {
	IndicatorID() string
	Fetch(ctx context.Context) (domain.Sample, error)
}

// FanOutResult pairs a fetcher's indicator with its outcome.
type FanOutResult struct {
	IndicatorID string
	Sample      domain.Sample
	Err         error
}

// FanOut runs every fetcher concurrently with a bounded group under one
// overall deadline for the whole fan-out, and returns one result per
// fetcher regardless of individual failures. A fetcher that retries
// internally (see retryFetcher) manages its own per-attempt deadlines
// against this shared context; FanOut only bounds the total wait.
func FanOut(ctx context.Context, fetchers []Fetcher, log zerolog.Logger) []FanOutResult {
	results := make([]FanOutResult, len(fetchers))

	ctx, cancel := context.WithTimeout(ctx, FanOutTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for i, f := range fetchers {
		i, f := i, f
		g.Go(func() error {
			sample, err := f.Fetch(gctx)
			results[i] = FanOutResult{IndicatorID: f.IndicatorID(), Sample: sample, Err: err}
			if err != nil {
				log.Warn().Err(err).Str("indicator", f.IndicatorID()).Msg("provider fetch failed")
			}
			return nil // never abort the group; failures are per-result
		})
	}
	_ = g.Wait()

	return results
}

// Successes filters FanOut's results down to samples that fetched cleanly.
func Successes(results []FanOutResult) []domain.Sample {
	out := make([]domain.Sample, 0, len(results))
	for _, r := range results {
		if r.Err == nil {
			out = append(out, r.Sample)
		}
	}
	return out
}

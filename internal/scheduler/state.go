package scheduler

import (
	"sync"
	"time"

	"github.com/aristath/pxi/internal/domain"
)

// TickPhase names a step in the per-minute ingest pipeline's state machine,
// surfaced on the health endpoint so a stuck tick is visible from outside
// the process.
type TickPhase string

const (
	PhaseIdle         TickPhase = "idle"
	PhaseFetchingAll  TickPhase = "fetching_all"
	PhaseValidating   TickPhase = "validating"
	PhaseStoring      TickPhase = "storing"
	PhaseComputing    TickPhase = "computing"
	PhaseAlertEmitting TickPhase = "alert_emitting"
)

// ConsecutiveFailuresFatal is the threshold at which the tick job logs at
// fatal level rather than error, per the health-degradation contract.
const ConsecutiveFailuresFatal = 5

// StaleSuccessWarning is how long without a successful tick before the
// health endpoint should report degraded status.
const StaleSuccessWarning = 10 * time.Minute

// State holds the mutable, cross-tick memory the pipeline needs: the
// previous PXI value (for pxi_change alerts), the previous raw sample per
// indicator (for deviation detection), the previous discovered regime (for
// transition webhooks), and run-health counters.
type State struct {
	mu sync.RWMutex

	previousPxi            *float64
	previousRawValues      map[string]float64
	previousRegime         domain.DiscoveredRegimeLabel
	recentDeviationCounts  map[string]int

	phase               TickPhase
	consecutiveFailures int
	lastSuccess         time.Time

	signalOverrides map[string]float64
}

// NewState returns an empty state, as at cold start.
func NewState() *State {
	return &State{
		previousRawValues:     make(map[string]float64),
		recentDeviationCounts: make(map[string]int),
		signalOverrides:       make(map[string]float64),
		phase:                 PhaseIdle,
	}
}

// SignalOverride returns the momentum-derived multiplier set by the
// technical job for indicatorID, if any.
func (s *State) SignalOverride(indicatorID string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.signalOverrides[indicatorID]
	return v, ok
}

// SetSignalOverride records the latest momentum-derived multiplier for
// indicatorID, consumed by the next ingest tick.
func (s *State) SetSignalOverride(indicatorID string, multiplier float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signalOverrides[indicatorID] = multiplier
}

func (s *State) SetPhase(p TickPhase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = p
}

func (s *State) Phase() TickPhase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

func (s *State) PreviousPxi() *float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.previousPxi
}

func (s *State) SetPreviousPxi(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.previousPxi = &v
}

func (s *State) PreviousRawValue(indicatorID string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.previousRawValues[indicatorID]
	return v, ok
}

func (s *State) SetPreviousRawValues(values map[string]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.previousRawValues = values
}

func (s *State) PreviousRegime() domain.DiscoveredRegimeLabel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.previousRegime
}

func (s *State) SetPreviousRegime(r domain.DiscoveredRegimeLabel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.previousRegime = r
}

func (s *State) DeviationCount(indicatorID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recentDeviationCounts[indicatorID]
}

func (s *State) IncrementDeviationCount(indicatorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recentDeviationCounts[indicatorID]++
}

func (s *State) DeviationCounts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int, len(s.recentDeviationCounts))
	for k, v := range s.recentDeviationCounts {
		out[k] = v
	}
	return out
}

// RecordSuccess resets the failure counter and stamps the last success time.
func (s *State) RecordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consecutiveFailures = 0
	s.lastSuccess = time.Now().UTC()
}

// RecordFailure increments the failure counter and returns the new count.
func (s *State) RecordFailure() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consecutiveFailures++
	return s.consecutiveFailures
}

// Health reports the counters the /healthz endpoint exposes.
type Health struct {
	Phase               TickPhase
	ConsecutiveFailures int
	LastSuccess         time.Time
	StaleSince          time.Duration
}

func (s *State) Health() Health {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var stale time.Duration
	if !s.lastSuccess.IsZero() {
		stale = time.Since(s.lastSuccess)
	}
	return Health{
		Phase:               s.phase,
		ConsecutiveFailures: s.consecutiveFailures,
		LastSuccess:         s.lastSuccess,
		StaleSince:          stale,
	}
}

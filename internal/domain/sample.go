package domain

import (
	"fmt"
	"time"
)

// Sample is one observation for one indicator. SourceTimestamp is the
// provider's observation time, not wall-clock; IngestedAt is wall-clock at
// store time. A duplicate (IndicatorID, SourceTimestamp) is an upsert,
// newer IngestedAt wins.
type Sample struct {
	IndicatorID     string
	Value           float64
	Unit            string
	SourceTimestamp time.Time
	IngestedAt      time.Time
	Metadata        SignalOverrides
}

// Validate checks the sample's own invariant, independent of any other
// sample in its batch or any indicator-specific bound.
func (s Sample) Validate() error {
	if s.SourceTimestamp.After(s.IngestedAt) {
		return fmt.Errorf("sample for %s: sourceTimestamp %s is after ingestedAt %s",
			s.IndicatorID, s.SourceTimestamp, s.IngestedAt)
	}
	return nil
}

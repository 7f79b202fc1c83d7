package domain

import "fmt"

// ProviderError wraps a failure from a provider client, distinguishing
// unreachable transports from rejected requests so the scheduler and
// composite engine can log accordingly.
type ProviderError struct {
	ProviderID string
	Kind       ProviderErrorKind
	Err        error
}

// ProviderErrorKind enumerates the provider failure modes named in the
// error handling design.
type ProviderErrorKind string

const (
	ProviderUnreachable ProviderErrorKind = "ProviderUnreachable"
	ProviderRejected    ProviderErrorKind = "ProviderRejected"
	TransformInvalid    ProviderErrorKind = "TransformInvalid"
)

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %s: %v", e.ProviderID, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ValidationError names the first offending rule in a rejected sample
// batch.
type ValidationError struct {
	Rule        string
	IndicatorID string
	Detail      string
}

func (e *ValidationError) Error() string {
	if e.IndicatorID != "" {
		return fmt.Sprintf("validation failed (%s) for %s: %s", e.Rule, e.IndicatorID, e.Detail)
	}
	return fmt.Sprintf("validation failed (%s): %s", e.Rule, e.Detail)
}

// StoreError wraps a persistence-layer failure with the operation that
// triggered it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

package domain

import "time"

// Severity ranks an Alert's urgency.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// AlertType enumerates the alert kinds emitted by the composite engine.
type AlertType string

const (
	AlertHighZScore       AlertType = "high_z_score"
	AlertDeviationReview  AlertType = "deviation_review"
	AlertBoundSuggestion  AlertType = "bound_suggestion"
	AlertCompositeBreach  AlertType = "composite_breach"
	AlertPxiChange        AlertType = "pxi_change"
)

// Alert is an immutable (except for Acknowledged) append-only event.
type Alert struct {
	ID            string
	AlertType     AlertType
	IndicatorID   *string
	Timestamp     time.Time
	RawValue      *float64
	Z             *float64
	Threshold     *float64
	Message       string
	Severity      Severity
	Acknowledged  bool
}

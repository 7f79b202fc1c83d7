package domain

import (
	"context"
	"time"
)

// ForecastProvider is an unimplemented seam for a future neural-forecasting
// collaborator. Nothing in this service calls it; it exists so a forecast
// component can be wired in later without reshaping the composite engine.
type ForecastProvider interface {
	Forecast(ctx context.Context, indicatorID string, horizon time.Duration) (float64, error)
}

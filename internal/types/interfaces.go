package types

import (
	"context"
	"time"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// Validator is implemented by entities to self-validate.
type Validator interface {
	Validate() error
}

// CategoryClassifier exposes the single operation the scorer needs from a
// trained model: the probability that a category is true given a scaled
// feature vector. Implemented by ml.Forest behind a fitted scaler.
type CategoryClassifier interface {
	PredictProb(features []float64) float64
}

// HistorySource defines how daily historical climate records are retrieved
// for a location. Implemented by the history store (cache + provider fetch).
type HistorySource interface {
	GetHistory(ctx context.Context, loc Location, years int) ([]HistoricalRecord, error)
}

// ForecastSource defines how normalized daily forecasts are retrieved.
// Implemented by the forecast provider adapter.
type ForecastSource interface {
	GetForecast(ctx context.Context, loc Location, days int) ([]ForecastDay, error)
}

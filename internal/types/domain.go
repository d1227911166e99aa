package types

import (
	"fmt"
	"time"
)

// Location represents a geographic coordinate with an optional display name.
// A Location is immutable once resolved; its identity for caching and model
// partitioning is the rounded coordinate pair returned by Key.
type Location struct {
	Lat         float64 `json:"lat" validate:"min=-90,max=90"`
	Lon         float64 `json:"lon" validate:"min=-180,max=180"`
	DisplayName string  `json:"display_name,omitempty"`
}

// Key returns the cache partition key for this location: latitude and
// longitude rounded to two decimal places (roughly 1 km), formatted as
// "lat,lon". Two locations within the same rounded cell share historical
// data and trained models.
func (l Location) Key() string {
	return fmt.Sprintf("%.2f,%.2f", l.Lat, l.Lon)
}

// HistoricalRecord is one calendar day of observed climate variables at a
// location. Records are the immutable source of truth for training; missing
// variables are represented by the provider sentinel and dropped during
// ingestion, never imputed.
type HistoricalRecord struct {
	Date          time.Time `json:"date"`
	TempMeanC     float64   `json:"temp_mean_c"`
	TempMinC      float64   `json:"temp_min_c"`
	TempMaxC      float64   `json:"temp_max_c"`
	WindSpeedKmh  float64   `json:"wind_speed_kmh"`
	WindGustKmh   float64   `json:"wind_gust_kmh"`
	PrecipMM      float64   `json:"precip_mm"`
	HumidityPct   float64   `json:"humidity_pct"`
}

// ForecastDay is one day of the external forecast, normalized by the
// forecast adapter to the same units as HistoricalRecord plus a
// precipitation probability in [0,100].
type ForecastDay struct {
	Date            time.Time `json:"date"`
	TempMeanC       float64   `json:"temp_mean_c"`
	TempMinC        float64   `json:"temp_min_c"`
	TempMaxC        float64   `json:"temp_max_c"`
	WindSpeedKmh    float64   `json:"wind_speed_kmh"`
	WindGustKmh     float64   `json:"wind_gust_kmh"`
	PrecipMM        float64   `json:"precip_mm"`
	PrecipProbPct   float64   `json:"precip_prob_pct"`
	HumidityPct     float64   `json:"humidity_pct"`
	ConditionsLabel string    `json:"conditions,omitempty"`
}

// TempRange is an inclusive ideal temperature band in degrees Celsius.
type TempRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// ActivityPreference describes what weather the caller considers acceptable
// for one activity. It is immutable for the duration of a scoring call.
// CategoryWeights scales the classifier adjustment per category; a missing
// entry means weight 1.
type ActivityPreference struct {
	Name            string               `json:"name"`
	IdealTemp       TempRange            `json:"ideal_temp"`
	MaxWindKmh      float64              `json:"max_wind_kmh" validate:"min=0"`
	MaxRainMM       float64              `json:"max_rain_mm" validate:"min=0"`
	CategoryWeights map[Category]float64 `json:"category_weights,omitempty"`
}

// Validate checks internal consistency of the preference.
func (p ActivityPreference) Validate() error {
	if p.IdealTemp.Min > p.IdealTemp.Max {
		return NewAppError(ErrCodeValidationTempRange,
			fmt.Sprintf("ideal temperature range is inverted: min %.1f > max %.1f", p.IdealTemp.Min, p.IdealTemp.Max), nil)
	}
	if p.MaxWindKmh < 0 || p.MaxRainMM < 0 {
		return NewAppError(ErrCodeValidationMissingField, "wind and rain limits must be non-negative", nil)
	}
	for cat, w := range p.CategoryWeights {
		if !cat.Valid() {
			return NewAppError(ErrCodeValidationInvalidCategory,
				fmt.Sprintf("unknown category %q in weights", cat), nil)
		}
		if w < 0 {
			return NewAppError(ErrCodeValidationMissingField,
				fmt.Sprintf("weight for category %q must be non-negative", cat), nil)
		}
	}
	return nil
}

// Weight returns the classifier-adjustment weight for a category,
// defaulting to 1 when unset.
func (p ActivityPreference) Weight(cat Category) float64 {
	if w, ok := p.CategoryWeights[cat]; ok {
		return w
	}
	return 1
}

// PenaltyContribution is one component of a suitability score's breakdown.
type PenaltyContribution struct {
	Source  string  `json:"source"`
	Penalty float64 `json:"penalty"`
}

// SuitabilityResult is the outcome of scoring one forecast day against one
// activity preference. It is created fresh per call and never mutated.
type SuitabilityResult struct {
	Date      time.Time             `json:"date"`
	Score     float64               `json:"score"`
	Rating    Rating                `json:"rating"`
	Breakdown []PenaltyContribution `json:"breakdown"`
	Tips      []string              `json:"tips"`
	ModelUsed bool                  `json:"model_used"`
}

// TrainingReport summarizes one completed training run for a location.
type TrainingReport struct {
	LocationKey string               `json:"location_key"`
	JobID       string               `json:"job_id"`
	StartedAt   time.Time            `json:"started_at"`
	FinishedAt  time.Time            `json:"finished_at"`
	SampleCount int                  `json:"sample_count"`
	Categories  map[Category]string  `json:"categories"`
	Accuracy    map[Category]float64 `json:"accuracy,omitempty"`
}

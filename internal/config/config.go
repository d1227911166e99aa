// Package config defines the global configuration structure for the
// FairWeather service. Configuration is loaded once at process start and is
// immutable thereafter. It follows 12-Factor principles by strictly
// separating code from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> Struct Defaults (Lowest)
//
// Any missing required value or invalid format causes the application to
// fail immediately on startup.
package config

import "time"

// Config is the top-level configuration struct for the FairWeather service.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System metadata
	Environment string `envconfig:"APP_ENV" default:"local" validate:"oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"fairweather"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server   ServerConfig
	Storage  StorageConfig
	History  HistoryConfig
	Forecast ForecastConfig
	Training TrainingConfig
	Scoring  ScoringConfig
	Presets  PresetsConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"15s"`
}

// StorageConfig holds the on-disk data locations. Both stores are keyed by
// the rounded-coordinate location key.
type StorageConfig struct {
	// DataDir is the root directory for all durable state.
	DataDir string `envconfig:"DATA_DIR" default:"./data" validate:"required"`
	// HistoryDBFile is the SQLite file for cached historical records,
	// relative to DataDir.
	HistoryDBFile string `envconfig:"HISTORY_DB_FILE" default:"history.db"`
	// ModelDir is the directory for persisted model artifacts, relative
	// to DataDir.
	ModelDir string `envconfig:"MODEL_DIR" default:"models"`
}

// HistoryConfig tunes historical data ingestion.
type HistoryConfig struct {
	BaseURL string `envconfig:"HISTORY_BASE_URL" default:"https://power.larc.nasa.gov/api/temporal/daily/point" validate:"url"`
	// Years of daily history fetched per location.
	Years int `envconfig:"HISTORY_YEARS" default:"5" validate:"min=1,max=20"`
	// FetchTimeout bounds one provider request.
	FetchTimeout time.Duration `envconfig:"HISTORY_FETCH_TIMEOUT" default:"60s"`
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int `envconfig:"HISTORY_MAX_RETRIES" default:"3" validate:"min=0,max=10"`
	// MaxDroppedRatio is the fraction of malformed records above which a
	// fetch fails with history_insufficient_data.
	MaxDroppedRatio float64 `envconfig:"HISTORY_MAX_DROPPED_RATIO" default:"0.2" validate:"min=0,max=1"`
}

// ForecastConfig tunes the forecast provider boundary.
type ForecastConfig struct {
	BaseURL      string        `envconfig:"FORECAST_BASE_URL" default:"https://api.open-meteo.com/v1/forecast" validate:"url"`
	FetchTimeout time.Duration `envconfig:"FORECAST_FETCH_TIMEOUT" default:"10s"`
	MaxDays      int           `envconfig:"FORECAST_MAX_DAYS" default:"7" validate:"min=1,max=16"`
}

// TrainingConfig tunes classifier training and artifact staleness.
type TrainingConfig struct {
	// MinSamples is the minimum number of usable historical days required
	// to fit classifiers.
	MinSamples int `envconfig:"TRAINING_MIN_SAMPLES" default:"200" validate:"min=10"`
	// HoldoutFraction is the chronological tail fraction held out for
	// validation.
	HoldoutFraction float64 `envconfig:"TRAINING_HOLDOUT_FRACTION" default:"0.2" validate:"gt=0,lt=0.5"`
	// StalenessHorizon is the artifact age beyond which retraining is
	// scheduled. Climate baselines drift slowly, so this is long.
	StalenessHorizon time.Duration `envconfig:"TRAINING_STALENESS_HORIZON" default:"4320h"`
	// FailureCooldown suppresses retraining after a failed run so a
	// failing provider is not hammered.
	FailureCooldown time.Duration `envconfig:"TRAINING_FAILURE_COOLDOWN" default:"24h"`
	// Workers is the size of the background training worker pool.
	Workers int `envconfig:"TRAINING_WORKERS" default:"2" validate:"min=1,max=16"`
	// Trees and MaxDepth tune the per-category forest.
	Trees    int `envconfig:"TRAINING_TREES" default:"50" validate:"min=1"`
	MaxDepth int `envconfig:"TRAINING_MAX_DEPTH" default:"10" validate:"min=1"`
}

// ScoringConfig holds the penalty coefficients and thresholds of the
// suitability scorer. These are deployment tunables, not fixed law.
type ScoringConfig struct {
	TempCoeff float64 `envconfig:"SCORE_TEMP_COEFF" default:"5"`
	WindCoeff float64 `envconfig:"SCORE_WIND_COEFF" default:"3"`
	RainCoeff float64 `envconfig:"SCORE_RAIN_COEFF" default:"0.4"`
	// Per-component penalty caps.
	TempPenaltyCap float64 `envconfig:"SCORE_TEMP_CAP" default:"60"`
	WindPenaltyCap float64 `envconfig:"SCORE_WIND_CAP" default:"40"`
	RainPenaltyCap float64 `envconfig:"SCORE_RAIN_CAP" default:"36"`
	// MinRainProbPct is the reporting threshold below which precipitation
	// probability contributes nothing.
	MinRainProbPct float64 `envconfig:"SCORE_MIN_RAIN_PROB" default:"10"`
	// ClassifierCoeff is the maximum classifier adjustment per category
	// before category weighting.
	ClassifierCoeff float64 `envconfig:"SCORE_CLASSIFIER_COEFF" default:"15"`
}

// PresetsConfig locates the activity preset catalog.
type PresetsConfig struct {
	// File is an optional YAML catalog overriding the embedded defaults.
	File string `envconfig:"PRESETS_FILE"`
}

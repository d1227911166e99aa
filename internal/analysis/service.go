// Package analysis implements the suitability analysis service: the
// business logic that turns a location, a day window, and an activity
// preference into per-day suitability results. It orchestrates the forecast
// provider, the model cache, and the scorer; training is always a side
// effect scheduled in the background, never awaited on the request path.
package analysis

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"fairweather/internal/artifacts"
	"fairweather/internal/metrics"
	"fairweather/internal/presets"
	"fairweather/internal/scoring"
	"fairweather/internal/types"
)

// scoreConcurrency bounds parallel per-day scoring within one request.
const scoreConcurrency = 4

// Request describes one analysis call.
type Request struct {
	Location types.Location
	// Days is the forecast window length starting today. Zero means the
	// service default.
	Days int
	// Activity selects a preset by name. Ignored when Preference is set.
	Activity string
	// Preference, when non-nil, overrides any preset.
	Preference *types.ActivityPreference
}

// Response is the result of one analysis call.
type Response struct {
	Location    types.Location           `json:"location"`
	GeneratedAt time.Time                `json:"generated_at"`
	Activity    string                   `json:"activity"`
	Days        []types.SuitabilityResult `json:"days"`
	// ModelStates reports per-category artifact status so callers can tell
	// heuristic-only results from model-refined ones.
	ModelStates []artifacts.Info `json:"model_states"`
}

// ModelCache is the artifact cache surface the service depends on.
// Implemented by artifacts.Cache; mocked in tests.
type ModelCache interface {
	Lookup(ctx context.Context, loc types.Location) map[types.Category]*artifacts.Artifact
	States(ctx context.Context, loc types.Location) []artifacts.Info
}

// TrainingScheduler submits a location for background training.
type TrainingScheduler interface {
	Schedule(loc types.Location)
}

// Service defines the analysis business logic interface.
type Service interface {
	Analyze(ctx context.Context, req Request) (*Response, error)
	ModelStates(ctx context.Context, loc types.Location) ([]artifacts.Info, error)
	RequestTraining(ctx context.Context, loc types.Location) error
}

type service struct {
	forecasts types.ForecastSource
	models    ModelCache
	scheduler TrainingScheduler
	catalog   *presets.Catalog
	scorer    *scoring.Scorer
	maxDays   int
	logger    *slog.Logger
	clock     types.Clock
}

// NewService creates an analysis Service with the provided dependencies.
func NewService(
	forecasts types.ForecastSource,
	models ModelCache,
	scheduler TrainingScheduler,
	catalog *presets.Catalog,
	scorer *scoring.Scorer,
	maxDays int,
	logger *slog.Logger,
	clock types.Clock,
) Service {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	if maxDays <= 0 {
		maxDays = 7
	}
	return &service{
		forecasts: forecasts,
		models:    models,
		scheduler: scheduler,
		catalog:   catalog,
		scorer:    scorer,
		maxDays:   maxDays,
		logger:    logger,
		clock:     clock,
	}
}

// Analyze scores every day of the forecast window against the resolved
// activity preference.
//
// Failure policy: a forecast provider failure fails the whole request,
// because without forecast data there is nothing to score. Missing or stale
// models never fail anything; the affected days are scored heuristically
// and a background training run is scheduled by the cache lookup.
func (s *service) Analyze(ctx context.Context, req Request) (resp *Response, err error) {
	started := time.Now()
	defer func() { metrics.RecordAnalysis(time.Since(started), err) }()

	if err := validateLocation(req.Location); err != nil {
		return nil, err
	}

	days := req.Days
	if days <= 0 {
		days = s.maxDays
	}
	if days > s.maxDays {
		return nil, types.NewAppError(
			types.ErrCodeValidationDateRange,
			"requested window exceeds the forecast horizon",
			nil,
		).WithDetails(map[string]any{"requested_days": days, "max_days": s.maxDays})
	}

	pref, err := s.resolvePreference(req)
	if err != nil {
		return nil, err
	}

	forecast, err := s.forecasts.GetForecast(ctx, req.Location, days)
	if err != nil {
		s.logger.ErrorContext(ctx, "forecast fetch failed",
			"location_key", req.Location.Key(),
			"error", err,
		)
		return nil, err
	}

	// The lookup also schedules background training when artifacts are
	// missing or stale; stale artifacts are still returned and used.
	arts := s.models.Lookup(ctx, req.Location)
	classifiers := make(map[types.Category]types.CategoryClassifier, len(arts))
	for cat, a := range arts {
		classifiers[cat] = a
	}

	results := make([]types.SuitabilityResult, len(forecast))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(scoreConcurrency)
	for i, day := range forecast {
		g.Go(func() error {
			results[i] = s.scorer.Score(day, pref, classifiers)
			return nil
		})
	}
	// Scoring goroutines never fail; Wait only joins them.
	_ = g.Wait()

	for _, r := range results {
		metrics.AnalysisModelUsage.WithLabelValues(strconv.FormatBool(r.ModelUsed)).Inc()
	}

	s.logger.InfoContext(ctx, "analysis complete",
		"location_key", req.Location.Key(),
		"activity", pref.Name,
		"days", len(results),
		"models", len(classifiers),
	)

	return &Response{
		Location:    req.Location,
		GeneratedAt: s.clock.Now(),
		Activity:    pref.Name,
		Days:        results,
		ModelStates: s.models.States(ctx, req.Location),
	}, nil
}

// ModelStates reports per-category artifact status for a location.
func (s *service) ModelStates(ctx context.Context, loc types.Location) ([]artifacts.Info, error) {
	if err := validateLocation(loc); err != nil {
		return nil, err
	}
	return s.models.States(ctx, loc), nil
}

// RequestTraining explicitly schedules a training run. A run already in
// flight for the location is reported as a conflict rather than queued
// twice.
func (s *service) RequestTraining(ctx context.Context, loc types.Location) error {
	if err := validateLocation(loc); err != nil {
		return err
	}
	for _, info := range s.models.States(ctx, loc) {
		if info.State == types.ArtifactTraining {
			return types.NewAppError(
				types.ErrCodeTrainingInProgress,
				"a training run for this location is already in progress",
				nil,
			)
		}
	}
	s.scheduler.Schedule(loc)
	return nil
}

// resolvePreference picks the effective preference: an explicit preference
// wins, otherwise the named preset, otherwise the generic profile.
func (s *service) resolvePreference(req Request) (types.ActivityPreference, error) {
	if req.Preference != nil {
		pref := *req.Preference
		if pref.Name == "" {
			pref.Name = req.Activity
		}
		if pref.Name == "" {
			pref.Name = presets.GenericName
		}
		if err := pref.Validate(); err != nil {
			return types.ActivityPreference{}, err
		}
		return pref, nil
	}
	return s.catalog.Get(req.Activity), nil
}

func validateLocation(loc types.Location) error {
	if loc.Lat < -90 || loc.Lat > 90 {
		return types.NewAppError(types.ErrCodeValidationInvalidLat,
			"latitude must be between -90 and 90", nil)
	}
	if loc.Lon < -180 || loc.Lon > 180 {
		return types.NewAppError(types.ErrCodeValidationInvalidLon,
			"longitude must be between -180 and 180", nil)
	}
	return nil
}

// Package training fits per-category weather classifiers from historical
// records and commits them to the model cache. Training is the only
// long-running operation in the system and always executes off the scoring
// path, on the background runner's worker pool.
package training

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"fairweather/internal/artifacts"
	"fairweather/internal/features"
	"fairweather/internal/ml"
	"fairweather/internal/types"
)

// Degenerate-label bounds: a category whose positive ratio falls outside
// (minPositiveRatio, maxPositiveRatio) in the training window carries no
// learnable signal and is skipped without failing the other categories.
const (
	minPositiveRatio = 0.01
	maxPositiveRatio = 0.99
)

// Category outcome strings recorded in the training report.
const (
	OutcomeTrained   = "trained"
	OutcomeSkipped   = "skipped_degenerate_labels"
	OutcomeFitFailed = "fit_failed"
)

// Config tunes one trainer instance.
type Config struct {
	// Years of history requested per location.
	Years int
	// MinSamples is the minimum usable day count below which training
	// fails outright.
	MinSamples int
	// HoldoutFraction is the chronological tail held out for validation.
	// The split is by time, not random, to preserve seasonal ordering.
	HoldoutFraction float64
	// Forest sizing.
	Trees    int
	MaxDepth int
}

// Trainer fits one independent binary classifier per category from a
// location's historical records.
type Trainer struct {
	history types.HistorySource
	cfg     Config
	clock   types.Clock
	logger  *slog.Logger
}

// NewTrainer creates a Trainer. Zero config fields get working defaults.
func NewTrainer(history types.HistorySource, cfg Config, clock types.Clock, logger *slog.Logger) *Trainer {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Years <= 0 {
		cfg.Years = 5
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = 200
	}
	if cfg.HoldoutFraction <= 0 || cfg.HoldoutFraction >= 0.5 {
		cfg.HoldoutFraction = 0.2
	}
	return &Trainer{history: history, cfg: cfg, clock: clock, logger: logger}
}

// Train fetches history, builds features and labels, and fits one
// classifier per category. It returns the produced artifacts together with
// a report describing every category's outcome.
//
// Failure semantics:
//   - history errors propagate unchanged (history_unavailable or
//     history_insufficient_data)
//   - fewer than MinSamples usable days: training_failed
//   - degenerate label distribution for a category: that category is
//     skipped; the others proceed independently
//   - no category trains at all: training_failed
func (t *Trainer) Train(ctx context.Context, loc types.Location) ([]*artifacts.Artifact, *types.TrainingReport, error) {
	key := loc.Key()
	report := &types.TrainingReport{
		LocationKey: key,
		JobID:       uuid.NewString(),
		StartedAt:   t.clock.Now(),
		Categories:  make(map[types.Category]string),
		Accuracy:    make(map[types.Category]float64),
	}

	records, err := t.history.GetHistory(ctx, loc, t.cfg.Years)
	if err != nil {
		return nil, report, err
	}

	X, labels, thresholds := features.Build(records)
	report.SampleCount = len(X)

	if len(X) < t.cfg.MinSamples {
		return nil, report, types.NewAppError(
			types.ErrCodeTrainingFailed,
			fmt.Sprintf("only %d usable days for %s, need at least %d", len(X), key, t.cfg.MinSamples),
			nil,
		)
	}

	// Chronological holdout: the most recent tail validates the fit.
	cut := len(X) - int(float64(len(X))*t.cfg.HoldoutFraction)
	trainX, testX := X[:cut], X[cut:]

	scaler, err := ml.FitScaler(trainX)
	if err != nil {
		return nil, report, types.NewAppError(types.ErrCodeTrainingFailed, "failed to fit feature scaler", err)
	}
	scaledTrain := scaler.TransformAll(trainX)
	scaledTest := scaler.TransformAll(testX)

	trainedAt := t.clock.Now()
	var out []*artifacts.Artifact

	for _, cat := range types.Categories() {
		y := labels[cat]
		trainY, testY := y[:cut], y[cut:]

		pos := 0
		for _, v := range trainY {
			pos += v
		}
		ratio := float64(pos) / float64(len(trainY))
		if ratio < minPositiveRatio || ratio > maxPositiveRatio {
			report.Categories[cat] = OutcomeSkipped
			t.logger.InfoContext(ctx, "skipping category with degenerate labels",
				"location_key", key,
				"category", string(cat),
				"positive_ratio", ratio,
			)
			continue
		}

		params := ml.DefaultForestParams()
		if t.cfg.Trees > 0 {
			params.Trees = t.cfg.Trees
		}
		if t.cfg.MaxDepth > 0 {
			params.MaxDepth = t.cfg.MaxDepth
		}

		forest, err := ml.FitForest(scaledTrain, trainY, params)
		if err != nil {
			report.Categories[cat] = OutcomeFitFailed
			t.logger.WarnContext(ctx, "classifier fit failed",
				"location_key", key,
				"category", string(cat),
				"error", err,
			)
			continue
		}

		acc := forest.Accuracy(scaledTest, testY)
		report.Categories[cat] = OutcomeTrained
		report.Accuracy[cat] = acc

		out = append(out, &artifacts.Artifact{
			LocationKey:     key,
			Category:        cat,
			Model:           forest,
			Scaler:          scaler,
			Thresholds:      thresholds,
			TrainedAt:       trainedAt,
			SampleCount:     len(X),
			HoldoutAccuracy: acc,
		})
	}

	report.FinishedAt = t.clock.Now()

	if len(out) == 0 {
		return nil, report, types.NewAppError(
			types.ErrCodeTrainingFailed,
			fmt.Sprintf("no category produced a usable classifier for %s", key),
			nil,
		)
	}

	return out, report, nil
}

// Package artifacts implements the model cache: persistence and lifecycle
// of trained per-(location, category) classifier artifacts. The cache owns
// every artifact exclusively; the trainer only produces replacement values.
// Lookups never block on training. Artifacts are persisted one file per
// (location, category) so a single corrupt file cannot invalidate its
// siblings, and corrupt files are treated as absent rather than fatal.
package artifacts

import (
	"time"

	"fairweather/internal/features"
	"fairweather/internal/ml"
	"fairweather/internal/types"
)

// Artifact is one trained classifier plus its fitted scaler and training
// metadata for a (location, category) pair. Values are immutable after
// construction; a retrain produces a replacement, never a mutation.
type Artifact struct {
	LocationKey string              `json:"location_key"`
	Category    types.Category      `json:"category"`
	Model       *ml.Forest          `json:"model"`
	Scaler      *ml.Scaler          `json:"scaler"`
	Thresholds  features.Thresholds `json:"thresholds"`
	TrainedAt   time.Time           `json:"trained_at"`
	SampleCount int                 `json:"sample_count"`
	// HoldoutAccuracy is the classification accuracy on the chronological
	// holdout tail recorded at training time.
	HoldoutAccuracy float64 `json:"holdout_accuracy"`
}

// PredictProb implements types.CategoryClassifier: it scales the raw
// feature vector with the artifact's own fitted scaler and returns the
// forest's positive-class probability.
func (a *Artifact) PredictProb(rawFeatures []float64) float64 {
	if a.Model == nil || a.Scaler == nil {
		return 0
	}
	return a.Model.PredictProb(a.Scaler.Transform(rawFeatures))
}

// Info is the metadata view of an artifact exposed over the API, without
// the (large) model payload.
type Info struct {
	Category        types.Category      `json:"category"`
	State           types.ArtifactState `json:"state"`
	TrainedAt       time.Time           `json:"trained_at"`
	SampleCount     int                 `json:"sample_count"`
	HoldoutAccuracy float64             `json:"holdout_accuracy"`
}

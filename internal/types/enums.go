package types

// Category identifies one adverse-weather classification problem. Each
// category gets its own independently trained classifier per location.
type Category string

const (
	CategoryHot           Category = "hot"
	CategoryCold          Category = "cold"
	CategoryWindy         Category = "windy"
	CategoryWet           Category = "wet"
	CategoryUncomfortable Category = "uncomfortable"
)

// Categories lists all categories in their fixed canonical order. The order
// is alphabetical and is relied on for deterministic tie-breaking in tip
// generation and for stable iteration in training and persistence.
func Categories() []Category {
	return []Category{
		CategoryCold,
		CategoryHot,
		CategoryUncomfortable,
		CategoryWet,
		CategoryWindy,
	}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryHot, CategoryCold, CategoryWindy, CategoryWet, CategoryUncomfortable:
		return true
	}
	return false
}

// Rating is the coarse human-readable suitability band.
type Rating string

const (
	RatingGreat Rating = "Great"
	RatingFair  Rating = "Fair"
	RatingPoor  Rating = "Poor"
)

// RatingForScore maps a clamped suitability score to its rating band.
func RatingForScore(score float64) Rating {
	switch {
	case score >= 80:
		return RatingGreat
	case score >= 50:
		return RatingFair
	default:
		return RatingPoor
	}
}

// ArtifactState is the lifecycle state of a per-(location, category) model
// artifact inside the model cache.
type ArtifactState string

const (
	// ArtifactAbsent means no artifact exists (never trained, or the
	// persisted copy was corrupt and discarded).
	ArtifactAbsent ArtifactState = "absent"
	// ArtifactTraining means a training run for the location is in flight.
	// Artifacts in this state are never served to the scorer.
	ArtifactTraining ArtifactState = "training"
	// ArtifactReady means the artifact is trained and servable.
	ArtifactReady ArtifactState = "ready"
	// ArtifactStale means the artifact is servable but older than the
	// staleness horizon; lookup still returns it and schedules a retrain.
	ArtifactStale ArtifactState = "stale"
)

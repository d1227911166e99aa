package artifacts

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"fairweather/internal/types"
)

// Scheduler accepts asynchronous training requests. Implemented by the
// training runner; the cache only ever fires and forgets. Implementations
// must deduplicate concurrent requests for the same location key.
type Scheduler interface {
	Schedule(loc types.Location)
}

// CacheOptions tunes staleness and failure-retry behavior.
type CacheOptions struct {
	// StalenessHorizon is the artifact age beyond which a retrain is
	// scheduled. Historical climate baselines drift slowly, so this is
	// months, not hours.
	StalenessHorizon time.Duration
	// FailureCooldown suppresses re-scheduling after a failed training
	// run, avoiding retry storms against a provider that is currently
	// failing. Retraining happens on the next lookup after the cooldown.
	FailureCooldown time.Duration
}

// Cache is the model cache. It keeps Ready artifacts in memory, hydrates
// lazily from the disk store, and schedules background training when a
// location has no usable artifacts or only stale ones. Lookup never blocks
// on training: callers proceed with whatever is available, possibly nothing.
type Cache struct {
	disk  *DiskStore
	opts  CacheOptions
	clock types.Clock
	log   *slog.Logger

	mu          sync.RWMutex
	entries     map[string]map[types.Category]*Artifact
	hydrated    map[string]bool
	training    map[string]bool
	lastFailure map[string]time.Time

	scheduler Scheduler
}

// NewCache creates a Cache over the given disk store.
func NewCache(disk *DiskStore, opts CacheOptions, clock types.Clock, logger *slog.Logger) *Cache {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.StalenessHorizon <= 0 {
		opts.StalenessHorizon = 180 * 24 * time.Hour
	}
	if opts.FailureCooldown <= 0 {
		opts.FailureCooldown = 24 * time.Hour
	}
	return &Cache{
		disk:        disk,
		opts:        opts,
		clock:       clock,
		log:         logger,
		entries:     make(map[string]map[types.Category]*Artifact),
		hydrated:    make(map[string]bool),
		training:    make(map[string]bool),
		lastFailure: make(map[string]time.Time),
	}
}

// SetScheduler wires the training scheduler. It must be called before the
// first Lookup; it is separate from the constructor because the runner and
// the cache reference each other at wiring time.
func (c *Cache) SetScheduler(s Scheduler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scheduler = s
}

// IsStale reports whether an artifact's training timestamp is older than
// the staleness horizon at the given time.
func (c *Cache) IsStale(a *Artifact, now time.Time) bool {
	return now.Sub(a.TrainedAt) > c.opts.StalenessHorizon
}

// Lookup returns the servable artifacts for a location, keyed by category.
// Only Ready and Stale artifacts are ever returned; an in-flight training
// run is invisible to callers. If the location has no artifacts, or any
// artifact is stale, a background training run is scheduled (subject to the
// failure cooldown and the one-run-per-key guard) and Lookup returns
// immediately with what it has.
func (c *Cache) Lookup(ctx context.Context, loc types.Location) map[types.Category]*Artifact {
	key := loc.Key()
	now := c.clock.Now()

	c.hydrate(ctx, key)

	c.mu.RLock()
	arts := c.entries[key]
	out := make(map[types.Category]*Artifact, len(arts))
	needsTraining := len(arts) == 0
	for cat, a := range arts {
		out[cat] = a
		if c.IsStale(a, now) {
			needsTraining = true
		}
	}
	c.mu.RUnlock()

	if needsTraining {
		c.maybeSchedule(ctx, loc, now)
	}

	return out
}

// States returns the per-category artifact metadata for a location,
// including Absent and Training states, for the models status API.
func (c *Cache) States(ctx context.Context, loc types.Location) []Info {
	key := loc.Key()
	now := c.clock.Now()

	c.hydrate(ctx, key)

	c.mu.RLock()
	defer c.mu.RUnlock()

	inTraining := c.training[key]
	infos := make([]Info, 0, len(types.Categories()))
	for _, cat := range types.Categories() {
		a := c.entries[key][cat]
		switch {
		case a == nil && inTraining:
			infos = append(infos, Info{Category: cat, State: types.ArtifactTraining})
		case a == nil:
			infos = append(infos, Info{Category: cat, State: types.ArtifactAbsent})
		default:
			state := types.ArtifactReady
			if c.IsStale(a, now) {
				state = types.ArtifactStale
			}
			infos = append(infos, Info{
				Category:        cat,
				State:           state,
				TrainedAt:       a.TrainedAt,
				SampleCount:     a.SampleCount,
				HoldoutAccuracy: a.HoldoutAccuracy,
			})
		}
	}
	return infos
}

// Put commits a replacement artifact set for a location: each artifact is
// persisted to disk first, then the in-memory view is swapped in one
// critical section so concurrent lookups see either the old set or the new
// set, never a mixture.
func (c *Cache) Put(ctx context.Context, key string, arts []*Artifact) error {
	byCat := make(map[types.Category]*Artifact, len(arts))
	for _, a := range arts {
		if err := c.disk.Save(a); err != nil {
			return err
		}
		byCat[a.Category] = a
	}

	c.mu.Lock()
	// Merge over any categories the new run did not produce (degenerate
	// labels); their previous artifacts stay servable.
	merged := make(map[types.Category]*Artifact, len(byCat))
	for cat, a := range c.entries[key] {
		merged[cat] = a
	}
	for cat, a := range byCat {
		merged[cat] = a
	}
	c.entries[key] = merged
	c.hydrated[key] = true
	delete(c.lastFailure, key)
	c.mu.Unlock()

	c.log.InfoContext(ctx, "model artifacts committed",
		"location_key", key,
		"categories", len(byCat),
	)
	return nil
}

// BeginTraining marks a location as having a training run in flight.
// Returns false if one is already running; at most one training run per
// location key may be in flight at a time.
func (c *Cache) BeginTraining(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.training[key] {
		return false
	}
	c.training[key] = true
	return true
}

// EndTraining clears the in-flight marker. If the run failed, the failure
// time is recorded so the cooldown suppresses immediate rescheduling.
func (c *Cache) EndTraining(key string, failed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.training, key)
	if failed {
		c.lastFailure[key] = c.clock.Now()
	}
}

// hydrate lazily loads a location's artifacts from disk on first access.
func (c *Cache) hydrate(ctx context.Context, key string) {
	c.mu.RLock()
	done := c.hydrated[key]
	c.mu.RUnlock()
	if done {
		return
	}

	arts, err := c.disk.LoadAll(key)
	if err != nil {
		c.log.ErrorContext(ctx, "failed to hydrate artifacts from disk",
			"location_key", key,
			"error", err,
		)
		arts = map[types.Category]*Artifact{}
	}

	c.mu.Lock()
	if !c.hydrated[key] {
		c.entries[key] = arts
		c.hydrated[key] = true
	}
	c.mu.Unlock()
}

// maybeSchedule fires a background training request unless one is already
// in flight or the location is inside its failure cooldown.
func (c *Cache) maybeSchedule(ctx context.Context, loc types.Location, now time.Time) {
	key := loc.Key()

	c.mu.RLock()
	scheduler := c.scheduler
	inFlight := c.training[key]
	lastFail, failed := c.lastFailure[key]
	c.mu.RUnlock()

	if scheduler == nil || inFlight {
		return
	}
	if failed && now.Sub(lastFail) < c.opts.FailureCooldown {
		return
	}

	c.log.InfoContext(ctx, "scheduling background training",
		"location_key", key,
	)
	scheduler.Schedule(loc)
}

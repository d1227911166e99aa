package training

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"fairweather/internal/artifacts"
	"fairweather/internal/metrics"
	"fairweather/internal/types"
)

// defaultQueueDepth bounds the pending-training backlog. A full queue drops
// new requests; the next cache lookup re-schedules them.
const defaultQueueDepth = 32

// Runner executes training jobs on a fixed worker pool, off the scoring
// path. It implements artifacts.Scheduler. Duplicate requests for the same
// location key are collapsed by a single-flight group, and the cache's
// in-flight marker keeps the Training state visible to status queries.
//
// A caller abandoning its request has no effect: jobs run to completion and
// their artifacts are committed regardless, which is cheap and harmless.
type Runner struct {
	trainer *Trainer
	cache   *artifacts.Cache
	logger  *slog.Logger

	jobs chan types.Location
	sf   singleflight.Group
	wg   sync.WaitGroup

	mu     sync.Mutex
	closed bool

	// jobTimeout bounds one training run end to end, including the
	// historical fetch.
	jobTimeout time.Duration
}

// NewRunner creates a Runner with the given worker count.
func NewRunner(trainer *Trainer, cache *artifacts.Cache, workers int, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = 2
	}
	r := &Runner{
		trainer:    trainer,
		cache:      cache,
		logger:     logger,
		jobs:       make(chan types.Location, defaultQueueDepth),
		jobTimeout: 10 * time.Minute,
	}
	r.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go r.worker()
	}
	return r
}

// Schedule submits a location for background training. It never blocks: if
// the queue is full the request is dropped and will be re-issued by a later
// cache lookup. Requests arriving during or after shutdown are ignored.
func (r *Runner) Schedule(loc types.Location) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.jobs <- loc:
	default:
		metrics.TrainingQueueDropsTotal.Inc()
		r.logger.Warn("training queue full, dropping request",
			"location_key", loc.Key(),
		)
	}
}

// Close stops accepting jobs and waits for in-flight runs to finish.
func (r *Runner) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.jobs)
	}
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Runner) worker() {
	defer r.wg.Done()
	for loc := range r.jobs {
		key := loc.Key()
		// Collapse duplicate queued jobs for the same key into one run.
		r.sf.Do(key, func() (any, error) {
			r.run(loc)
			return nil, nil
		})
	}
}

// run executes one training job and commits the result to the cache. The
// cache's BeginTraining marker is the per-key mutual exclusion across the
// whole process; EndTraining records failure for the retry cooldown.
func (r *Runner) run(loc types.Location) {
	key := loc.Key()
	if !r.cache.BeginTraining(key) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.jobTimeout)
	defer cancel()

	started := time.Now()
	arts, report, err := r.trainer.Train(ctx, loc)
	metrics.RecordTrainingRun(time.Since(started), err)
	if err != nil {
		r.cache.EndTraining(key, true)
		r.logger.ErrorContext(ctx, "training run failed",
			"location_key", key,
			"job_id", report.JobID,
			"sample_count", report.SampleCount,
			"error", err,
		)
		return
	}

	if err := r.cache.Put(ctx, key, arts); err != nil {
		r.cache.EndTraining(key, true)
		r.logger.ErrorContext(ctx, "failed to commit trained artifacts",
			"location_key", key,
			"job_id", report.JobID,
			"error", err,
		)
		return
	}

	r.cache.EndTraining(key, false)
	r.logger.InfoContext(ctx, "training run complete",
		"location_key", key,
		"job_id", report.JobID,
		"sample_count", report.SampleCount,
		"trained", len(arts),
		"duration", report.FinishedAt.Sub(report.StartedAt).String(),
	)
}

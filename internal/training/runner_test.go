package training

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fairweather/internal/artifacts"
	"fairweather/internal/metrics"
	"fairweather/internal/types"
)

type recordingScheduler struct {
	mu   sync.Mutex
	keys []string
}

func (s *recordingScheduler) Schedule(loc types.Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, loc.Key())
}

func (s *recordingScheduler) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.keys...)
}

func newTestCache(t *testing.T) *artifacts.Cache {
	t.Helper()
	disk, err := artifacts.NewDiskStore(t.TempDir(), testLogger())
	require.NoError(t, err)
	return artifacts.NewCache(disk, artifacts.CacheOptions{}, nil, testLogger())
}

func TestRunnerTrainsAndCommitsArtifacts(t *testing.T) {
	history := &mockHistory{records: seasonalRecords(730)}
	trainer := NewTrainer(history, Config{Trees: 10, MaxDepth: 4}, nil, testLogger())
	cache := newTestCache(t)

	runner := NewRunner(trainer, cache, 1, testLogger())
	loc := types.Location{Lat: 40.71, Lon: -74.01}
	runner.Schedule(loc)
	runner.Close()

	cache.SetScheduler(&recordingScheduler{})
	got := cache.Lookup(context.Background(), loc)
	assert.NotEmpty(t, got)
	assert.Equal(t, 1, history.callCount())
}

func TestRunnerFailureSetsCooldown(t *testing.T) {
	history := &mockHistory{err: errors.New("provider down")}
	trainer := NewTrainer(history, Config{}, nil, testLogger())
	cache := newTestCache(t)

	runner := NewRunner(trainer, cache, 1, testLogger())
	loc := types.Location{Lat: 1, Lon: 2}
	runner.Schedule(loc)
	runner.Close()

	// The failed run is inside its cooldown window: a lookup must not
	// immediately re-schedule.
	sched := &recordingScheduler{}
	cache.SetScheduler(sched)
	got := cache.Lookup(context.Background(), loc)
	assert.Empty(t, got)
	assert.Empty(t, sched.calls())
}

func TestRunnerSkipsKeyAlreadyInTraining(t *testing.T) {
	history := &mockHistory{records: seasonalRecords(730)}
	trainer := NewTrainer(history, Config{}, nil, testLogger())
	cache := newTestCache(t)

	loc := types.Location{Lat: 3, Lon: 4}
	require.True(t, cache.BeginTraining(loc.Key()))

	runner := NewRunner(trainer, cache, 1, testLogger())
	runner.Schedule(loc)
	runner.Close()

	assert.Equal(t, 0, history.callCount())
}

func TestScheduleDuringShutdownIsIgnored(t *testing.T) {
	history := &mockHistory{err: errors.New("provider down")}
	trainer := NewTrainer(history, Config{}, nil, testLogger())
	cache := newTestCache(t)

	runner := NewRunner(trainer, cache, 1, testLogger())

	// Cache lookups can race shutdown; concurrent Schedule calls must not
	// panic on the closing queue.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				runner.Schedule(types.Location{Lat: float64(i), Lon: float64(j)})
			}
		}(i)
	}
	runner.Close()
	wg.Wait()

	// Late requests after shutdown are dropped outright.
	runner.Schedule(types.Location{Lat: 1, Lon: 1})
	runner.Close()
}

func TestScheduleDropsWhenQueueIsFull(t *testing.T) {
	gate := make(chan struct{})
	history := &mockHistory{err: errors.New("slow provider"), gate: gate}
	trainer := NewTrainer(history, Config{}, nil, testLogger())
	cache := newTestCache(t)

	runner := NewRunner(trainer, cache, 1, testLogger())

	before := testutil.ToFloat64(metrics.TrainingQueueDropsTotal)

	// One job occupies the worker (blocked on the gate), the queue holds
	// the next batch, and everything past that is dropped.
	for i := 0; i <= defaultQueueDepth+1; i++ {
		runner.Schedule(types.Location{Lat: float64(i), Lon: 0})
	}

	assert.GreaterOrEqual(t, testutil.ToFloat64(metrics.TrainingQueueDropsTotal)-before, 1.0)

	close(gate)
	runner.Close()
}

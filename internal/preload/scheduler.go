// Package preload warms models into the cache ahead of demand. Tasks wait in
// a priority queue ordered by the configured Strategy and are drained in
// rate-limited batches by ProcessBatch.
package preload

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"modelcache/internal/modelerr"
	"modelcache/internal/pattern"
	"modelcache/pkg/types"
)

const (
	DefaultBatchSize   = 2
	DefaultDelay       = time.Second
	DefaultConcurrency = 1
	DefaultMaxQueue    = 64
)

// ErrQueueFull is returned by Queue when MaxQueue tasks are already waiting.
var ErrQueueFull = errors.New("preload queue full")

// Registry is the slice of the model registry the scheduler needs.
type Registry interface {
	Register(id, path string) error
	Get(id string) (types.Model, bool)
	AgeSeconds(id string) (int64, bool)
}

// Target is what a batch warms models into. Preload reports whether the call
// itself loaded id; false with a nil error means id was already resident.
type Target interface {
	Preload(id string) (bool, error)
	Contains(id string) bool
}

// Analyzer ranks models by observed demand.
type Analyzer interface {
	Analyze() []pattern.Result
}

type Config struct {
	Strategy    Strategy
	BatchSize   int
	Delay       time.Duration
	Concurrency int
	MaxQueue    int
	// Disabled starts the scheduler paused.
	Disabled bool
	Logger   *zerolog.Logger
}

// Stats are cumulative scheduler counters.
type Stats struct {
	Strategy   Strategy
	Enabled    bool
	Queued     uint64
	Successful uint64
	Failed     uint64
	Skipped    uint64
	Batches    uint64
	LastBatch  time.Time
}

type Scheduler struct {
	mu       sync.Mutex
	reg      Registry
	strategy Strategy
	batch    int
	delay    time.Duration
	conc     int
	maxQueue int
	enabled  bool
	queue    *taskQueue
	seq      uint64
	stats    Stats
	log      zerolog.Logger
	now      func() time.Time
}

// New constructs a scheduler over reg. Zero BatchSize, Concurrency and
// MaxQueue take the package defaults. A zero Delay disables rate limiting; a
// negative one selects DefaultDelay.
func New(reg Registry, cfg Config) *Scheduler {
	s := &Scheduler{
		reg:      reg,
		strategy: cfg.Strategy,
		batch:    cfg.BatchSize,
		delay:    cfg.Delay,
		conc:     cfg.Concurrency,
		maxQueue: cfg.MaxQueue,
		enabled:  !cfg.Disabled,
		queue:    &taskQueue{fifo: cfg.Strategy == Sequential},
		log:      zerolog.Nop(),
		now:      time.Now,
	}
	if s.batch <= 0 {
		s.batch = DefaultBatchSize
	}
	if s.delay < 0 {
		s.delay = DefaultDelay
	}
	if s.conc <= 0 {
		s.conc = DefaultConcurrency
	}
	if s.maxQueue <= 0 {
		s.maxQueue = DefaultMaxQueue
	}
	if cfg.Logger != nil {
		s.log = cfg.Logger.With().Str("component", "preload").Logger()
	}
	return s
}

// Queue registers path under id and schedules it for warming. A task already
// waiting for id is replaced by the new one.
func (s *Scheduler) Queue(id, path string) (Task, error) {
	if err := s.reg.Register(id, path); err != nil {
		return Task{}, err
	}
	return s.push(id)
}

// QueueModel schedules an already registered model.
func (s *Scheduler) QueueModel(id string) (Task, error) {
	if _, ok := s.reg.Get(id); !ok {
		return Task{}, modelerr.ErrNotFound(id)
	}
	return s.push(id)
}

func (s *Scheduler) push(id string) (Task, error) {
	meta, ok := s.reg.Get(id)
	if !ok {
		return Task{}, modelerr.ErrNotFound(id)
	}
	age, _ := s.reg.AgeSeconds(id)

	s.mu.Lock()
	defer s.mu.Unlock()
	replaced := false
	if old := s.queue.find(id); old != nil {
		s.queue.remove(old)
		replaced = true
	}
	if !replaced && s.queue.Len() >= s.maxQueue {
		return Task{}, ErrQueueFull
	}
	s.seq++
	t := &Task{
		ID:        uuid.NewString(),
		ModelID:   id,
		Path:      meta.Path,
		Priority:  s.strategy.priority(meta, age, s.queue.Len()),
		CreatedAt: s.now(),
		seq:       s.seq,
	}
	heap.Push(s.queue, t)
	s.stats.Queued++
	s.log.Debug().Str("event", "queue").Str("model", id).Str("task", t.ID).Int64("priority", t.Priority).Bool("replaced", replaced).Msg("preload")
	return *t, nil
}

// ProcessBatch pops up to BatchSize tasks and preloads each into target,
// returning how many were loaded. It is a no-op while disabled or when less
// than Delay has passed since the previous batch. Task failures are counted
// and logged; they never abort the batch. A canceled ctx stops the batch and
// puts unstarted tasks back on the queue.
func (s *Scheduler) ProcessBatch(ctx context.Context, target Target) (int, error) {
	s.mu.Lock()
	if !s.enabled || s.queue.Len() == 0 {
		s.mu.Unlock()
		return 0, nil
	}
	now := s.now()
	if !s.stats.LastBatch.IsZero() && now.Sub(s.stats.LastBatch) < s.delay {
		s.mu.Unlock()
		return 0, nil
	}
	tasks := make([]*Task, 0, s.batch)
	for len(tasks) < s.batch && s.queue.Len() > 0 {
		tasks = append(tasks, heap.Pop(s.queue).(*Task))
	}
	s.stats.LastBatch = now
	s.stats.Batches++
	s.mu.Unlock()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		loaded  int
		sem     = semaphore.NewWeighted(int64(s.conc))
		stopErr error
	)
	for i, t := range tasks {
		if err := sem.Acquire(ctx, 1); err != nil {
			stopErr = err
			s.requeue(tasks[i:])
			break
		}
		wg.Add(1)
		go func(t *Task) {
			defer wg.Done()
			defer sem.Release(1)
			ok := s.run(target, t)
			if ok {
				mu.Lock()
				loaded++
				mu.Unlock()
			}
		}(t)
	}
	wg.Wait()
	return loaded, stopErr
}

func (s *Scheduler) run(target Target, t *Task) bool {
	if target.Contains(t.ModelID) {
		s.skip(t)
		return false
	}
	start := time.Now()
	loaded, err := target.Preload(t.ModelID)
	if err == nil && !loaded {
		// Another caller loaded it after the residency check.
		s.skip(t)
		return false
	}
	s.mu.Lock()
	if err != nil {
		s.stats.Failed++
	} else {
		s.stats.Successful++
	}
	s.mu.Unlock()
	if err != nil {
		s.log.Warn().Err(err).Str("event", "preload_failed").Str("model", t.ModelID).Str("task", t.ID).Msg("preload")
		return false
	}
	s.log.Info().Str("event", "preloaded").Str("model", t.ModelID).Str("task", t.ID).Dur("took", time.Since(start)).Msg("preload")
	return true
}

func (s *Scheduler) skip(t *Task) {
	s.mu.Lock()
	s.stats.Skipped++
	s.mu.Unlock()
	s.log.Debug().Str("event", "skip").Str("model", t.ModelID).Str("task", t.ID).Msg("preload")
}

func (s *Scheduler) requeue(tasks []*Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tasks {
		if s.queue.find(t.ModelID) == nil {
			heap.Push(s.queue, t)
		}
	}
}

// PlanFromPatterns queues every model the analyzer marks for preloading that
// is neither resident in target nor already waiting. It returns the number of
// tasks queued.
func (s *Scheduler) PlanFromPatterns(a Analyzer, target Target) int {
	n := 0
	for _, r := range a.Analyze() {
		if !r.ShouldPreload || target.Contains(r.ModelID) || s.isQueued(r.ModelID) {
			continue
		}
		if _, err := s.QueueModel(r.ModelID); err != nil {
			s.log.Debug().Err(err).Str("event", "plan_skip").Str("model", r.ModelID).Msg("preload")
			continue
		}
		n++
	}
	if n > 0 {
		s.log.Info().Str("event", "plan").Int("queued", n).Msg("preload")
	}
	return n
}

func (s *Scheduler) isQueued(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.find(id) != nil
}

// SetEnabled pauses or resumes ProcessBatch.
func (s *Scheduler) SetEnabled(enabled bool) {
	s.mu.Lock()
	s.enabled = enabled
	s.mu.Unlock()
	s.log.Info().Str("event", "set_enabled").Bool("enabled", enabled).Msg("preload")
}

func (s *Scheduler) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

func (s *Scheduler) QueueSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// ClearQueue drops every waiting task and returns how many there were.
func (s *Scheduler) ClearQueue() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.queue.Len()
	s.queue.tasks = nil
	return n
}

// QueueList returns the waiting tasks in the order they will run.
func (s *Scheduler) QueueList() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.ordered()
}

func (s *Scheduler) Strategy() Strategy { return s.strategy }

func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.Strategy = s.strategy
	st.Enabled = s.enabled
	return st
}

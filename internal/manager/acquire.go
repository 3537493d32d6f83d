package manager

import (
	"context"
	"time"

	"modelcache/internal/engine"
	"modelcache/internal/modelerr"
	"modelcache/internal/preload"
)

// Acquire returns the loaded model for id, loading it (and evicting others)
// on a miss. An empty id selects the default model. The access is recorded
// in the registry and the pattern detector.
//
// If ctx ends while a load is running the caller gets ctx.Err(); the load
// itself completes and stays cached.
func (m *Manager) Acquire(ctx context.Context, id string) (engine.Model, error) {
	id, err := m.ResolveID(id)
	if err != nil {
		return nil, err
	}
	if m.isClosed() {
		return nil, modelerr.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, ok := m.reg.Get(id); !ok {
		m.publish(Event{Name: "acquire_failed", ModelID: id, Fields: map[string]any{"error": "not found"}})
		return nil, modelerr.ErrNotFound(id)
	}

	start := time.Now()
	hit := m.cache.Contains(id)
	type result struct {
		model engine.Model
		err   error
	}
	done := make(chan result, 1)
	go func() {
		h, err := m.cache.Acquire(id, m.load)
		done <- result{h, err}
	}()
	var r result
	select {
	case r = <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if r.err != nil {
		m.log.Warn().Err(r.err).Str("event", "acquire_failed").Str("model", id).Msg("manager")
		m.publish(Event{Name: "acquire_failed", ModelID: id, Fields: map[string]any{"error": r.err.Error()}})
		return nil, r.err
	}

	if err := m.reg.Touch(id); err != nil {
		m.log.Debug().Err(err).Str("model", id).Msg("touch after acquire")
	}
	m.detector.RecordAccess(id)
	dur := time.Since(start)
	m.log.Debug().Str("event", "acquire").Str("model", id).Bool("hit", hit).Dur("took", dur).Msg("manager")
	m.publish(Event{Name: "acquire", ModelID: id, Fields: map[string]any{"hit": hit, "dur_ms": int(dur / time.Millisecond)}})
	return r.model, nil
}

// Preload queues id for background warming by the maintenance loop.
func (m *Manager) Preload(id string) (preload.Task, error) {
	id, err := m.ResolveID(id)
	if err != nil {
		return preload.Task{}, err
	}
	if m.isClosed() {
		return preload.Task{}, modelerr.ErrClosed
	}
	task, err := m.sched.QueueModel(id)
	if err != nil {
		return preload.Task{}, err
	}
	m.publish(Event{Name: "preload_queued", ModelID: id, Fields: map[string]any{"task": task.ID, "priority": task.Priority}})
	return task, nil
}

// QueueSize is the number of preload tasks waiting.
func (m *Manager) QueueSize() int { return m.sched.QueueSize() }

// preloadTarget lets the scheduler warm models into the cache with the
// manager's loader.
type preloadTarget struct{ m *Manager }

// Preload refuses a model that would push the cached total past the
// registry limit.
func (t preloadTarget) Preload(id string) (bool, error) {
	if meta, ok := t.m.reg.Get(id); ok && !t.m.cache.Contains(id) && t.m.reg.WouldExceedLimit(meta.SizeBytes) {
		t.m.publish(Event{Name: "preload_refused", ModelID: id, Fields: map[string]any{
			"cached_bytes": t.m.reg.CachedBytes(),
			"limit_bytes":  t.m.reg.LimitBytes(),
		}})
		return false, modelerr.ErrCapacityExceeded(id, meta.SizeBytes, t.m.reg.LimitBytes())
	}
	return t.m.cache.Preload(id, t.m.load)
}

func (t preloadTarget) Contains(id string) bool { return t.m.cache.Contains(id) }

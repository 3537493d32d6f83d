package manager

import (
	"context"
	"time"
)

// Run drives the background maintenance loop until ctx ends.
func (m *Manager) Run(ctx context.Context) error {
	t := time.NewTicker(m.tick)
	defer t.Stop()
	m.log.Info().Str("event", "loop_start").Dur("tick", m.tick).Msg("manager")
	for {
		select {
		case <-ctx.Done():
			m.log.Info().Str("event", "loop_stop").Msg("manager")
			return nil
		case <-t.C:
			if m.isClosed() {
				return nil
			}
			m.runTick(ctx)
		}
	}
}

// runTick performs one maintenance pass: plan preloads from usage patterns,
// warm one batch, resize the cache against memory pressure, and record
// reclaimed memory.
func (m *Manager) runTick(ctx context.Context) {
	target := preloadTarget{m}

	if m.detector.ShouldAnalyze() {
		if n := m.sched.PlanFromPatterns(m.detector, target); n > 0 {
			m.publish(Event{Name: "plan", Fields: map[string]any{"queued": n}})
		}
	}

	if _, err := m.sched.ProcessBatch(ctx, target); err != nil {
		m.log.Debug().Err(err).Msg("preload batch interrupted")
		return
	}

	if m.optimizer.ShouldOptimize() {
		m.optimize()
	}

	if m.gc.ShouldCollect() {
		r := m.cache.TakeReclaimed()
		st := m.gc.Collect(uint64(r.Bytes), r.Models)
		if r.Models > 0 {
			m.publish(Event{Name: "collect", Fields: map[string]any{
				"freed_bytes": r.Bytes,
				"models":      r.Models,
				"collections": st.Collections,
			}})
		}
	}
}

func (m *Manager) optimize() {
	mem, err := m.memory.Snapshot()
	if err != nil {
		m.setErr(err)
		m.log.Warn().Err(err).Msg("memory snapshot")
		return
	}
	targetMB, changed, err := m.optimizer.Optimize(mem)
	if err != nil {
		m.setErr(err)
		m.log.Warn().Err(err).Msg("optimize")
		return
	}
	if !changed {
		return
	}
	capacity := m.cache.Capacity()
	capacity.MaxBytes = int64(targetMB) << 20
	evicted := m.cache.SetCapacity(capacity)
	m.publish(Event{Name: "optimize", Fields: map[string]any{"target_mb": targetMB, "evicted": evicted}})
}

package manager

import (
	"time"

	"modelcache/pkg/types"
)

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	now := time.Now()
	capacity := m.cache.Capacity()
	cs := m.cache.Stats()
	resp := types.StatusResponse{
		Policy:    m.cache.Policy().String(),
		MaxModels: capacity.MaxModels,
		MaxBytes:  capacity.MaxBytes,
		UsedBytes: m.cache.UsedBytes(),
		Cache: types.CacheStats{
			Hits:      cs.Hits,
			Misses:    cs.Misses,
			Evictions: cs.Evictions,
			Preloads:  cs.Preloads,
			HitRate:   cs.HitRate(),
		},
		HotModels:      m.detector.HotModels(),
		UptimeSeconds:  int64(now.Sub(m.startTime) / time.Second),
		ServerTimeUnix: now.Unix(),
	}

	entries := m.cache.Entries()
	resp.Entries = make([]types.EntryStatus, 0, len(entries))
	for _, e := range entries {
		resp.Entries = append(resp.Entries, types.EntryStatus{
			ModelID:     e.ID,
			SizeBytes:   e.SizeBytes,
			LastUsed:    e.LastUsed.Unix(),
			InsertedAt:  e.InsertedAt.Unix(),
			AccessCount: e.AccessCount,
			Preloaded:   e.Preloaded,
		})
	}

	ps := m.sched.Stats()
	resp.Preload = types.PreloadStatus{
		Enabled:    ps.Enabled,
		Strategy:   ps.Strategy.String(),
		Successful: ps.Successful,
		Failed:     ps.Failed,
		Skipped:    ps.Skipped,
		Batches:    ps.Batches,
	}
	for _, t := range m.sched.QueueList() {
		resp.Preload.Pending = append(resp.Preload.Pending, t.ModelID)
	}
	resp.Preload.Queued = len(resp.Preload.Pending)

	opt := m.optimizer.Stats()
	resp.Optimizer = types.OptimizerStatus{
		Strategy:           opt.Strategy.String(),
		AutoOptimize:       opt.AutoOptimize,
		TargetMB:           opt.TargetMB,
		TotalOptimizations: opt.TotalOptimizations,
		SizeIncreases:      opt.SizeIncreases,
		SizeDecreases:      opt.SizeDecreases,
		AverageSizeMB:      opt.AverageSizeMB,
		LastOptimized:      unixOrZero(opt.LastOptimized),
	}

	gs := m.gc.Stats()
	resp.GC = types.GCStatus{
		Policy:              gs.Policy.String(),
		Collections:         gs.Collections,
		TotalFreedBytes:     gs.TotalFreedBytes,
		TotalFreedMB:        gs.TotalFreedMB,
		ModelsCollected:     gs.ModelsCollected,
		AvgCollectionTimeMs: gs.AvgCollectionTimeMs,
		LastCollection:      unixOrZero(gs.LastCollection),
		NextCollection:      unixOrZero(gs.NextCollection),
	}

	m.mu.RLock()
	resp.LastError = m.err
	m.mu.RUnlock()
	return resp
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

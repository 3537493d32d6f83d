package manager

import (
	"modelcache/internal/cache"
	"modelcache/internal/modelerr"
)

// Unload removes a resident model from the cache and unloads it.
// Unloading a model that is registered but not resident is a no-op.
func (m *Manager) Unload(modelID string) error {
	if modelID == "" {
		return modelerr.ErrNotFound("(unspecified)")
	}
	if _, ok := m.reg.Get(modelID); !ok {
		return modelerr.ErrNotFound(modelID)
	}
	m.publish(Event{Name: "unload_start", ModelID: modelID})
	removed := m.cache.Remove(modelID)
	m.publish(Event{Name: "unload_done", ModelID: modelID, Fields: map[string]any{"removed": removed}})
	return nil
}

// onEvict runs for every entry that leaves the cache.
func (m *Manager) onEvict(info cache.EntryInfo, reason cache.Reason) {
	m.publish(Event{Name: "evict", ModelID: info.ID, Fields: map[string]any{
		"reason":     string(reason),
		"size_bytes": info.SizeBytes,
		"preloaded":  info.Preloaded,
	}})
}

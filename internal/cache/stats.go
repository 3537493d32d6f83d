package cache

import "time"

// Stats are monotonically increasing until ResetStats.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Preloads  uint64
}

// HitRate is Hits/(Hits+Misses), or 0 before any request.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Capacity bounds the cache. A zero field leaves that axis unbounded.
type Capacity struct {
	MaxModels int
	MaxBytes  int64
}

// Unbounded reports whether neither axis is limited.
func (c Capacity) Unbounded() bool { return c.MaxModels <= 0 && c.MaxBytes <= 0 }

// Reclaimed is the memory released by evictions and removals since the
// last TakeReclaimed.
type Reclaimed struct {
	Bytes  int64
	Models int
}

// EntryInfo is a read-only view of a resident entry.
type EntryInfo struct {
	ID          string
	SizeBytes   int64
	LastUsed    time.Time
	InsertedAt  time.Time
	AccessCount uint64
	Preloaded   bool
}

// Reason says why an entry left the cache.
type Reason string

const (
	ReasonCapacity Reason = "capacity"
	ReasonResize   Reason = "resize"
	ReasonRemove   Reason = "remove"
	ReasonClear    Reason = "clear"
)

package cache

import (
	"fmt"
	"sort"

	"modelcache/internal/modelerr"
)

// fitsLocked reports whether one more entry of size bytes fits next to the
// resident entries and the in-flight reservations.
func (c *Cache[H]) fitsLocked(size int64) bool {
	if c.capacity.MaxModels > 0 && len(c.entries)+len(c.reserved)+1 > c.capacity.MaxModels {
		return false
	}
	if c.capacity.MaxBytes > 0 && c.usedBytes+c.reservedBytes+size > c.capacity.MaxBytes {
		return false
	}
	return true
}

func (c *Cache[H]) overLocked() bool {
	if c.capacity.MaxModels > 0 && len(c.entries)+len(c.reserved) > c.capacity.MaxModels {
		return true
	}
	return c.capacity.MaxBytes > 0 && c.usedBytes+c.reservedBytes > c.capacity.MaxBytes
}

// makeRoomLocked evicts until an entry of size bytes fits. When only
// in-flight loads are in the way it waits for one of them to settle.
// Evicted entries are returned for release after the lock is dropped.
func (c *Cache[H]) makeRoomLocked(id string, size int64) ([]*entry[H], error) {
	var victims []*entry[H]
	for !c.fitsLocked(size) {
		if c.closed {
			return victims, modelerr.ErrClosed
		}
		if v := c.pickVictimLocked(""); v != nil {
			c.evictLocked(v)
			victims = append(victims, v)
			continue
		}
		if len(c.reserved) > 0 {
			c.cond.Wait()
			continue
		}
		return victims, modelerr.ErrCapacityExceeded(id, size, c.capacity.MaxBytes)
	}
	return victims, nil
}

// pickVictimLocked returns the policy's choice among resident entries other
// than exclude, or nil when there is none.
func (c *Cache[H]) pickVictimLocked(exclude string) *entry[H] {
	var best []*entry[H]
	for _, e := range c.entries {
		if e.id == exclude {
			continue
		}
		if len(best) == 0 {
			best = append(best, e)
			continue
		}
		better, tied := c.policy.compare(&e.entryState, &best[0].entryState)
		switch {
		case better:
			best = append(best[:0], e)
		case tied:
			best = append(best, e)
		}
	}
	switch len(best) {
	case 0:
		return nil
	case 1:
		return best[0]
	}
	return c.breakTieLocked(best)
}

// breakTieLocked orders tied candidates by the registry's hint, then by
// insertion order.
func (c *Cache[H]) breakTieLocked(tied []*entry[H]) *entry[H] {
	var hint []string
	if c.policy == LFU {
		hint = c.reg.LeastUsedCached()
	} else {
		hint = c.reg.OldestCached()
	}
	rank := make(map[string]int, len(hint))
	for i, id := range hint {
		rank[id] = i
	}
	pos := func(id string) int {
		if r, ok := rank[id]; ok {
			return r
		}
		return len(hint)
	}
	sort.Slice(tied, func(i, j int) bool {
		pi, pj := pos(tied[i].id), pos(tied[j].id)
		if pi != pj {
			return pi < pj
		}
		return tied[i].seq < tied[j].seq
	})
	return tied[0]
}

func (c *Cache[H]) evictLocked(e *entry[H]) {
	c.dropLocked(e)
	c.stats.Evictions++
}

// dropLocked removes e from the bookkeeping and records the released memory.
func (c *Cache[H]) dropLocked(e *entry[H]) {
	delete(c.entries, e.id)
	c.usedBytes -= e.size
	c.reclaimed.Bytes += e.size
	c.reclaimed.Models++
	c.reg.SetCached(e.id, false)
}

// release unloads entries that already left the bookkeeping. Unload failures
// are logged and otherwise ignored.
func (c *Cache[H]) release(entries []*entry[H], reason Reason) {
	for _, e := range entries {
		c.unload(e.id, e.handle)
		c.log.Info().Str("event", "evict").Str("model", e.id).Str("reason", string(reason)).
			Int64("size_bytes", e.size).Uint64("access_count", e.accessCount).Msg("cache")
		if c.onEvict != nil {
			c.onEvict(e.info(), reason)
		}
	}
}

func (c *Cache[H]) unload(id string, h H) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("unload panic: %v", r)
			}
		}()
		return h.Unload()
	}()
	if err != nil {
		c.log.Warn().Str("event", "unload_failed").Str("model", id).Err(err).Msg("cache")
	}
}

// Remove unloads and drops id. It reports whether id was resident.
func (c *Cache[H]) Remove(id string) bool {
	c.mu.Lock()
	e, ok := c.entries[id]
	if ok {
		c.dropLocked(e)
		c.cond.Broadcast()
	}
	c.mu.Unlock()
	if ok {
		c.release([]*entry[H]{e}, ReasonRemove)
	}
	return ok
}

// Clear unloads and drops every entry. Loads in flight still commit.
func (c *Cache[H]) Clear() {
	c.mu.Lock()
	all := c.drainLocked()
	c.mu.Unlock()
	c.release(all, ReasonClear)
}

func (c *Cache[H]) drainLocked() []*entry[H] {
	all := make([]*entry[H], 0, len(c.entries))
	for _, e := range c.entries {
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].seq < all[j].seq })
	for _, e := range all {
		c.dropLocked(e)
	}
	c.cond.Broadcast()
	return all
}

// SetCapacity replaces the bound and evicts until the cache fits it. The
// evicted ids are returned in eviction order.
func (c *Cache[H]) SetCapacity(capacity Capacity) []string {
	c.mu.Lock()
	c.capacity = capacity
	var victims []*entry[H]
	for c.overLocked() {
		v := c.pickVictimLocked("")
		if v == nil {
			break
		}
		c.evictLocked(v)
		victims = append(victims, v)
	}
	c.cond.Broadcast()
	c.mu.Unlock()

	c.release(victims, ReasonResize)
	ids := make([]string, len(victims))
	for i, v := range victims {
		ids[i] = v.id
	}
	if len(ids) > 0 {
		c.log.Info().Str("event", "resize").Int("max_models", capacity.MaxModels).
			Int64("max_bytes", capacity.MaxBytes).Strs("evicted", ids).Msg("cache")
	}
	return ids
}

// Close unloads every entry and fails later Acquire and Preload calls with
// modelerr.ErrClosed.
func (c *Cache[H]) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	all := c.drainLocked()
	c.mu.Unlock()
	c.release(all, ReasonClear)
	return nil
}

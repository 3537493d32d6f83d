// Package cache holds the bounded working set of loaded models.
//
// The cache owns every handle it stores. Bookkeeping (capacity checks,
// victim selection, insert and remove) happens under a single mutex; the
// loader and Unload calls run with the lock released. A load in flight holds
// a reservation that counts toward capacity, so the bound is never exceeded
// as seen by any caller, and concurrent misses for one id share a single load.
package cache

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"modelcache/internal/modelerr"
	"modelcache/pkg/types"
)

// Handle is a loaded model owned by the cache.
type Handle interface {
	Unload() error
}

// Loader constructs a handle from a model path.
type Loader[H Handle] func(path string) (H, error)

// Registry is the metadata source the cache resolves ids against. It also
// receives cached-flag updates and supplies tie-break orderings.
type Registry interface {
	Get(id string) (types.Model, bool)
	SetCached(id string, cached bool)
	OldestCached() []string
	LeastUsedCached() []string
}

// Config configures a Cache. Registry is required.
type Config struct {
	Policy   Policy
	Capacity Capacity
	Registry Registry
	Logger   *zerolog.Logger
	// OnEvict runs after an entry has left the cache and been unloaded.
	OnEvict func(EntryInfo, Reason)
}

type entryState struct {
	id          string
	size        int64
	lastUsed    time.Time
	insertedAt  time.Time
	accessCount uint64
	preloaded   bool
	seq         uint64
}

type entry[H Handle] struct {
	entryState
	handle H
}

// Cache is safe for concurrent use.
type Cache[H Handle] struct {
	mu   sync.Mutex
	cond *sync.Cond

	policy   Policy
	capacity Capacity
	reg      Registry

	entries       map[string]*entry[H]
	reserved      map[string]int64
	usedBytes     int64
	reservedBytes int64
	seq           uint64
	stats         Stats
	reclaimed     Reclaimed
	closed        bool

	flights singleflight.Group
	onEvict func(EntryInfo, Reason)
	log     zerolog.Logger
	now     func() time.Time
}

// New constructs an empty cache.
func New[H Handle](cfg Config) (*Cache[H], error) {
	if cfg.Registry == nil {
		return nil, errors.New("cache: registry is required")
	}
	switch cfg.Policy {
	case LRU, LFU, FIFO:
	default:
		return nil, fmt.Errorf("cache: %s", cfg.Policy)
	}
	c := &Cache[H]{
		policy:   cfg.Policy,
		capacity: cfg.Capacity,
		reg:      cfg.Registry,
		entries:  make(map[string]*entry[H]),
		reserved: make(map[string]int64),
		onEvict:  cfg.OnEvict,
		log:      zerolog.Nop(),
		now:      time.Now,
	}
	c.cond = sync.NewCond(&c.mu)
	if cfg.Logger != nil {
		c.log = cfg.Logger.With().Str("component", "cache").Str("policy", cfg.Policy.String()).Logger()
	}
	return c, nil
}

// Acquire returns the handle for id, loading it with load on a miss.
func (c *Cache[H]) Acquire(id string, load Loader[H]) (H, error) {
	h, _, err := c.get(id, load, false)
	return h, err
}

// Preload loads id without touching hit/miss counters. An id that is
// already resident is left as is. loaded is true only when this call ran the
// loader and committed the entry.
func (c *Cache[H]) Preload(id string, load Loader[H]) (loaded bool, err error) {
	_, loaded, err = c.get(id, load, true)
	return loaded, err
}

// flight is the value shared by callers joined on one load.
type flight[H Handle] struct {
	handle H
	loaded bool
}

func (c *Cache[H]) get(id string, load Loader[H], preload bool) (H, bool, error) {
	var zero H
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return zero, false, modelerr.ErrClosed
	}
	if e, ok := c.entries[id]; ok {
		if !preload {
			c.touchLocked(e)
		}
		h := e.handle
		c.mu.Unlock()
		return h, false, nil
	}
	c.mu.Unlock()

	leader := false
	v, err, _ := c.flights.Do(id, func() (any, error) {
		leader = true
		h, loaded, err := c.loadMiss(id, load, preload)
		return flight[H]{handle: h, loaded: loaded}, err
	})
	if err != nil {
		return zero, false, err
	}
	f := v.(flight[H])
	if !leader && !preload {
		// Shared a load started by another caller.
		c.mu.Lock()
		if e, ok := c.entries[id]; ok {
			c.touchLocked(e)
		}
		c.mu.Unlock()
	}
	return f.handle, leader && f.loaded, nil
}

func (c *Cache[H]) loadMiss(id string, load Loader[H], preload bool) (H, bool, error) {
	var zero H
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return zero, false, modelerr.ErrClosed
	}
	if e, ok := c.entries[id]; ok {
		// Committed between the fast-path check and the flight.
		if !preload {
			c.touchLocked(e)
		}
		h := e.handle
		c.mu.Unlock()
		return h, false, nil
	}
	meta, ok := c.reg.Get(id)
	if !ok {
		c.mu.Unlock()
		return zero, false, modelerr.ErrNotFound(id)
	}
	if !preload {
		c.stats.Misses++
	}
	if c.capacity.MaxBytes > 0 && meta.SizeBytes > c.capacity.MaxBytes {
		c.mu.Unlock()
		return zero, false, modelerr.ErrCapacityExceeded(id, meta.SizeBytes, c.capacity.MaxBytes)
	}
	victims, err := c.makeRoomLocked(id, meta.SizeBytes)
	if err != nil {
		c.mu.Unlock()
		c.release(victims, ReasonCapacity)
		return zero, false, err
	}
	c.reserved[id] = meta.SizeBytes
	c.reservedBytes += meta.SizeBytes
	c.mu.Unlock()

	c.release(victims, ReasonCapacity)

	start := c.now()
	h, err := callLoader(load, meta.Path)

	c.mu.Lock()
	delete(c.reserved, id)
	c.reservedBytes -= meta.SizeBytes
	c.cond.Broadcast()
	if err != nil {
		c.mu.Unlock()
		c.log.Warn().Str("event", "load_failed").Str("model", id).Err(err).Msg("cache")
		return zero, false, modelerr.ErrLoadFailure(id, err)
	}
	if c.closed {
		c.mu.Unlock()
		c.unload(id, h)
		return zero, false, modelerr.ErrClosed
	}
	now := c.now()
	c.seq++
	e := &entry[H]{
		entryState: entryState{
			id:         id,
			size:       meta.SizeBytes,
			lastUsed:   now,
			insertedAt: now,
			preloaded:  preload,
			seq:        c.seq,
		},
		handle: h,
	}
	if preload {
		c.stats.Preloads++
	} else {
		e.accessCount = 1
	}
	c.entries[id] = e
	c.usedBytes += e.size
	c.reg.SetCached(id, true)

	// The capacity may have shrunk while the loader ran.
	var late []*entry[H]
	for c.overLocked() {
		v := c.pickVictimLocked(id)
		if v == nil {
			break
		}
		c.evictLocked(v)
		late = append(late, v)
	}
	overflow := c.overLocked()
	if overflow {
		c.dropLocked(e)
	}
	c.mu.Unlock()

	c.release(late, ReasonResize)
	if overflow {
		c.release([]*entry[H]{e}, ReasonResize)
		return zero, false, modelerr.ErrCapacityExceeded(id, meta.SizeBytes, c.Capacity().MaxBytes)
	}
	c.log.Info().Str("event", "load").Str("model", id).Int64("size_bytes", meta.SizeBytes).
		Bool("preload", preload).Dur("dur", now.Sub(start)).Msg("cache")
	return h, true, nil
}

func callLoader[H Handle](load Loader[H], path string) (h H, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("loader panic: %v", r)
		}
	}()
	if load == nil {
		return h, errors.New("no loader supplied")
	}
	return load(path)
}

// Contains reports whether id is resident.
func (c *Cache[H]) Contains(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[id]
	return ok
}

// List returns the resident ids, sorted.
func (c *Cache[H]) List() []string {
	c.mu.Lock()
	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	c.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Entries returns a snapshot of the resident entries, sorted by id.
func (c *Cache[H]) Entries() []EntryInfo {
	c.mu.Lock()
	out := make([]EntryInfo, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.info())
	}
	c.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Size returns the number of resident entries.
func (c *Cache[H]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// UsedBytes returns the summed size of resident entries.
func (c *Cache[H]) UsedBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usedBytes
}

// Capacity returns the current bound.
func (c *Cache[H]) Capacity() Capacity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capacity
}

// Policy returns the eviction policy fixed at construction.
func (c *Cache[H]) Policy() Policy { return c.policy }

// Stats returns a copy of the counters.
func (c *Cache[H]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// ResetStats zeroes the counters.
func (c *Cache[H]) ResetStats() {
	c.mu.Lock()
	c.stats = Stats{}
	c.mu.Unlock()
}

// TakeReclaimed returns the memory released since the previous call and
// resets the tally.
func (c *Cache[H]) TakeReclaimed() Reclaimed {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := c.reclaimed
	c.reclaimed = Reclaimed{}
	return r
}

func (e *entry[H]) info() EntryInfo {
	return EntryInfo{
		ID:          e.id,
		SizeBytes:   e.size,
		LastUsed:    e.lastUsed,
		InsertedAt:  e.insertedAt,
		AccessCount: e.accessCount,
		Preloaded:   e.preloaded,
	}
}

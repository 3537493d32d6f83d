// Package gc aggregates reclamation statistics for memory the cache has
// already released, on a fixed cadence.
package gc

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

// Policy is a configuration tag. Every policy performs the same
// bookkeeping pass.
type Policy int

const (
	MarkAndSweep Policy = iota
	Generational
	ReferenceCount
)

func (p Policy) String() string {
	switch p {
	case MarkAndSweep:
		return "mark_and_sweep"
	case Generational:
		return "generational"
	case ReferenceCount:
		return "reference_count"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy accepts the String forms, case-insensitively.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mark_and_sweep", "":
		return MarkAndSweep, nil
	case "generational":
		return Generational, nil
	case "reference_count":
		return ReferenceCount, nil
	default:
		return MarkAndSweep, fmt.Errorf("unknown gc policy %q", s)
	}
}

// DefaultInterval applies when Config.Interval is unset.
const DefaultInterval = 30 * time.Second

// Config tunes a Collector.
type Config struct {
	Policy   Policy
	Interval time.Duration
	// Release runs during a collection that reclaimed at least one model,
	// e.g. debug.FreeOSMemory.
	Release func()
	Logger  *zerolog.Logger
}

// Stats are cumulative since construction.
type Stats struct {
	Policy              Policy
	Collections         uint64
	TotalFreedBytes     uint64
	// TotalFreedMB is TotalFreedBytes in whole MB.
	TotalFreedMB        uint64
	ModelsCollected     uint64
	AvgCollectionTimeMs float64
	LastCollection      time.Time
	NextCollection      time.Time
}

// Collector is safe for concurrent use.
type Collector struct {
	mu    sync.Mutex
	cfg   Config
	stats Stats
	log   zerolog.Logger
	now   func() time.Time
}

// New returns a Collector with defaults applied to unset fields.
func New(cfg Config) *Collector {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	c := &Collector{cfg: cfg, log: zerolog.Nop(), now: time.Now}
	c.stats.Policy = cfg.Policy
	if cfg.Logger != nil {
		c.log = cfg.Logger.With().Str("component", "gc").Str("policy", cfg.Policy.String()).Logger()
	}
	return c
}

// ShouldCollect is true before the first collection and once the
// scheduled next collection time has passed.
func (c *Collector) ShouldCollect() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats.NextCollection.IsZero() || !c.now().Before(c.stats.NextCollection)
}

// Collect records freedBytes and models reclaimed since the previous pass and
// schedules the next one. It does not touch the cache.
func (c *Collector) Collect(freedBytes uint64, models int) Stats {
	start := c.now()
	if models > 0 && c.cfg.Release != nil {
		c.cfg.Release()
	}
	end := c.now()
	elapsedMs := float64(end.Sub(start)) / float64(time.Millisecond)

	c.mu.Lock()
	c.stats.Collections++
	c.stats.TotalFreedBytes += freedBytes
	c.stats.TotalFreedMB = c.stats.TotalFreedBytes >> 20
	if models > 0 {
		c.stats.ModelsCollected += uint64(models)
	}
	c.stats.AvgCollectionTimeMs += (elapsedMs - c.stats.AvgCollectionTimeMs) / float64(c.stats.Collections)
	c.stats.LastCollection = end
	c.stats.NextCollection = end.Add(c.cfg.Interval)
	s := c.stats
	c.mu.Unlock()

	if models > 0 {
		c.log.Info().Str("event", "collect").Str("freed", humanize.IBytes(freedBytes)).Int("models", models).
			Float64("dur_ms", elapsedMs).Msg("gc")
	} else {
		c.log.Debug().Str("event", "collect").Msg("gc")
	}
	return s
}

// Stats returns a copy of the counters.
func (c *Collector) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

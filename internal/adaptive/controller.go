// Package adaptive resizes the cache's byte budget against live system
// memory pressure.
package adaptive

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"modelcache/pkg/types"
)

// Strategy decides how much of total system memory stays reserved for
// everything other than the cache.
type Strategy int

const (
	Conservative Strategy = iota
	Balanced
	Aggressive
)

// ReservedFraction is the share of total memory kept out of the cache.
func (s Strategy) ReservedFraction() float64 {
	switch s {
	case Conservative:
		return 0.6
	case Aggressive:
		return 0.2
	default:
		return 0.4
	}
}

func (s Strategy) String() string {
	switch s {
	case Conservative:
		return "conservative"
	case Balanced:
		return "balanced"
	case Aggressive:
		return "aggressive"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// ParseStrategy accepts conservative, balanced or aggressive in any case.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "conservative":
		return Conservative, nil
	case "balanced", "":
		return Balanced, nil
	case "aggressive":
		return Aggressive, nil
	default:
		return Balanced, fmt.Errorf("unknown adaptive strategy %q", s)
	}
}

// Defaults applied when the corresponding Config fields are unset.
const (
	DefaultMinCacheMB     = 1024
	DefaultMaxCacheMB     = 65536
	DefaultUpdateInterval = 30 * time.Second
)

// Config tunes a Controller.
type Config struct {
	Strategy       Strategy
	MinCacheMB     uint64
	MaxCacheMB     uint64
	UpdateInterval time.Duration
	AutoOptimize   bool
	// InitialMB is the target before the first optimization (MaxCacheMB when 0).
	InitialMB uint64
	Logger    *zerolog.Logger
}

// Stats summarizes applied optimizations.
type Stats struct {
	Strategy           Strategy
	AutoOptimize       bool
	TargetMB           uint64
	TotalOptimizations uint64
	SizeIncreases      uint64
	SizeDecreases      uint64
	// AverageSizeMB is the mean of every target applied so far.
	AverageSizeMB float64
	LastOptimized time.Time
}

// Controller is safe for concurrent use.
type Controller struct {
	mu       sync.Mutex
	cfg      Config
	targetMB uint64
	stats    Stats
	lastRun  time.Time
	log      zerolog.Logger
	now      func() time.Time
}

// New returns a Controller with defaults applied to unset fields.
func New(cfg Config) *Controller {
	if cfg.MinCacheMB == 0 {
		cfg.MinCacheMB = DefaultMinCacheMB
	}
	if cfg.MaxCacheMB == 0 {
		cfg.MaxCacheMB = DefaultMaxCacheMB
	}
	if cfg.MaxCacheMB < cfg.MinCacheMB {
		cfg.MaxCacheMB = cfg.MinCacheMB
	}
	if cfg.UpdateInterval <= 0 {
		cfg.UpdateInterval = DefaultUpdateInterval
	}
	c := &Controller{cfg: cfg, log: zerolog.Nop(), now: time.Now}
	c.targetMB = c.clamp(cfg.InitialMB)
	if cfg.InitialMB == 0 {
		c.targetMB = cfg.MaxCacheMB
	}
	if cfg.Logger != nil {
		c.log = cfg.Logger.With().Str("component", "adaptive").Str("strategy", cfg.Strategy.String()).Logger()
	}
	return c
}

func (c *Controller) clamp(mb uint64) uint64 {
	if mb < c.cfg.MinCacheMB {
		return c.cfg.MinCacheMB
	}
	if mb > c.cfg.MaxCacheMB {
		return c.cfg.MaxCacheMB
	}
	return mb
}

// CalculateOptimalSize returns the cache target in MB for mem: available
// memory minus the strategy's reserve, clamped to [MinCacheMB, MaxCacheMB].
func (c *Controller) CalculateOptimalSize(mem types.SystemMemory) uint64 {
	reserved := uint64(float64(mem.TotalMB) * c.cfg.Strategy.ReservedFraction())
	var free uint64
	if mem.AvailableMB > reserved {
		free = mem.AvailableMB - reserved
	}
	return c.clamp(free)
}

// Optimize recomputes the target from mem. It reports the new target and
// true only when the target changed; a disabled controller or an unchanged
// target yields false.
func (c *Controller) Optimize(mem types.SystemMemory) (uint64, bool, error) {
	if mem.TotalMB == 0 {
		return 0, false, errors.New("adaptive: memory snapshot has zero total")
	}
	if mem.AvailableMB > mem.TotalMB {
		return 0, false, fmt.Errorf("adaptive: available %d MB exceeds total %d MB", mem.AvailableMB, mem.TotalMB)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastRun = c.now()
	if !c.cfg.AutoOptimize {
		return 0, false, nil
	}
	optimal := c.CalculateOptimalSize(mem)
	if optimal == c.targetMB {
		return 0, false, nil
	}
	prev := c.targetMB
	c.targetMB = optimal
	if optimal > prev {
		c.stats.SizeIncreases++
	} else {
		c.stats.SizeDecreases++
	}
	c.stats.TotalOptimizations++
	n := float64(c.stats.TotalOptimizations)
	c.stats.AverageSizeMB += (float64(optimal) - c.stats.AverageSizeMB) / n
	c.stats.LastOptimized = c.lastRun
	c.log.Info().Str("event", "optimize").Uint64("from_mb", prev).Uint64("to_mb", optimal).
		Uint64("available_mb", mem.AvailableMB).Uint64("total_mb", mem.TotalMB).Msg("adaptive")
	return optimal, true, nil
}

// ShouldOptimize is true before the first Optimize and once UpdateInterval
// has elapsed since the last one.
func (c *Controller) ShouldOptimize() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRun.IsZero() || c.now().Sub(c.lastRun) >= c.cfg.UpdateInterval
}

// TargetMB returns the current target.
func (c *Controller) TargetMB() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.targetMB
}

// TargetBytes returns the current target in bytes.
func (c *Controller) TargetBytes() int64 { return int64(c.TargetMB()) << 20 }

// Stats returns a copy of the optimization counters.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Strategy = c.cfg.Strategy
	s.AutoOptimize = c.cfg.AutoOptimize
	s.TargetMB = c.targetMB
	return s
}

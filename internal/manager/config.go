package manager

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/rs/zerolog"

	"modelcache/internal/adaptive"
	"modelcache/internal/cache"
	"modelcache/internal/config"
	"modelcache/internal/engine"
	"modelcache/internal/gc"
	"modelcache/internal/pattern"
	"modelcache/internal/preload"
	"modelcache/internal/registry"
	"modelcache/internal/sysmem"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultTick = time.Second
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	ModelsDir    string
	DefaultModel string
	// Tick is the period of the maintenance loop run by Run.
	Tick time.Duration

	CachePolicy cache.Policy
	MaxModels   int
	MaxBytes    int64

	RegistryLimitBytes int64
	HashMemoSize       int

	HotThreshold   int
	AnalysisWindow time.Duration

	PreloadStrategy    preload.Strategy
	PreloadBatchSize   int
	PreloadDelay       time.Duration
	PreloadConcurrency int
	PreloadMaxQueue    int
	PreloadDisabled    bool

	AdaptiveStrategy adaptive.Strategy
	MinCacheMB       uint64
	MaxCacheMB       uint64
	UpdateInterval   time.Duration
	AutoOptimize     bool

	GCPolicy   gc.Policy
	GCInterval time.Duration
	// Release runs after a collection that reclaimed models.
	Release func()

	// Engine selects the backend used when Loader is nil.
	Engine engine.Config
	// Loader builds model handles, overriding Engine.
	Loader engine.LoadFunc
	// Memory feeds the adaptive controller; procfs with a static fallback when nil.
	Memory sysmem.Probe
	FS     billy.Filesystem
	Logger *zerolog.Logger
}

// FromConfig translates a validated file/flag configuration into a
// ManagerConfig. Loader, Memory and FS are left for the caller.
func FromConfig(c config.Config) (ManagerConfig, error) {
	policy, err := cache.ParsePolicy(c.Cache.Policy)
	if err != nil {
		return ManagerConfig{}, err
	}
	ps, err := preload.ParseStrategy(c.Preload.Strategy)
	if err != nil {
		return ManagerConfig{}, err
	}
	as, err := adaptive.ParseStrategy(c.Adaptive.Strategy)
	if err != nil {
		return ManagerConfig{}, err
	}
	gp, err := gc.ParsePolicy(c.GC.Policy)
	if err != nil {
		return ManagerConfig{}, err
	}
	if c.Cache.MaxModels < 0 || c.Cache.MaxMB < 0 {
		return ManagerConfig{}, fmt.Errorf("cache capacity must not be negative")
	}
	mc := ManagerConfig{
		ModelsDir:          c.ModelsDir,
		DefaultModel:       c.DefaultModel,
		Tick:               ms(c.TickMs),
		CachePolicy:        policy,
		MaxModels:          c.Cache.MaxModels,
		MaxBytes:           c.Cache.MaxMB << 20,
		RegistryLimitBytes: c.Registry.LimitMB << 20,
		HashMemoSize:       c.Registry.HashMemoSize,
		HotThreshold:       c.Pattern.HotThreshold,
		AnalysisWindow:     ms(c.Pattern.AnalysisWindowMs),
		PreloadStrategy:    ps,
		PreloadBatchSize:   c.Preload.BatchSize,
		PreloadDelay:       ms(c.Preload.DelayMs),
		PreloadConcurrency: c.Preload.Concurrency,
		PreloadMaxQueue:    c.Preload.MaxQueue,
		PreloadDisabled:    c.Preload.Enabled != nil && !*c.Preload.Enabled,
		AdaptiveStrategy:   as,
		MinCacheMB:         c.Adaptive.MinCacheMB,
		MaxCacheMB:         c.Adaptive.MaxCacheMB,
		UpdateInterval:     ms(c.Adaptive.UpdateIntervalMs),
		AutoOptimize:       c.Adaptive.AutoOptimize == nil || *c.Adaptive.AutoOptimize,
		GCPolicy:           gp,
		GCInterval:         ms(c.GC.IntervalMs),
		Engine: engine.Config{
			Backend:     c.Engine.Backend,
			ContextSize: c.Engine.ContextSize,
			Threads:     c.Engine.Threads,
		},
	}
	if c.GC.ReleaseOSMemory {
		mc.Release = debug.FreeOSMemory
	}
	return mc, nil
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// NewWithConfig constructs a Manager and all of its components from cfg.
func NewWithConfig(cfg ManagerConfig) (*Manager, error) {
	m := &Manager{
		modelsDir:    cfg.ModelsDir,
		defaultModel: cfg.DefaultModel,
		tick:         cfg.Tick,
		publisher:    noopPublisher{},
		log:          zerolog.Nop(),
		startTime:    time.Now(),
	}
	if m.tick <= 0 {
		m.tick = defaultTick
	}
	if cfg.Logger != nil {
		m.log = cfg.Logger.With().Str("component", "manager").Logger()
	}

	m.reg = registry.New(registry.Options{
		FS:           cfg.FS,
		LimitBytes:   cfg.RegistryLimitBytes,
		HashMemoSize: cfg.HashMemoSize,
		Logger:       cfg.Logger,
	})
	load := cfg.Loader
	if load == nil {
		var err error
		ec := cfg.Engine
		if ec.FS == nil {
			ec.FS = cfg.FS
		}
		if ec.Logger == nil {
			ec.Logger = cfg.Logger
		}
		load, err = engine.NewLoader(ec)
		if err != nil {
			return nil, err
		}
	}
	m.load = cache.Loader[engine.Model](load)

	c, err := cache.New[engine.Model](cache.Config{
		Policy:   cfg.CachePolicy,
		Capacity: cache.Capacity{MaxModels: cfg.MaxModels, MaxBytes: cfg.MaxBytes},
		Registry: m.reg,
		Logger:   cfg.Logger,
		OnEvict:  m.onEvict,
	})
	if err != nil {
		return nil, err
	}
	m.cache = c

	m.detector = pattern.New(pattern.Config{
		HotThreshold:   cfg.HotThreshold,
		AnalysisWindow: cfg.AnalysisWindow,
		Logger:         cfg.Logger,
	})
	m.sched = preload.New(m.reg, preload.Config{
		Strategy:    cfg.PreloadStrategy,
		BatchSize:   cfg.PreloadBatchSize,
		Delay:       cfg.PreloadDelay,
		Concurrency: cfg.PreloadConcurrency,
		MaxQueue:    cfg.PreloadMaxQueue,
		Disabled:    cfg.PreloadDisabled,
		Logger:      cfg.Logger,
	})
	minMB, maxMB := optimizerBounds(cfg)
	m.optimizer = adaptive.New(adaptive.Config{
		Strategy:       cfg.AdaptiveStrategy,
		MinCacheMB:     minMB,
		MaxCacheMB:     maxMB,
		UpdateInterval: cfg.UpdateInterval,
		AutoOptimize:   cfg.AutoOptimize,
		InitialMB:      uint64(cfg.MaxBytes >> 20),
		Logger:         cfg.Logger,
	})
	m.gc = gc.New(gc.Config{
		Policy:   cfg.GCPolicy,
		Interval: cfg.GCInterval,
		Release:  cfg.Release,
		Logger:   cfg.Logger,
	})
	m.memory = cfg.Memory
	if m.memory == nil {
		m.memory = sysmem.WithFallback(sysmem.NewProcProbe(""), sysmem.DefaultFallback, cfg.Logger)
	}
	return m, nil
}

// optimizerBounds caps the adaptive range at an explicit byte capacity, so
// the controller can shrink the cache below MaxBytes but never grow past it.
func optimizerBounds(cfg ManagerConfig) (minMB, maxMB uint64) {
	minMB, maxMB = cfg.MinCacheMB, cfg.MaxCacheMB
	if cfg.MaxBytes <= 0 {
		return minMB, maxMB
	}
	capMB := max(uint64(cfg.MaxBytes>>20), 1)
	if maxMB == 0 || maxMB > capMB {
		maxMB = capMB
	}
	if minMB == 0 {
		minMB = adaptive.DefaultMinCacheMB
	}
	if minMB > maxMB {
		minMB = maxMB
	}
	return minMB, maxMB
}

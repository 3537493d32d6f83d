package config

import (
	"fmt"
	"strings"
)

// Defaults applied by ApplyDefaults when the corresponding field is unset.
const (
	DefaultAddr             = ":8080"
	DefaultModelsDir        = "~/models/llm"
	DefaultLogLevel         = "info"
	DefaultTickMs           = 1000
	DefaultCachePolicy      = "lru"
	DefaultMaxModels        = 4
	DefaultHashMemoSize     = 1024
	DefaultHotThreshold     = 5
	DefaultAnalysisWindowMs = 60_000
	DefaultPreloadStrategy  = "frequency"
	DefaultBatchSize        = 2
	DefaultDelayMs          = 1000
	DefaultConcurrency      = 1
	DefaultMaxQueue         = 64
	DefaultAdaptiveStrategy = "balanced"
	DefaultMinCacheMB       = 1024
	DefaultMaxCacheMB       = 65536
	DefaultUpdateIntervalMs = 30_000
	DefaultGCPolicy         = "mark_and_sweep"
	DefaultGCIntervalMs     = 30_000
	DefaultEngineBackend    = "warm"
)

// ApplyDefaults fills every unset field with its package default.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.ModelsDir == "" {
		c.ModelsDir = DefaultModelsDir
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.TickMs <= 0 {
		c.TickMs = DefaultTickMs
	}
	if c.Cache.Policy == "" {
		c.Cache.Policy = DefaultCachePolicy
	}
	if c.Cache.MaxModels == 0 && c.Cache.MaxMB == 0 {
		c.Cache.MaxModels = DefaultMaxModels
	}
	if c.Registry.HashMemoSize <= 0 {
		c.Registry.HashMemoSize = DefaultHashMemoSize
	}
	if c.Pattern.HotThreshold <= 0 {
		c.Pattern.HotThreshold = DefaultHotThreshold
	}
	if c.Pattern.AnalysisWindowMs <= 0 {
		c.Pattern.AnalysisWindowMs = DefaultAnalysisWindowMs
	}
	if c.Preload.Enabled == nil {
		c.Preload.Enabled = boolPtr(true)
	}
	if c.Preload.Strategy == "" {
		c.Preload.Strategy = DefaultPreloadStrategy
	}
	if c.Preload.BatchSize <= 0 {
		c.Preload.BatchSize = DefaultBatchSize
	}
	if c.Preload.DelayMs < 0 {
		c.Preload.DelayMs = 0
	} else if c.Preload.DelayMs == 0 {
		c.Preload.DelayMs = DefaultDelayMs
	}
	if c.Preload.Concurrency <= 0 {
		c.Preload.Concurrency = DefaultConcurrency
	}
	if c.Preload.MaxQueue <= 0 {
		c.Preload.MaxQueue = DefaultMaxQueue
	}
	if c.Adaptive.Strategy == "" {
		c.Adaptive.Strategy = DefaultAdaptiveStrategy
	}
	if c.Adaptive.MinCacheMB == 0 {
		c.Adaptive.MinCacheMB = DefaultMinCacheMB
	}
	if c.Adaptive.MaxCacheMB == 0 {
		c.Adaptive.MaxCacheMB = DefaultMaxCacheMB
	}
	if c.Adaptive.UpdateIntervalMs <= 0 {
		c.Adaptive.UpdateIntervalMs = DefaultUpdateIntervalMs
	}
	if c.Adaptive.AutoOptimize == nil {
		c.Adaptive.AutoOptimize = boolPtr(true)
	}
	if c.GC.Policy == "" {
		c.GC.Policy = DefaultGCPolicy
	}
	if c.GC.IntervalMs <= 0 {
		c.GC.IntervalMs = DefaultGCIntervalMs
	}
	if c.Engine.Backend == "" {
		c.Engine.Backend = DefaultEngineBackend
	}
}

// Validate rejects unknown enum values and inverted ranges.
func (c Config) Validate() error {
	if !oneOf(c.Cache.Policy, "lru", "lfu", "fifo") {
		return fmt.Errorf("cache.policy: unknown policy %q", c.Cache.Policy)
	}
	if c.Cache.MaxModels < 0 || c.Cache.MaxMB < 0 {
		return fmt.Errorf("cache: capacity must not be negative")
	}
	if !oneOf(c.Preload.Strategy, "frequency", "recency", "size", "sequential") {
		return fmt.Errorf("preload.strategy: unknown strategy %q", c.Preload.Strategy)
	}
	if !oneOf(c.Adaptive.Strategy, "conservative", "balanced", "aggressive") {
		return fmt.Errorf("adaptive.strategy: unknown strategy %q", c.Adaptive.Strategy)
	}
	if c.Adaptive.MinCacheMB > c.Adaptive.MaxCacheMB {
		return fmt.Errorf("adaptive: min_cache_mb %d exceeds max_cache_mb %d", c.Adaptive.MinCacheMB, c.Adaptive.MaxCacheMB)
	}
	if !oneOf(c.GC.Policy, "mark_and_sweep", "generational", "reference_count") {
		return fmt.Errorf("gc.policy: unknown policy %q", c.GC.Policy)
	}
	if !oneOf(c.Engine.Backend, "warm", "llama") {
		return fmt.Errorf("engine.backend: unknown backend %q", c.Engine.Backend)
	}
	return nil
}

func oneOf(v string, allowed ...string) bool {
	v = strings.ToLower(v)
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func boolPtr(b bool) *bool { return &b }

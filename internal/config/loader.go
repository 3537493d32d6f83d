package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the daemon.
// Zero values mean "unspecified" and are replaced by ApplyDefaults.
type Config struct {
	Addr         string `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir    string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	DefaultModel string `json:"default_model" yaml:"default_model" toml:"default_model"`
	LogLevel     string `json:"log_level" yaml:"log_level" toml:"log_level"`
	// TickMs is the period of the background maintenance loop.
	TickMs int `json:"tick_ms" yaml:"tick_ms" toml:"tick_ms"`

	Cache    CacheConfig    `json:"cache" yaml:"cache" toml:"cache"`
	Registry RegistryConfig `json:"registry" yaml:"registry" toml:"registry"`
	Pattern  PatternConfig  `json:"pattern" yaml:"pattern" toml:"pattern"`
	Preload  PreloadConfig  `json:"preload" yaml:"preload" toml:"preload"`
	Adaptive AdaptiveConfig `json:"adaptive" yaml:"adaptive" toml:"adaptive"`
	GC       GCConfig       `json:"gc" yaml:"gc" toml:"gc"`
	Engine   EngineConfig   `json:"engine" yaml:"engine" toml:"engine"`
	HTTP     HTTPConfig     `json:"http" yaml:"http" toml:"http"`
}

// CacheConfig bounds the resident working set. MaxModels and MaxMB may be
// combined; zero leaves that axis unbounded.
type CacheConfig struct {
	Policy    string `json:"policy" yaml:"policy" toml:"policy"`
	MaxModels int    `json:"max_models" yaml:"max_models" toml:"max_models"`
	MaxMB     int64  `json:"max_mb" yaml:"max_mb" toml:"max_mb"`
}

type RegistryConfig struct {
	// LimitMB is the ceiling used by would-exceed-limit checks (0 = none).
	LimitMB      int64 `json:"limit_mb" yaml:"limit_mb" toml:"limit_mb"`
	HashMemoSize int   `json:"hash_memo_size" yaml:"hash_memo_size" toml:"hash_memo_size"`
}

type PatternConfig struct {
	HotThreshold     int `json:"hot_threshold" yaml:"hot_threshold" toml:"hot_threshold"`
	AnalysisWindowMs int `json:"analysis_window_ms" yaml:"analysis_window_ms" toml:"analysis_window_ms"`
}

type PreloadConfig struct {
	Enabled     *bool  `json:"enabled" yaml:"enabled" toml:"enabled"`
	Strategy    string `json:"strategy" yaml:"strategy" toml:"strategy"`
	BatchSize   int    `json:"batch_size" yaml:"batch_size" toml:"batch_size"`
	DelayMs     int    `json:"delay_ms" yaml:"delay_ms" toml:"delay_ms"`
	Concurrency int    `json:"concurrency" yaml:"concurrency" toml:"concurrency"`
	MaxQueue    int    `json:"max_queue" yaml:"max_queue" toml:"max_queue"`
}

type AdaptiveConfig struct {
	Strategy         string `json:"strategy" yaml:"strategy" toml:"strategy"`
	MinCacheMB       uint64 `json:"min_cache_mb" yaml:"min_cache_mb" toml:"min_cache_mb"`
	MaxCacheMB       uint64 `json:"max_cache_mb" yaml:"max_cache_mb" toml:"max_cache_mb"`
	UpdateIntervalMs int    `json:"update_interval_ms" yaml:"update_interval_ms" toml:"update_interval_ms"`
	AutoOptimize     *bool  `json:"auto_optimize" yaml:"auto_optimize" toml:"auto_optimize"`
}

type GCConfig struct {
	Policy     string `json:"policy" yaml:"policy" toml:"policy"`
	IntervalMs int    `json:"interval_ms" yaml:"interval_ms" toml:"interval_ms"`
	// ReleaseOSMemory returns freed heap to the OS after each collection.
	ReleaseOSMemory bool `json:"release_os_memory" yaml:"release_os_memory" toml:"release_os_memory"`
}

// EngineConfig selects how models are loaded: "warm" reads files into the
// page cache, "llama" loads them in-process (requires the llama build tag).
type EngineConfig struct {
	Backend     string `json:"backend" yaml:"backend" toml:"backend"`
	ContextSize int    `json:"context_size" yaml:"context_size" toml:"context_size"`
	Threads     int    `json:"threads" yaml:"threads" toml:"threads"`
}

type HTTPConfig struct {
	MaxBodyBytes int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	CORSEnabled  bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins  []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	CORSMethods  []string `json:"cors_methods" yaml:"cors_methods" toml:"cors_methods"`
	CORSHeaders  []string `json:"cors_headers" yaml:"cors_headers" toml:"cors_headers"`

	// AcquireTimeoutMs bounds POST /cache/{id}; 0 waits for the load.
	AcquireTimeoutMs int `json:"acquire_timeout_ms" yaml:"acquire_timeout_ms" toml:"acquire_timeout_ms"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

package types

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	// List of registered models.
	Models []Model `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: model not found: foo.gguf
	Error string `json:"error" example:"model not found: foo.gguf"`
	// HTTP status code.
	// example: 404
	Code int `json:"code" example:"404"`
}

// VerifyResponse is returned by GET /models/{id}/verify.
type VerifyResponse struct {
	// example: tinyllama-q4.gguf
	ModelID string `json:"model_id" example:"tinyllama-q4.gguf"`
	// False when the file is missing or its hash no longer matches.
	// example: true
	Valid bool `json:"valid" example:"true"`
}

// PreloadResponse is returned by POST /preload/{id}.
type PreloadResponse struct {
	// example: tinyllama-q4.gguf
	ModelID string `json:"model_id" example:"tinyllama-q4.gguf"`
	// Identifier of the queued preload task.
	TaskID string `json:"task_id"`
	// Number of tasks waiting after this one was queued.
	// example: 1
	QueueSize int `json:"queue_size" example:"1"`
}

// AcquireResponse is returned by POST /cache/{id}.
type AcquireResponse struct {
	// example: tinyllama-q4.gguf
	ModelID string `json:"model_id" example:"tinyllama-q4.gguf"`
	// example: 668788096
	SizeBytes int64 `json:"size_bytes" example:"668788096"`
}

// EntryStatus summarizes a resident cache entry for /status.
type EntryStatus struct {
	// example: tinyllama-q4.gguf
	ModelID string `json:"model_id" example:"tinyllama-q4.gguf"`
	// example: 668788096
	SizeBytes int64 `json:"size_bytes" example:"668788096"`
	// Last time this entry served an acquire (unix seconds).
	// example: 1700000000
	LastUsed int64 `json:"last_used_unix" example:"1700000000"`
	// Time the entry was inserted (unix seconds).
	// example: 1700000000
	InsertedAt int64 `json:"inserted_unix" example:"1700000000"`
	// example: 4
	AccessCount uint64 `json:"access_count" example:"4"`
	// True when the entry was inserted by the preload scheduler.
	// example: false
	Preloaded bool `json:"preloaded" example:"false"`
}

// CacheStats mirrors the cache counters.
type CacheStats struct {
	Hits      uint64  `json:"hits" example:"10"`
	Misses    uint64  `json:"misses" example:"2"`
	Evictions uint64  `json:"evictions" example:"1"`
	Preloads  uint64  `json:"preloads" example:"1"`
	HitRate   float64 `json:"hit_rate" example:"0.83"`
}

// PreloadStatus summarizes the preload scheduler.
type PreloadStatus struct {
	Enabled    bool     `json:"enabled" example:"true"`
	Strategy   string   `json:"strategy" example:"frequency"`
	Queued     int      `json:"queued" example:"0"`
	Pending    []string `json:"pending,omitempty"`
	Successful uint64   `json:"successful" example:"3"`
	Failed     uint64   `json:"failed" example:"0"`
	Skipped    uint64   `json:"skipped" example:"1"`
	Batches    uint64   `json:"batches" example:"2"`
}

// OptimizerStatus summarizes the adaptive capacity controller.
type OptimizerStatus struct {
	Strategy           string  `json:"strategy" example:"balanced"`
	AutoOptimize       bool    `json:"auto_optimize" example:"true"`
	TargetMB           uint64  `json:"target_mb" example:"8192"`
	TotalOptimizations uint64  `json:"total_optimizations" example:"4"`
	SizeIncreases      uint64  `json:"size_increases" example:"3"`
	SizeDecreases      uint64  `json:"size_decreases" example:"1"`
	AverageSizeMB      float64 `json:"average_size_mb" example:"7900.5"`
	LastOptimized      int64   `json:"last_optimized_unix,omitempty" example:"1700000000"`
}

// GCStatus summarizes the garbage collector.
type GCStatus struct {
	Policy              string  `json:"policy" example:"mark_and_sweep"`
	Collections         uint64  `json:"collections" example:"12"`
	TotalFreedBytes     uint64  `json:"total_freed_bytes" example:"2147483648"`
	TotalFreedMB        uint64  `json:"total_freed_mb" example:"2048"`
	ModelsCollected     uint64  `json:"models_collected" example:"2"`
	AvgCollectionTimeMs float64 `json:"avg_collection_time_ms" example:"0.4"`
	LastCollection      int64   `json:"last_collection_unix,omitempty" example:"1700000000"`
	NextCollection      int64   `json:"next_collection_unix,omitempty" example:"1700000030"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Eviction policy of the cache (lru, lfu, fifo).
	// example: lru
	Policy string `json:"policy" example:"lru"`
	// Maximum resident models; 0 means unbounded.
	// example: 4
	MaxModels int `json:"max_models" example:"4"`
	// Byte budget of the cache; 0 means unbounded.
	// example: 8589934592
	MaxBytes int64 `json:"max_bytes" example:"8589934592"`
	// Bytes currently held by resident entries.
	// example: 2147483648
	UsedBytes int64 `json:"used_bytes" example:"2147483648"`
	// Resident entries.
	Entries   []EntryStatus   `json:"entries"`
	Cache     CacheStats      `json:"cache"`
	Preload   PreloadStatus   `json:"preload"`
	Optimizer OptimizerStatus `json:"optimizer"`
	GC        GCStatus        `json:"gc"`
	// Models currently classified hot.
	HotModels []string `json:"hot_models,omitempty"`
	// Last error observed by the manager loop (if any).
	LastError string `json:"last_error,omitempty"`
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}

// DiscoverRequest is the optional body of POST /models/discover.
type DiscoverRequest struct {
	// Directory to scan; empty uses the configured models directory.
	// example: /srv/models
	Dir string `json:"dir,omitempty" example:"/srv/models"`
}

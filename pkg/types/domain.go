package types

import "time"

// Model represents a model file known to the registry.
type Model struct {
	// Stable identifier for the model (file name by default).
	// example: tinyllama-q4.gguf
	ID string `json:"id" example:"tinyllama-q4.gguf"`
	// Human-friendly name.
	// example: TinyLlama (Q4)
	Name string `json:"name" example:"TinyLlama (Q4)"`
	// Absolute path to the model file on disk.
	// example: /home/user/models/TinyLlama.Q4_K_M.gguf
	Path string `json:"path" example:"/home/user/models/TinyLlama.Q4_K_M.gguf"`
	// On-disk format derived from the extension (gguf, safetensors).
	// example: gguf
	Format string `json:"format,omitempty" example:"gguf"`
	// File size in bytes.
	// example: 668788096
	SizeBytes int64 `json:"size_bytes" example:"668788096"`
	// SHA-256 of the file contents, hex encoded.
	ContentHash string `json:"content_hash,omitempty"`
	// Last time the model was requested; nil when never accessed.
	LastAccessed *time.Time `json:"last_accessed,omitempty"`
	// Number of times the model was requested.
	// example: 3
	AccessCount uint64 `json:"access_count" example:"3"`
	// Whether the model is currently resident in the cache.
	// example: true
	Cached bool `json:"cached" example:"true"`
}

// SystemMemory is a coarse snapshot of host memory, in MB.
type SystemMemory struct {
	TotalMB     uint64 `json:"total_mb" example:"32768"`
	AvailableMB uint64 `json:"available_mb" example:"16384"`
	UsedMB      uint64 `json:"used_mb" example:"16384"`
}

// Package engine constructs model handles for the cache. The default backend
// warms model files into the OS page cache; builds tagged llama load them
// in-process through go-llama.cpp.
package engine

import (
	"fmt"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/rs/zerolog"

	"modelcache/internal/common/fsutil"
)

// Model is a loaded model owned by the cache.
type Model interface {
	// Unload releases the model's resources. It is called exactly once.
	Unload() error
	Path() string
	SizeBytes() int64
}

// LoadFunc builds a Model from a file path.
type LoadFunc func(path string) (Model, error)

const (
	BackendWarm  = "warm"
	BackendLlama = "llama"

	DefaultChunkBytes  = 4 << 20
	DefaultContextSize = 2048
)

type Config struct {
	// Backend selects the loader: "warm" (default) or "llama".
	Backend     string
	ContextSize int
	Threads     int
	// ChunkBytes is the read size used by the warm backend.
	ChunkBytes int
	FS         billy.Filesystem
	Logger     *zerolog.Logger
}

// NewLoader returns the LoadFunc for cfg.Backend.
func NewLoader(cfg Config) (LoadFunc, error) {
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = cfg.Logger.With().Str("component", "engine").Logger()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendWarm:
		fs := cfg.FS
		if fs == nil {
			fs = fsutil.OSFS()
		}
		w := NewWarmer(fs, cfg.ChunkBytes)
		w.log = log
		return w.Load, nil
	case BackendLlama:
		ctx := cfg.ContextSize
		if ctx <= 0 {
			ctx = DefaultContextSize
		}
		return newLlamaLoader(ctx, cfg.Threads, log), nil
	default:
		return nil, fmt.Errorf("unknown engine backend %q", cfg.Backend)
	}
}

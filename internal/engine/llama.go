//go:build llama

package engine

import (
	"errors"
	"os"
	"strings"
	"sync"

	llama "github.com/go-skynet/go-llama.cpp"
	"github.com/rs/zerolog"
)

// LlamaBuilt reports whether this binary links llama.cpp.
const LlamaBuilt = true

func newLlamaLoader(ctxSize, threads int, log zerolog.Logger) LoadFunc {
	return func(path string) (Model, error) {
		if strings.TrimSpace(path) == "" {
			return nil, errors.New("model path is empty")
		}
		fi, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		opts := []llama.ModelOption{llama.SetContext(ctxSize)}
		m, err := llama.New(path, opts...)
		if err != nil {
			return nil, err
		}
		log.Info().Str("event", "llama_load").Str("path", path).Int("ctx", ctxSize).Int("threads", threads).Msg("engine")
		return &llamaModel{model: m, path: path, size: fi.Size()}, nil
	}
}

type llamaModel struct {
	once  sync.Once
	model *llama.LLama
	path  string
	size  int64
}

func (m *llamaModel) Unload() error {
	m.once.Do(func() {
		if m.model != nil {
			m.model.Free()
			m.model = nil
		}
	})
	return nil
}

func (m *llamaModel) Path() string     { return m.path }
func (m *llamaModel) SizeBytes() int64 { return m.size }

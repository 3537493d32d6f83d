//go:build !llama

package engine

import (
	"github.com/rs/zerolog"

	"modelcache/internal/modelerr"
)

// LlamaBuilt reports whether this binary links llama.cpp.
const LlamaBuilt = false

func newLlamaLoader(_, _ int, _ zerolog.Logger) LoadFunc {
	return func(string) (Model, error) {
		return nil, modelerr.ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
	}
}

package engine

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelcache/internal/modelerr"
)

func TestWarmerReadsWholeFile(t *testing.T) {
	fs := memfs.New()
	data := make([]byte, 10_000)
	require.NoError(t, util.WriteFile(fs, "/models/a.gguf", data, 0o644))

	w := NewWarmer(fs, 1024)
	m, err := w.Load("/models/a.gguf")
	require.NoError(t, err)
	assert.Equal(t, "/models/a.gguf", m.Path())
	assert.Equal(t, int64(10_000), m.SizeBytes())

	require.NoError(t, m.Unload())
	assert.Error(t, m.Unload(), "second unload reports misuse")
}

func TestWarmerMissingFile(t *testing.T) {
	w := NewWarmer(memfs.New(), 0)
	_, err := w.Load("/nope.gguf")
	assert.Error(t, err)
}

func TestNewLoaderBackends(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "/m.gguf", []byte("weights"), 0o644))

	load, err := NewLoader(Config{FS: fs})
	require.NoError(t, err)
	m, err := load("/m.gguf")
	require.NoError(t, err)
	assert.Equal(t, int64(7), m.SizeBytes())

	_, err = NewLoader(Config{Backend: "onnx"})
	assert.Error(t, err)

	if !LlamaBuilt {
		load, err = NewLoader(Config{Backend: "llama"})
		require.NoError(t, err)
		_, err = load("/m.gguf")
		assert.True(t, modelerr.IsDependencyUnavailable(err))
	}
}

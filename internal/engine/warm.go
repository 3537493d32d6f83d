package engine

import (
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-git/go-billy/v5"
	"github.com/rs/zerolog"
)

// Warmer reads model files end to end so the OS page cache holds them when an
// inference runtime maps the file. Its handles own no process memory.
type Warmer struct {
	fs    billy.Filesystem
	chunk int
	log   zerolog.Logger
}

// NewWarmer returns a Warmer reading through fs in chunkBytes reads.
func NewWarmer(fs billy.Filesystem, chunkBytes int) *Warmer {
	return &Warmer{fs: fs, chunk: chunkBytes, log: zerolog.Nop()}
}

func (w *Warmer) Load(path string) (Model, error) {
	start := time.Now()
	f, err := w.fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	chunk := w.chunk
	if chunk <= 0 {
		chunk = DefaultChunkBytes
	}
	n, err := io.CopyBuffer(io.Discard, onlyReader{f}, make([]byte, chunk))
	if err != nil {
		return nil, err
	}
	took := time.Since(start)
	w.log.Info().Str("event", "warm").Str("path", path).Str("size", humanize.IBytes(uint64(n))).Dur("took", took).Msg("engine")
	return &warmModel{path: path, size: n}, nil
}

// onlyReader hides WriterTo so CopyBuffer uses the chunk buffer.
type onlyReader struct{ io.Reader }

type warmModel struct {
	path     string
	size     int64
	unloaded atomic.Bool
}

var errAlreadyUnloaded = errors.New("model already unloaded")

func (m *warmModel) Unload() error {
	if !m.unloaded.CompareAndSwap(false, true) {
		return errAlreadyUnloaded
	}
	return nil
}

func (m *warmModel) Path() string     { return m.path }
func (m *warmModel) SizeBytes() int64 { return m.size }

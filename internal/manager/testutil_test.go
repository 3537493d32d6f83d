package manager

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"modelcache/internal/engine"
	"modelcache/internal/sysmem"
)

// createModelFile creates a file of approximately sizeMB megabytes and returns its path.
func createModelFile(t *testing.T, dir, name string, sizeMB int) string {
	t.Helper()
	if sizeMB <= 0 {
		sizeMB = 1
	}
	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	if err != nil {
		t.Fatalf("create file: %v", err)
	}
	defer f.Close()
	// write sizeMB megabytes (use 1MiB blocks)
	block := make([]byte, 1024*1024)
	for i := 0; i < sizeMB; i++ {
		if _, err := f.Write(block); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := f.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}
	return p
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return c
}

// fakeModel is an engine.Model that records its unload.
type fakeModel struct {
	path     string
	unloaded atomic.Int32
}

func (f *fakeModel) Unload() error {
	f.unloaded.Add(1)
	return nil
}

func (f *fakeModel) Path() string     { return f.path }
func (f *fakeModel) SizeBytes() int64 { return 0 }

// fakeLoader counts loads; with gate set each load waits for it to close.
type fakeLoader struct {
	mu    sync.Mutex
	loads map[string]int
	gate  chan struct{}
	err   error
}

func newFakeLoader() *fakeLoader { return &fakeLoader{loads: map[string]int{}} }

func (l *fakeLoader) load(path string) (engine.Model, error) {
	if l.gate != nil {
		<-l.gate
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	l.loads[filepath.Base(path)]++
	return &fakeModel{path: path}, nil
}

func (l *fakeLoader) count(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads[name]
}

// newTestManager writes one 1MB model file per name into a temp dir,
// discovers them and returns the manager. cfg.Loader and cfg.Memory default
// to fakes.
func newTestManager(t *testing.T, cfg ManagerConfig, names ...string) (*Manager, *fakeLoader) {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		createModelFile(t, dir, n, 1)
	}
	fl := newFakeLoader()
	if cfg.Loader == nil {
		cfg.Loader = fl.load
	}
	if cfg.Memory == nil {
		cfg.Memory = sysmem.Static(sysmem.DefaultFallback)
	}
	cfg.ModelsDir = dir
	m, err := NewWithConfig(cfg)
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	if _, err := m.Discover(""); err != nil {
		t.Fatalf("discover: %v", err)
	}
	return m, fl
}

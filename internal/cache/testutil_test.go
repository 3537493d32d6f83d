package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"modelcache/pkg/types"
)

const mb = int64(1 << 20)

// fakeRegistry implements Registry over a fixed model set. The tie-break
// hints are returned exactly as configured.
type fakeRegistry struct {
	mu        sync.Mutex
	models    map[string]types.Model
	cached    map[string]bool
	oldest    []string
	leastUsed []string
}

func newFakeRegistry(sizes map[string]int64) *fakeRegistry {
	r := &fakeRegistry{models: make(map[string]types.Model), cached: make(map[string]bool)}
	for id, size := range sizes {
		r.models[id] = types.Model{ID: id, Path: "/models/" + id + ".gguf", SizeBytes: size}
	}
	return r
}

func (r *fakeRegistry) Get(id string) (types.Model, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.models[id]
	return m, ok
}

func (r *fakeRegistry) SetCached(id string, cached bool) {
	r.mu.Lock()
	r.cached[id] = cached
	r.mu.Unlock()
}

func (r *fakeRegistry) isCached(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cached[id]
}

func (r *fakeRegistry) OldestCached() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.oldest...)
}

func (r *fakeRegistry) LeastUsedCached() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.leastUsed...)
}

// fakeHandle records Unload calls.
type fakeHandle struct {
	path      string
	unloadErr error
	unloaded  atomic.Int32
}

func (h *fakeHandle) Unload() error {
	h.unloaded.Add(1)
	return h.unloadErr
}

// fakeLoader counts loads and remembers every handle it built.
type fakeLoader struct {
	mu        sync.Mutex
	loads     atomic.Int32
	err       error
	unloadErr error
	gate      chan struct{}
	started   chan string
	handles   map[string]*fakeHandle
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{handles: make(map[string]*fakeHandle)}
}

func (l *fakeLoader) load(path string) (*fakeHandle, error) {
	l.loads.Add(1)
	if l.started != nil {
		l.started <- path
	}
	if l.gate != nil {
		<-l.gate
	}
	if l.err != nil {
		return nil, l.err
	}
	h := &fakeHandle{path: path, unloadErr: l.unloadErr}
	l.mu.Lock()
	l.handles[path] = h
	l.mu.Unlock()
	return h, nil
}

func (l *fakeLoader) handle(id string) *fakeHandle {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handles["/models/"+id+".gguf"]
}

// stepClock advances by one second on every reading.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock { return &stepClock{t: time.Unix(1_700_000_000, 0)} }

func (c *stepClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

var errBoom = errors.New("boom")

func newTestCache(policy Policy, capacity Capacity, reg Registry) *Cache[*fakeHandle] {
	c, err := New[*fakeHandle](Config{Policy: policy, Capacity: capacity, Registry: reg})
	if err != nil {
		panic(err)
	}
	c.now = newStepClock().now
	return c
}

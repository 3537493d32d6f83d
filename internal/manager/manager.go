package manager

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"modelcache/internal/adaptive"
	"modelcache/internal/cache"
	"modelcache/internal/engine"
	"modelcache/internal/gc"
	"modelcache/internal/modelerr"
	"modelcache/internal/pattern"
	"modelcache/internal/preload"
	"modelcache/internal/registry"
	"modelcache/internal/sysmem"
	"modelcache/pkg/types"
)

// Manager owns one instance of every lifecycle component and wires them
// together. It is safe for concurrent use.
type Manager struct {
	mu           sync.RWMutex
	err          string
	closed       bool
	modelsDir    string
	defaultModel string
	tick         time.Duration
	startTime    time.Time

	reg       *registry.Registry
	cache     *cache.Cache[engine.Model]
	load      cache.Loader[engine.Model]
	detector  *pattern.Detector
	sched     *preload.Scheduler
	optimizer *adaptive.Controller
	gc        *gc.Collector
	memory    sysmem.Probe

	publisher EventPublisher
	log       zerolog.Logger
}

// SetEventPublisher replaces the event sink; nil restores the no-op sink.
func (m *Manager) SetEventPublisher(p EventPublisher) {
	if p == nil {
		p = noopPublisher{}
	}
	m.mu.Lock()
	m.publisher = p
	m.mu.Unlock()
}

func (m *Manager) publish(e Event) {
	m.mu.RLock()
	p := m.publisher
	m.mu.RUnlock()
	if e.Fields == nil {
		e.Fields = map[string]any{}
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	p.Publish(e)
}

// Ready reports whether the manager is open and knows at least one model.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	return !closed && m.reg.Len() > 0
}

// ListModels returns every registered model sorted by id.
func (m *Manager) ListModels() []types.Model {
	return m.reg.List()
}

// Discover scans dir (the configured models directory when empty) and
// registers every model file found.
func (m *Manager) Discover(dir string) ([]types.Model, error) {
	if dir == "" {
		dir = m.modelsDir
	}
	if dir == "" {
		return nil, errors.New("no models directory configured")
	}
	models, err := m.reg.Discover(dir)
	m.publish(Event{Name: "discover", Fields: map[string]any{"dir": dir, "models": len(models)}})
	if err != nil {
		m.setErr(err)
	}
	return models, err
}

// Register adds a single model file under id.
func (m *Manager) Register(id, path string) error {
	return m.reg.Register(id, path)
}

// Verify rechecks the content hash of id's file.
func (m *Manager) Verify(id string) (bool, error) {
	ok, err := m.reg.Verify(id)
	if err == nil && !ok {
		m.publish(Event{Name: "verify_failed", ModelID: id})
	}
	return ok, err
}

// Close unloads every resident model and stops accepting work.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()
	dropped := m.sched.ClearQueue()
	err := m.cache.Close()
	m.log.Info().Str("event", "close").Int("dropped_tasks", dropped).Msg("manager")
	m.publish(Event{Name: "close"})
	return err
}

func (m *Manager) isClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

func (m *Manager) setErr(err error) {
	m.mu.Lock()
	m.err = err.Error()
	m.mu.Unlock()
}

// ResolveID maps an empty id to the configured default model.
func (m *Manager) ResolveID(id string) (string, error) {
	if id != "" {
		return id, nil
	}
	if m.defaultModel == "" {
		return "", modelerr.ErrNotFound("(unspecified)")
	}
	return m.defaultModel, nil
}

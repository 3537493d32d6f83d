package manager

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event is one lifecycle notification: a name, the model it concerns (if
// any) and free-form fields.
//
// Names: acquire, acquire_failed, evict, preload_queued, unload_start,
// unload_done, plan, optimize, collect, discover, verify_failed, close.
type Event struct {
	Name    string
	ModelID string
	At      time.Time
	Fields  map[string]any
}

// EventPublisher receives events from the manager. Publish is called
// synchronously from the operation that raised the event, so it must be
// quick and must not call back into the Manager.
type EventPublisher interface {
	Publish(Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// MemoryPublisher keeps every event in memory, for tests and debugging.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher { return &MemoryPublisher{} }

func (p *MemoryPublisher) Publish(e Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

// Events returns a copy of the events published so far.
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

// Names returns the event names in publish order.
func (p *MemoryPublisher) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Name
	}
	return out
}

// LogPublisher writes every event as one structured log line.
type LogPublisher struct {
	log   zerolog.Logger
	level zerolog.Level
}

// NewLogPublisher logs events on l at level.
func NewLogPublisher(l zerolog.Logger, level zerolog.Level) *LogPublisher {
	return &LogPublisher{log: l.With().Str("component", "events").Logger(), level: level}
}

func (p *LogPublisher) Publish(e Event) {
	ev := p.log.WithLevel(p.level).Str("event", e.Name)
	if e.ModelID != "" {
		ev = ev.Str("model", e.ModelID)
	}
	ev.Fields(e.Fields).Msg("manager event")
}

// Publishers fans each event out to every publisher in order.
type Publishers []EventPublisher

func (ps Publishers) Publish(e Event) {
	for _, p := range ps {
		p.Publish(e)
	}
}

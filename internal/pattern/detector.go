// Package pattern tracks per-model access history and classifies models as
// hot or cold for the preload scheduler.
package pattern

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Defaults applied when the corresponding Config fields are unset.
const (
	DefaultHotThreshold   = 5
	DefaultAnalysisWindow = 60 * time.Second

	maxPriority = 100
)

// Config tunes a Detector.
type Config struct {
	// HotThreshold is the access count at which a model counts as hot.
	HotThreshold int
	// AnalysisWindow is the minimum spacing between Analyze passes.
	AnalysisWindow time.Duration
	Logger         *zerolog.Logger
}

// Usage is the access history of one model.
type Usage struct {
	ModelID     string
	AccessCount uint64
	FirstAccess time.Time
	LastAccess  time.Time
	// AvgInterval is the running mean of the gaps between accesses.
	AvgInterval time.Duration
}

// Result ranks one model in an Analyze pass.
type Result struct {
	ModelID       string
	AccessCount   uint64
	ShouldPreload bool
	Priority      int
	Reason        string
}

// Detector is safe for concurrent use.
type Detector struct {
	mu           sync.Mutex
	threshold    int
	window       time.Duration
	patterns     map[string]*Usage
	lastAnalysis time.Time
	log          zerolog.Logger
	now          func() time.Time
}

// New returns a Detector with defaults applied to unset fields.
func New(cfg Config) *Detector {
	d := &Detector{
		threshold: cfg.HotThreshold,
		window:    cfg.AnalysisWindow,
		patterns:  make(map[string]*Usage),
		log:       zerolog.Nop(),
		now:       time.Now,
	}
	if d.threshold <= 0 {
		d.threshold = DefaultHotThreshold
	}
	if d.window <= 0 {
		d.window = DefaultAnalysisWindow
	}
	if cfg.Logger != nil {
		d.log = cfg.Logger.With().Str("component", "pattern").Logger()
	}
	return d
}

// Threshold returns the configured hot threshold.
func (d *Detector) Threshold() int { return d.threshold }

// RecordAccess notes one access to id.
func (d *Detector) RecordAccess(id string) {
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.patterns[id]
	if !ok {
		d.patterns[id] = &Usage{ModelID: id, AccessCount: 1, FirstAccess: now, LastAccess: now}
		return
	}
	gap := now.Sub(u.LastAccess)
	if gap < 0 {
		gap = 0
	}
	// AccessCount accesses so far means AccessCount gaps once this one lands.
	n := time.Duration(u.AccessCount)
	u.AvgInterval += (gap - u.AvgInterval) / n
	u.AccessCount++
	u.LastAccess = now
}

// Analyze ranks every tracked model, highest priority first, and marks the
// analysis time consulted by ShouldAnalyze.
func (d *Detector) Analyze() []Result {
	d.mu.Lock()
	out := make([]Result, 0, len(d.patterns))
	for id, u := range d.patterns {
		out = append(out, d.resultFor(id, u))
	}
	d.lastAnalysis = d.now()
	d.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ModelID < out[j].ModelID
	})
	d.log.Debug().Str("event", "analyze").Int("models", len(out)).Msg("pattern")
	return out
}

func (d *Detector) resultFor(id string, u *Usage) Result {
	priority := maxPriority
	if u.AccessCount < maxPriority {
		priority = int(u.AccessCount)
	}
	hot := u.AccessCount >= uint64(d.threshold)
	var reason string
	if hot {
		reason = fmt.Sprintf("hot: %d accesses (threshold %d), avg interval %s", u.AccessCount, d.threshold, u.AvgInterval.Round(time.Millisecond))
	} else {
		reason = fmt.Sprintf("cold: %d accesses (threshold %d)", u.AccessCount, d.threshold)
	}
	return Result{ModelID: id, AccessCount: u.AccessCount, ShouldPreload: hot, Priority: priority, Reason: reason}
}

// IsHot reports whether id has at least threshold recorded accesses.
func (d *Detector) IsHot(id string, threshold int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.patterns[id]
	return ok && threshold >= 0 && u.AccessCount >= uint64(threshold)
}

// HotModels returns the ids at or above the configured threshold, sorted.
func (d *Detector) HotModels() []string { return d.partition(true) }

// ColdModels returns the tracked ids below the configured threshold, sorted.
func (d *Detector) ColdModels() []string { return d.partition(false) }

func (d *Detector) partition(hot bool) []string {
	d.mu.Lock()
	var ids []string
	for id, u := range d.patterns {
		if (u.AccessCount >= uint64(d.threshold)) == hot {
			ids = append(ids, id)
		}
	}
	d.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// ShouldAnalyze is true before the first Analyze and once the analysis
// window has elapsed since the last one.
func (d *Detector) ShouldAnalyze() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastAnalysis.IsZero() || d.now().Sub(d.lastAnalysis) >= d.window
}

// Get returns a copy of id's usage.
func (d *Detector) Get(id string) (Usage, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.patterns[id]
	if !ok {
		return Usage{}, false
	}
	return *u, true
}

// Len returns the number of tracked models.
func (d *Detector) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.patterns)
}

// Remove forgets id.
func (d *Detector) Remove(id string) {
	d.mu.Lock()
	delete(d.patterns, id)
	d.mu.Unlock()
}

// Clear forgets every model and the last analysis time.
func (d *Detector) Clear() {
	d.mu.Lock()
	d.patterns = make(map[string]*Usage)
	d.lastAnalysis = time.Time{}
	d.mu.Unlock()
}

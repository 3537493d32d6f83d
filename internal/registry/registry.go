// Package registry keeps the catalog of model files known to the daemon:
// where each lives, how large it is, its content hash and how often it has
// been requested. The registry never loads models; the cache mirrors its
// residency into the Cached flag through SetCached.
package registry

import (
	"errors"
	"io/fs"
	"sort"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/rs/zerolog"

	"modelcache/internal/common/fsutil"
	"modelcache/internal/modelerr"
	"modelcache/pkg/types"
)

const defaultHashMemoSize = 1024

// Options configures a Registry.
type Options struct {
	// FS is the filesystem model paths resolve against (host filesystem when nil).
	FS billy.Filesystem
	// LimitBytes is the ceiling for WouldExceedLimit; 0 disables the check.
	LimitBytes int64
	// HashMemoSize bounds the content hash memo used by Register.
	HashMemoSize int
	Logger       *zerolog.Logger
}

type record struct {
	meta         types.Model
	registeredAt time.Time
	seq          uint64
}

// Registry is safe for concurrent use. Hashing runs without the lock held.
type Registry struct {
	mu         sync.Mutex
	fs         billy.Filesystem
	scanner    *Scanner
	models     map[string]*record
	limitBytes int64
	seq        uint64
	memo       *hashMemo
	log        zerolog.Logger
	now        func() time.Time
}

// New constructs an empty Registry.
func New(opts Options) *Registry {
	r := &Registry{
		fs:         opts.FS,
		models:     make(map[string]*record),
		limitBytes: opts.LimitBytes,
		log:        zerolog.Nop(),
		now:        time.Now,
	}
	if r.fs == nil {
		r.fs = fsutil.OSFS()
	}
	if opts.Logger != nil {
		r.log = opts.Logger.With().Str("component", "registry").Logger()
	}
	r.scanner = NewScanner(r.fs)
	size := opts.HashMemoSize
	if size <= 0 {
		size = defaultHashMemoSize
	}
	memo, err := newHashMemo(size)
	if err != nil {
		r.log.Warn().Err(err).Msg("hash memo disabled")
	} else {
		r.memo = memo
	}
	return r
}

// Register records the model at path under id, computing its size and
// content hash. Registering an existing id again overwrites path, size and
// hash; usage counters and the cached flag are kept.
func (r *Registry) Register(id, path string) error {
	fi, err := r.fs.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return modelerr.ErrNotFound(path)
		}
		return modelerr.ErrIO("stat", path, err)
	}
	if fi.IsDir() {
		return modelerr.ErrIO("register", path, errors.New("is a directory"))
	}
	hash, ok := r.memo.lookup(path, fi.Size(), fi.ModTime())
	if !ok {
		h, _, err := fsutil.HashFile(r.fs, path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return modelerr.ErrNotFound(path)
			}
			return modelerr.ErrIO("hash", path, err)
		}
		hash = h
		r.memo.store(path, fi.Size(), fi.ModTime(), hash)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	rec, exists := r.models[id]
	if !exists {
		r.seq++
		rec = &record{registeredAt: r.now(), seq: r.seq}
		r.models[id] = rec
	}
	rec.meta.ID = id
	if rec.meta.Name == "" {
		rec.meta.Name = id
	}
	rec.meta.Path = path
	rec.meta.Format = fsutil.ModelFormat(path)
	rec.meta.SizeBytes = fi.Size()
	rec.meta.ContentHash = hash
	r.log.Debug().Str("event", "register").Str("model", id).Int64("size_bytes", fi.Size()).Bool("update", exists).Msg("registry")
	return nil
}

// Discover scans dir for model files and registers each one under its file
// name. Files that fail to register are reported in the joined error; the
// rest are still registered and returned.
func (r *Registry) Discover(dir string) ([]types.Model, error) {
	found, err := r.scanner.Scan(dir)
	if err != nil {
		return nil, modelerr.ErrIO("scan", dir, err)
	}
	var errs []error
	out := make([]types.Model, 0, len(found))
	for _, m := range found {
		if err := r.Register(m.ID, m.Path); err != nil {
			errs = append(errs, err)
			continue
		}
		if got, ok := r.Get(m.ID); ok {
			out = append(out, got)
		}
	}
	r.log.Info().Str("event", "discover").Str("dir", dir).Int("models", len(out)).Int("failed", len(errs)).Msg("registry")
	return out, errors.Join(errs...)
}

// Touch records one access to id.
func (r *Registry) Touch(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.models[id]
	if !ok {
		return modelerr.ErrNotFound(id)
	}
	now := r.now()
	rec.meta.AccessCount++
	rec.meta.LastAccessed = &now
	return nil
}

// Verify recomputes the content hash of id's file. A missing file or a
// changed hash yields false with a nil error; other I/O failures are errors.
func (r *Registry) Verify(id string) (bool, error) {
	r.mu.Lock()
	rec, ok := r.models[id]
	var path, want string
	if ok {
		path, want = rec.meta.Path, rec.meta.ContentHash
	}
	r.mu.Unlock()
	if !ok {
		return false, modelerr.ErrNotFound(id)
	}
	got, _, err := fsutil.HashFile(r.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			r.memo.forget(path)
			r.log.Warn().Str("event", "verify").Str("model", id).Str("path", path).Msg("model file missing")
			return false, nil
		}
		return false, modelerr.ErrIO("hash", path, err)
	}
	if got != want {
		r.memo.forget(path)
		r.log.Warn().Str("event", "verify").Str("model", id).Str("want", want).Str("got", got).Msg("content hash mismatch")
		return false, nil
	}
	return true, nil
}

// WouldExceedLimit reports whether adding additional bytes to the models
// currently flagged cached would pass the configured ceiling.
func (r *Registry) WouldExceedLimit(additional int64) bool {
	if r.limitBytes <= 0 {
		return false
	}
	return r.CachedBytes()+additional > r.limitBytes
}

// LimitBytes is the configured ceiling; 0 means unlimited.
func (r *Registry) LimitBytes() int64 { return r.limitBytes }

// CachedBytes sums the size of every model flagged cached.
func (r *Registry) CachedBytes() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total int64
	for _, rec := range r.models {
		if rec.meta.Cached {
			total += rec.meta.SizeBytes
		}
	}
	return total
}

// OldestCached returns cached model ids, longest since last access first.
// Models never accessed age from their registration time.
func (r *Registry) OldestCached() []string {
	now := r.now()
	return r.cachedSorted(func(a, b *record) bool {
		aa, ab := a.age(now), b.age(now)
		if aa != ab {
			return aa > ab
		}
		return a.seq < b.seq
	})
}

// LeastUsedCached returns cached model ids, fewest accesses first.
func (r *Registry) LeastUsedCached() []string {
	return r.cachedSorted(func(a, b *record) bool {
		if a.meta.AccessCount != b.meta.AccessCount {
			return a.meta.AccessCount < b.meta.AccessCount
		}
		return a.seq < b.seq
	})
}

func (r *Registry) cachedSorted(less func(a, b *record) bool) []string {
	r.mu.Lock()
	recs := make([]*record, 0, len(r.models))
	for _, rec := range r.models {
		if rec.meta.Cached {
			cp := *rec
			recs = append(recs, &cp)
		}
	}
	r.mu.Unlock()
	sort.Slice(recs, func(i, j int) bool { return less(recs[i], recs[j]) })
	ids := make([]string, len(recs))
	for i, rec := range recs {
		ids[i] = rec.meta.ID
	}
	return ids
}

// SetCached mirrors cache membership for id. Unknown ids are ignored.
func (r *Registry) SetCached(id string, cached bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.models[id]; ok {
		rec.meta.Cached = cached
	}
}

// Get returns a copy of id's metadata.
func (r *Registry) Get(id string) (types.Model, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.models[id]
	if !ok {
		return types.Model{}, false
	}
	return rec.snapshot(), true
}

// AgeSeconds returns the whole seconds since id was last accessed, or since
// registration when it never was.
func (r *Registry) AgeSeconds(id string) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.models[id]
	if !ok {
		return 0, false
	}
	return int64(rec.age(r.now()) / time.Second), true
}

// List returns all models sorted by id.
func (r *Registry) List() []types.Model {
	r.mu.Lock()
	out := make([]types.Model, 0, len(r.models))
	for _, rec := range r.models {
		out = append(out, rec.snapshot())
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of registered models.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.models)
}

// Remove forgets id and reports whether it was registered.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	rec, ok := r.models[id]
	if ok {
		delete(r.models, id)
	}
	r.mu.Unlock()
	if ok {
		r.memo.forget(rec.meta.Path)
	}
	return ok
}

// Clear forgets every model.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.models = make(map[string]*record)
	r.mu.Unlock()
	r.memo.reset()
}

func (rec *record) age(now time.Time) time.Duration {
	since := rec.registeredAt
	if rec.meta.LastAccessed != nil {
		since = *rec.meta.LastAccessed
	}
	if d := now.Sub(since); d > 0 {
		return d
	}
	return 0
}

func (rec *record) snapshot() types.Model {
	m := rec.meta
	if m.LastAccessed != nil {
		t := *m.LastAccessed
		m.LastAccessed = &t
	}
	return m
}

package registry

import (
	"time"

	"github.com/maypok86/otter/v2"
)

// memoEntry remembers the digest of a file as of a given size and mtime.
type memoEntry struct {
	size    int64
	modTime time.Time
	hash    string
}

// hashMemo is a bounded path -> digest memo. A lookup only hits when the
// file's size and mtime still match what was hashed.
type hashMemo struct {
	c *otter.Cache[string, memoEntry]
}

func newHashMemo(size int) (*hashMemo, error) {
	c, err := otter.New(&otter.Options[string, memoEntry]{MaximumSize: size})
	if err != nil {
		return nil, err
	}
	return &hashMemo{c: c}, nil
}

func (m *hashMemo) lookup(path string, size int64, modTime time.Time) (string, bool) {
	if m == nil {
		return "", false
	}
	e, ok := m.c.GetIfPresent(path)
	if !ok || e.size != size || !e.modTime.Equal(modTime) {
		return "", false
	}
	return e.hash, true
}

func (m *hashMemo) store(path string, size int64, modTime time.Time, hash string) {
	if m == nil {
		return
	}
	m.c.Set(path, memoEntry{size: size, modTime: modTime, hash: hash})
}

func (m *hashMemo) forget(path string) {
	if m == nil {
		return
	}
	m.c.Invalidate(path)
}

func (m *hashMemo) reset() {
	if m == nil {
		return
	}
	m.c.InvalidateAll()
}

package cache

import (
	"fmt"
	"strings"
)

// Policy selects the eviction victim when the cache is full.
type Policy int

const (
	// LRU evicts the entry with the oldest last use.
	LRU Policy = iota
	// LFU evicts the entry with the fewest accesses.
	LFU
	// FIFO evicts the entry inserted first, regardless of later use.
	FIFO
)

func (p Policy) String() string {
	switch p {
	case LRU:
		return "lru"
	case LFU:
		return "lfu"
	case FIFO:
		return "fifo"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy accepts lru, lfu or fifo in any case.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lru", "":
		return LRU, nil
	case "lfu":
		return LFU, nil
	case "fifo":
		return FIFO, nil
	default:
		return LRU, fmt.Errorf("unknown eviction policy %q", s)
	}
}

// compare reports whether a is a strictly better victim than b under p, and
// whether the two are tied.
func (p Policy) compare(a, b *entryState) (better, tied bool) {
	switch p {
	case LFU:
		if a.accessCount != b.accessCount {
			return a.accessCount < b.accessCount, false
		}
		return false, true
	case FIFO:
		return a.seq < b.seq, false
	default:
		if !a.lastUsed.Equal(b.lastUsed) {
			return a.lastUsed.Before(b.lastUsed), false
		}
		return false, true
	}
}

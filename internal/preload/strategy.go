package preload

import (
	"fmt"
	"strings"

	"modelcache/pkg/types"
)

// Strategy decides the priority of a queued preload.
type Strategy int

const (
	// Frequency favors models requested most often: access_count * 10.
	Frequency Strategy = iota
	// Recency favors recently requested models: 1000 - age in seconds, floored at 0.
	Recency
	// Size favors small models, which warm fastest: 5000 - size in MB.
	Size
	// Sequential preloads in queue order.
	Sequential
)

func (s Strategy) String() string {
	switch s {
	case Frequency:
		return "frequency"
	case Recency:
		return "recency"
	case Size:
		return "size"
	case Sequential:
		return "sequential"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// ParseStrategy accepts the String forms, case-insensitively.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "frequency", "":
		return Frequency, nil
	case "recency":
		return Recency, nil
	case "size":
		return Size, nil
	case "sequential":
		return Sequential, nil
	default:
		return Frequency, fmt.Errorf("unknown preload strategy %q", s)
	}
}

const (
	recencyHorizon = 1000
	sizeHorizonMB  = 5000
)

// priority computes the strategy's score for m. queueLen is the number of
// tasks already waiting.
func (s Strategy) priority(m types.Model, ageSeconds int64, queueLen int) int64 {
	switch s {
	case Recency:
		p := recencyHorizon - ageSeconds
		if p < 0 {
			return 0
		}
		if p > recencyHorizon {
			return recencyHorizon
		}
		return p
	case Size:
		return sizeHorizonMB - m.SizeBytes/(1<<20)
	case Sequential:
		return int64(queueLen)
	default:
		return int64(m.AccessCount) * 10
	}
}

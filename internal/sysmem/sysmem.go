// Package sysmem reports coarse host memory figures for the adaptive
// capacity controller.
package sysmem

import (
	"errors"
	"sync"

	"github.com/prometheus/procfs"
	"github.com/rs/zerolog"

	"modelcache/pkg/types"
)

// Probe returns a memory snapshot.
type Probe interface {
	Snapshot() (types.SystemMemory, error)
}

// DefaultFallback is used when /proc/meminfo cannot be read.
var DefaultFallback = types.SystemMemory{TotalMB: 16384, AvailableMB: 8192, UsedMB: 8192}

// ProcProbe reads meminfo from a procfs mount.
type ProcProbe struct {
	fs  procfs.FS
	err error
}

// NewProcProbe opens the procfs mounted at mountPoint ("" for /proc).
// Errors surface from Snapshot so a probe can always be constructed.
func NewProcProbe(mountPoint string) *ProcProbe {
	if mountPoint == "" {
		mountPoint = procfs.DefaultMountPoint
	}
	fs, err := procfs.NewFS(mountPoint)
	return &ProcProbe{fs: fs, err: err}
}

// Snapshot converts MemTotal and MemAvailable to MB. Kernels without
// MemAvailable report MemFree instead.
func (p *ProcProbe) Snapshot() (types.SystemMemory, error) {
	if p.err != nil {
		return types.SystemMemory{}, p.err
	}
	mi, err := p.fs.Meminfo()
	if err != nil {
		return types.SystemMemory{}, err
	}
	if mi.MemTotal == nil {
		return types.SystemMemory{}, errors.New("meminfo: MemTotal missing")
	}
	total := *mi.MemTotal / 1024
	var avail uint64
	switch {
	case mi.MemAvailable != nil:
		avail = *mi.MemAvailable / 1024
	case mi.MemFree != nil:
		avail = *mi.MemFree / 1024
	default:
		return types.SystemMemory{}, errors.New("meminfo: MemAvailable and MemFree missing")
	}
	if avail > total {
		avail = total
	}
	return types.SystemMemory{TotalMB: total, AvailableMB: avail, UsedMB: total - avail}, nil
}

// Static always returns the same snapshot.
type Static types.SystemMemory

func (s Static) Snapshot() (types.SystemMemory, error) { return types.SystemMemory(s), nil }

// fallbackProbe substitutes a fixed snapshot when the wrapped probe fails.
type fallbackProbe struct {
	probe    Probe
	fallback types.SystemMemory
	log      zerolog.Logger
	warned   sync.Once
}

// WithFallback wraps p so that failures yield fallback instead of an error.
// The first failure is logged.
func WithFallback(p Probe, fallback types.SystemMemory, log *zerolog.Logger) Probe {
	fp := &fallbackProbe{probe: p, fallback: fallback, log: zerolog.Nop()}
	if log != nil {
		fp.log = *log
	}
	return fp
}

func (f *fallbackProbe) Snapshot() (types.SystemMemory, error) {
	mem, err := f.probe.Snapshot()
	if err == nil {
		return mem, nil
	}
	f.warned.Do(func() {
		f.log.Warn().Err(err).Uint64("total_mb", f.fallback.TotalMB).Uint64("available_mb", f.fallback.AvailableMB).
			Msg("memory probe failed, using static snapshot")
	})
	return f.fallback, nil
}

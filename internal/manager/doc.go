// Package manager is the composition root of the model lifecycle: it builds
// the registry, cache, pattern detector, preload scheduler, adaptive
// controller and garbage collector from one ManagerConfig and coordinates
// them. It is structured into small files by concern:
//
//   - manager.go: core Manager type, simple getters, Close.
//   - config.go: ManagerConfig, FromConfig and NewWithConfig (applies defaults).
//   - acquire.go: Acquire/Preload entry points and the scheduler target.
//   - unload.go: explicit unload and the cache eviction hook.
//   - loop.go: Run and the per-tick maintenance pass.
//   - status_report.go: Status reporting for /status.
//   - events.go: lifecycle events and the memory/log publishers.
//
// The maintenance pass runs, in order: preload planning from usage patterns
// (once per analysis window), one preload batch, adaptive resizing (once per
// update interval) and garbage collection bookkeeping (once per GC interval).
//
// External packages should use public methods only (NewWithConfig, Acquire,
// Preload, Unload, Status, Run, Close). Components are not exposed.
package manager

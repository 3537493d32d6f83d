package manager

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"modelcache/internal/adaptive"
	"modelcache/internal/cache"
	"modelcache/internal/config"
	"modelcache/internal/modelerr"
	"modelcache/internal/preload"
	"modelcache/internal/sysmem"
)

func TestAcquireLoadsOnceAndRecordsAccess(t *testing.T) {
	m, fl := newTestManager(t, ManagerConfig{}, "a.gguf")
	for i := 0; i < 2; i++ {
		h, err := m.Acquire(testCtx(t), "a.gguf")
		if err != nil {
			t.Fatalf("Acquire #%d: %v", i, err)
		}
		if filepath.Base(h.Path()) != "a.gguf" {
			t.Fatalf("unexpected handle path %q", h.Path())
		}
	}
	if got := fl.count("a.gguf"); got != 1 {
		t.Fatalf("expected one load, got %d", got)
	}
	mdl, ok := m.reg.Get("a.gguf")
	if !ok || mdl.AccessCount != 2 || !mdl.Cached {
		t.Fatalf("registry not updated: %+v", mdl)
	}
	if u, ok := m.detector.Get("a.gguf"); !ok || u.AccessCount != 2 {
		t.Fatalf("detector not updated: %+v", u)
	}
	st := m.Status()
	if st.Cache.Hits != 1 || st.Cache.Misses != 1 {
		t.Fatalf("expected 1 hit and 1 miss, got %+v", st.Cache)
	}
	if len(st.Entries) != 1 || st.Entries[0].ModelID != "a.gguf" {
		t.Fatalf("unexpected entries: %+v", st.Entries)
	}
}

func TestAcquireDefaultAndUnknown(t *testing.T) {
	m, _ := newTestManager(t, ManagerConfig{DefaultModel: "d.gguf"}, "d.gguf")
	h, err := m.Acquire(testCtx(t), "")
	if err != nil {
		t.Fatalf("Acquire default: %v", err)
	}
	if filepath.Base(h.Path()) != "d.gguf" {
		t.Fatalf("default model not used: %q", h.Path())
	}
	if _, err := m.Acquire(testCtx(t), "ghost.gguf"); !modelerr.IsNotFound(err) {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if id, err := m.ResolveID(""); err != nil || id != "d.gguf" {
		t.Fatalf("ResolveID default: %q %v", id, err)
	}
	if id, _ := m.ResolveID("x"); id != "x" {
		t.Fatalf("ResolveID must keep explicit ids, got %q", id)
	}

	noDefault, _ := newTestManager(t, ManagerConfig{}, "x.gguf")
	if _, err := noDefault.Acquire(testCtx(t), ""); !modelerr.IsNotFound(err) {
		t.Fatalf("expected NotFound without default, got %v", err)
	}
	if _, err := noDefault.ResolveID(""); !modelerr.IsNotFound(err) {
		t.Fatalf("expected NotFound resolving without default, got %v", err)
	}
}

func TestAcquireLoaderFailure(t *testing.T) {
	m, fl := newTestManager(t, ManagerConfig{}, "a.gguf")
	fl.err = errors.New("bad weights")
	_, err := m.Acquire(testCtx(t), "a.gguf")
	if !modelerr.IsLoadFailure(err) {
		t.Fatalf("expected LoadFailure, got %v", err)
	}
	if mdl, _ := m.reg.Get("a.gguf"); mdl.AccessCount != 0 {
		t.Fatalf("failed acquire must not count as an access: %+v", mdl)
	}
}

func TestAcquireContextCanceledWhileLoading(t *testing.T) {
	m, fl := newTestManager(t, ManagerConfig{}, "slow.gguf")
	fl.gate = make(chan struct{})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := m.Acquire(ctx, "slow.gguf"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	close(fl.gate)
	// the abandoned load still lands in the cache
	deadline := time.Now().Add(time.Second)
	for !m.cache.Contains("slow.gguf") {
		if time.Now().After(deadline) {
			t.Fatalf("load did not complete")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestByteCapacityEvictsLeastRecentlyUsed(t *testing.T) {
	m, _ := newTestManager(t, ManagerConfig{MaxBytes: 5 << 19}, "a.gguf", "b.gguf", "c.gguf")
	pub := NewMemoryPublisher()
	m.SetEventPublisher(pub)
	for _, id := range []string{"a.gguf", "b.gguf", "c.gguf"} {
		if _, err := m.Acquire(testCtx(t), id); err != nil {
			t.Fatalf("Acquire %s: %v", id, err)
		}
	}
	st := m.Status()
	if st.Cache.Evictions != 1 {
		t.Fatalf("expected exactly one eviction, got %d", st.Cache.Evictions)
	}
	if m.cache.Contains("a.gguf") {
		t.Fatalf("a.gguf should have been evicted")
	}
	if st.UsedBytes > st.MaxBytes {
		t.Fatalf("capacity exceeded: used=%d max=%d", st.UsedBytes, st.MaxBytes)
	}
	var evicted []string
	for _, e := range pub.Events() {
		if e.Name == "evict" {
			evicted = append(evicted, e.ModelID)
		}
	}
	if len(evicted) != 1 || evicted[0] != "a.gguf" {
		t.Fatalf("unexpected evict events: %v", evicted)
	}
}

func TestPreloadWarmedByTick(t *testing.T) {
	m, fl := newTestManager(t, ManagerConfig{}, "a.gguf", "b.gguf")
	task, err := m.Preload("b.gguf")
	if err != nil {
		t.Fatalf("Preload: %v", err)
	}
	if task.ID == "" || m.QueueSize() != 1 {
		t.Fatalf("expected queued task, got %+v size=%d", task, m.QueueSize())
	}
	m.runTick(testCtx(t))
	if !m.cache.Contains("b.gguf") {
		t.Fatalf("b.gguf should be resident after the tick")
	}
	if fl.count("b.gguf") != 1 {
		t.Fatalf("expected one load for b.gguf")
	}
	st := m.Status()
	if st.Cache.Preloads != 1 || st.Cache.Misses != 0 {
		t.Fatalf("preload must not count as a miss: %+v", st.Cache)
	}
	if st.Preload.Successful != 1 || st.Preload.Queued != 0 {
		t.Fatalf("unexpected preload status: %+v", st.Preload)
	}
	if len(st.Entries) != 1 || !st.Entries[0].Preloaded {
		t.Fatalf("entry should be flagged preloaded: %+v", st.Entries)
	}

	if _, err := m.Preload("ghost.gguf"); !modelerr.IsNotFound(err) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestPreloadRespectsRegistryLimit(t *testing.T) {
	m, fl := newTestManager(t, ManagerConfig{RegistryLimitBytes: 1 << 20}, "a.gguf", "b.gguf")
	if _, err := m.Acquire(testCtx(t), "a.gguf"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	pub := NewMemoryPublisher()
	m.SetEventPublisher(pub)
	if _, err := m.Preload("b.gguf"); err != nil {
		t.Fatalf("Preload: %v", err)
	}
	m.runTick(testCtx(t))
	if m.cache.Contains("b.gguf") || fl.count("b.gguf") != 0 {
		t.Fatalf("b.gguf must not be loaded past the registry limit")
	}
	st := m.Status()
	if st.Preload.Failed != 1 || st.Preload.Successful != 0 {
		t.Fatalf("unexpected preload status: %+v", st.Preload)
	}
	refused := false
	for _, e := range pub.Events() {
		if e.Name == "preload_refused" && e.ModelID == "b.gguf" {
			refused = true
		}
	}
	if !refused {
		t.Fatalf("expected preload_refused event, got %v", pub.Names())
	}
}

func TestTickPlansHotModels(t *testing.T) {
	m, fl := newTestManager(t, ManagerConfig{HotThreshold: 2}, "hot.gguf", "cold.gguf")
	for i := 0; i < 2; i++ {
		if _, err := m.Acquire(testCtx(t), "hot.gguf"); err != nil {
			t.Fatalf("Acquire: %v", err)
		}
	}
	if _, err := m.Acquire(testCtx(t), "cold.gguf"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := m.Unload("hot.gguf"); err != nil {
		t.Fatalf("Unload: %v", err)
	}
	if err := m.Unload("cold.gguf"); err != nil {
		t.Fatalf("Unload: %v", err)
	}

	m.runTick(testCtx(t))
	if !m.cache.Contains("hot.gguf") {
		t.Fatalf("hot model should be preloaded by the tick")
	}
	if m.cache.Contains("cold.gguf") {
		t.Fatalf("cold model must not be preloaded")
	}
	if fl.count("hot.gguf") != 2 {
		t.Fatalf("expected the hot model to be loaded twice, got %d", fl.count("hot.gguf"))
	}
	if hot := m.Status().HotModels; len(hot) != 1 || hot[0] != "hot.gguf" {
		t.Fatalf("unexpected hot models: %v", hot)
	}
}

func TestTickOptimizeShrinksCapacity(t *testing.T) {
	m, _ := newTestManager(t, ManagerConfig{
		AdaptiveStrategy: adaptive.Aggressive,
		AutoOptimize:     true,
		MinCacheMB:       1,
		MaxCacheMB:       100,
		Memory:           sysmem.Static{TotalMB: 10, AvailableMB: 4, UsedMB: 6},
	}, "a.gguf", "b.gguf", "c.gguf")
	pub := NewMemoryPublisher()
	m.SetEventPublisher(pub)
	for _, id := range []string{"a.gguf", "b.gguf", "c.gguf"} {
		if _, err := m.Acquire(testCtx(t), id); err != nil {
			t.Fatalf("Acquire %s: %v", id, err)
		}
	}

	m.runTick(testCtx(t))
	st := m.Status()
	if st.MaxBytes != 2<<20 {
		t.Fatalf("expected a 2MB byte bound, got %d", st.MaxBytes)
	}
	if st.Optimizer.TotalOptimizations != 1 || st.Optimizer.TargetMB != 2 {
		t.Fatalf("unexpected optimizer status: %+v", st.Optimizer)
	}
	if len(st.Entries) != 2 || m.cache.Contains("a.gguf") {
		t.Fatalf("expected the LRU entry to be evicted: %+v", st.Entries)
	}

	// same memory picture: nothing changes on the next pass
	m.optimize()
	if got := m.Status().Optimizer.TotalOptimizations; got != 1 {
		t.Fatalf("unchanged target must not count, got %d", got)
	}
	found := false
	for _, e := range pub.Events() {
		if e.Name == "optimize" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an optimize event, got %v", pub.Names())
	}
}

func TestTickOptimizeKeepsExplicitByteCap(t *testing.T) {
	m, _ := newTestManager(t, ManagerConfig{
		MaxBytes:     2 << 20,
		AutoOptimize: true,
		Memory:       sysmem.Static{TotalMB: 16384, AvailableMB: 8192, UsedMB: 8192},
	}, "a.gguf")
	m.runTick(testCtx(t))
	st := m.Status()
	if st.MaxBytes != 2<<20 {
		t.Fatalf("configured 2MB cap grew to %d bytes", st.MaxBytes)
	}
	if st.Optimizer.TargetMB > 2 {
		t.Fatalf("optimizer target above the cap: %+v", st.Optimizer)
	}
}

func TestOptimizerBounds(t *testing.T) {
	cases := []struct {
		cfg              ManagerConfig
		wantMin, wantMax uint64
	}{
		{ManagerConfig{}, 0, 0},
		{ManagerConfig{MinCacheMB: 10, MaxCacheMB: 50}, 10, 50},
		{ManagerConfig{MaxBytes: 2 << 20}, 2, 2},
		{ManagerConfig{MaxBytes: 4096 << 20, MaxCacheMB: 8192}, adaptive.DefaultMinCacheMB, 4096},
		{ManagerConfig{MaxBytes: 4096 << 20, MinCacheMB: 100, MaxCacheMB: 1000}, 100, 1000},
		{ManagerConfig{MaxBytes: 1 << 10}, 1, 1},
	}
	for i, c := range cases {
		gotMin, gotMax := optimizerBounds(c.cfg)
		if gotMin != c.wantMin || gotMax != c.wantMax {
			t.Fatalf("case %d: got (%d,%d) want (%d,%d)", i, gotMin, gotMax, c.wantMin, c.wantMax)
		}
	}
}

func TestTickCollectsReclaimed(t *testing.T) {
	released := 0
	m, _ := newTestManager(t, ManagerConfig{Release: func() { released++ }}, "a.gguf", "b.gguf")
	for _, id := range []string{"a.gguf", "b.gguf"} {
		if _, err := m.Acquire(testCtx(t), id); err != nil {
			t.Fatalf("Acquire %s: %v", id, err)
		}
	}
	if err := m.Unload("a.gguf"); err != nil {
		t.Fatalf("Unload: %v", err)
	}
	m.runTick(testCtx(t))
	gs := m.Status().GC
	if gs.Collections != 1 || gs.ModelsCollected != 1 || gs.TotalFreedMB != 1 || gs.TotalFreedBytes != 1<<20 {
		t.Fatalf("unexpected gc status: %+v", gs)
	}
	if released != 1 {
		t.Fatalf("expected release hook once, got %d", released)
	}
	if gs.NextCollection == 0 {
		t.Fatalf("next collection should be scheduled")
	}
}

func TestUnloadEvents(t *testing.T) {
	m, _ := newTestManager(t, ManagerConfig{}, "a.gguf")
	h, err := m.Acquire(testCtx(t), "a.gguf")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	pub := NewMemoryPublisher()
	m.SetEventPublisher(pub)
	if err := m.Unload("a.gguf"); err != nil {
		t.Fatalf("Unload: %v", err)
	}
	if got := h.(*fakeModel).unloaded.Load(); got != 1 {
		t.Fatalf("expected handle unloaded once, got %d", got)
	}
	names := pub.Names()
	want := []string{"unload_start", "evict", "unload_done"}
	if len(names) != len(want) {
		t.Fatalf("events: got %v want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("events: got %v want %v", names, want)
		}
	}
	if mdl, _ := m.reg.Get("a.gguf"); mdl.Cached {
		t.Fatalf("registry should mirror the unload")
	}

	if err := m.Unload("a.gguf"); err != nil {
		t.Fatalf("second unload should be a no-op: %v", err)
	}
	if err := m.Unload("ghost.gguf"); !modelerr.IsNotFound(err) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestVerifyDetectsChangedFile(t *testing.T) {
	m, _ := newTestManager(t, ManagerConfig{}, "a.gguf")
	ok, err := m.Verify("a.gguf")
	if err != nil || !ok {
		t.Fatalf("fresh file should verify: ok=%v err=%v", ok, err)
	}
	mdl, _ := m.reg.Get("a.gguf")
	if err := os.WriteFile(mdl.Path, []byte("tampered"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	ok, err = m.Verify("a.gguf")
	if err != nil || ok {
		t.Fatalf("tampered file must fail verification: ok=%v err=%v", ok, err)
	}
}

func TestCloseRejectsWork(t *testing.T) {
	m, _ := newTestManager(t, ManagerConfig{}, "a.gguf")
	h, err := m.Acquire(testCtx(t), "a.gguf")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !m.Ready() {
		t.Fatalf("manager with models should be ready")
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if h.(*fakeModel).unloaded.Load() != 1 {
		t.Fatalf("Close must unload resident models")
	}
	if m.Ready() {
		t.Fatalf("closed manager must not be ready")
	}
	if _, err := m.Acquire(testCtx(t), "a.gguf"); !modelerr.IsClosed(err) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, err := m.Preload("a.gguf"); !modelerr.IsClosed(err) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	m, _ := newTestManager(t, ManagerConfig{Tick: 5 * time.Millisecond}, "a.gguf")
	if _, err := m.Preload("a.gguf"); err != nil {
		t.Fatalf("Preload: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	deadline := time.Now().Add(time.Second)
	for !m.cache.Contains("a.gguf") {
		if time.Now().After(deadline) {
			t.Fatalf("loop never warmed the queued model")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Run did not stop")
	}
}

func TestFromConfig(t *testing.T) {
	var c config.Config
	c.ApplyDefaults()
	mc, err := FromConfig(c)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if mc.CachePolicy != cache.LRU || mc.MaxModels != config.DefaultMaxModels || mc.MaxBytes != 0 {
		t.Fatalf("unexpected cache settings: %+v", mc)
	}
	if mc.PreloadStrategy != preload.Frequency || mc.PreloadDelay != time.Second || mc.PreloadDisabled {
		t.Fatalf("unexpected preload settings: %+v", mc)
	}
	if !mc.AutoOptimize || mc.UpdateInterval != 30*time.Second || mc.GCInterval != 30*time.Second {
		t.Fatalf("unexpected cadence settings: %+v", mc)
	}
	if mc.Release != nil {
		t.Fatalf("release hook must be opt-in")
	}

	c.Cache.MaxMB = 2500
	c.GC.ReleaseOSMemory = true
	off := false
	c.Preload.Enabled = &off
	mc, err = FromConfig(c)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if mc.MaxBytes != 2500<<20 || mc.Release == nil || !mc.PreloadDisabled {
		t.Fatalf("overrides not applied: %+v", mc)
	}

	c.Cache.Policy = "random"
	if _, err := FromConfig(c); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}

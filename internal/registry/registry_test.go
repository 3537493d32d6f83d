package registry

import (
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"

	"modelcache/internal/modelerr"
)

// fakeClock is advanced manually by tests.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newFakeClock() *fakeClock { return &fakeClock{t: time.Unix(1_700_000_000, 0)} }

func writeModel(t *testing.T, fs billy.Filesystem, path string, content string) {
	t.Helper()
	if err := util.WriteFile(fs, path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func newTestRegistry(t *testing.T, limit int64) (*Registry, billy.Filesystem, *fakeClock) {
	t.Helper()
	fs := memfs.New()
	r := New(Options{FS: fs, LimitBytes: limit})
	clk := newFakeClock()
	r.now = clk.now
	return r, fs, clk
}

func TestRegister_ComputesSizeAndHash(t *testing.T) {
	r, fs, _ := newTestRegistry(t, 0)
	writeModel(t, fs, "/m/a.gguf", "hello")
	if err := r.Register("a", "/m/a.gguf"); err != nil {
		t.Fatalf("register: %v", err)
	}
	m, ok := r.Get("a")
	if !ok {
		t.Fatalf("expected a registered")
	}
	if m.SizeBytes != 5 || m.Format != "gguf" || m.Path != "/m/a.gguf" {
		t.Fatalf("unexpected metadata: %+v", m)
	}
	if m.ContentHash != "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824" {
		t.Fatalf("unexpected hash %s", m.ContentHash)
	}
	if m.AccessCount != 0 || m.LastAccessed != nil || m.Cached {
		t.Fatalf("fresh model should have no usage: %+v", m)
	}
}

func TestRegister_MissingFileIsNotFound(t *testing.T) {
	r, _, _ := newTestRegistry(t, 0)
	err := r.Register("a", "/m/missing.gguf")
	if !modelerr.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if r.Len() != 0 {
		t.Fatalf("failed register must not add a model")
	}
}

func TestRegister_DirectoryIsIOError(t *testing.T) {
	r, fs, _ := newTestRegistry(t, 0)
	if err := fs.MkdirAll("/m/dir.gguf", 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := r.Register("d", "/m/dir.gguf"); !modelerr.IsIO(err) {
		t.Fatalf("expected io error, got %v", err)
	}
}

func TestRegister_Idempotent(t *testing.T) {
	r, fs, _ := newTestRegistry(t, 0)
	writeModel(t, fs, "/m/a.gguf", "weights")
	if err := r.Register("a", "/m/a.gguf"); err != nil {
		t.Fatalf("register: %v", err)
	}
	first, _ := r.Get("a")
	if err := r.Register("a", "/m/a.gguf"); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	second, _ := r.Get("a")
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("re-registration changed metadata: %+v vs %+v", first, second)
	}
	if r.Len() != 1 || len(r.List()) != 1 {
		t.Fatalf("expected exactly one model, got %d", r.Len())
	}
}

func TestRegister_OverwriteKeepsUsage(t *testing.T) {
	r, fs, _ := newTestRegistry(t, 0)
	writeModel(t, fs, "/m/a.gguf", "v1")
	writeModel(t, fs, "/m/b.gguf", "version-two")
	if err := r.Register("a", "/m/a.gguf"); err != nil {
		t.Fatalf("register: %v", err)
	}
	_ = r.Touch("a")
	r.SetCached("a", true)
	if err := r.Register("a", "/m/b.gguf"); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	m, _ := r.Get("a")
	if m.Path != "/m/b.gguf" || m.SizeBytes != int64(len("version-two")) {
		t.Fatalf("expected overwritten path/size: %+v", m)
	}
	if m.AccessCount != 1 || !m.Cached {
		t.Fatalf("usage and cached flag should survive: %+v", m)
	}
}

func TestTouch(t *testing.T) {
	r, fs, clk := newTestRegistry(t, 0)
	writeModel(t, fs, "/m/a.gguf", "x")
	_ = r.Register("a", "/m/a.gguf")
	clk.advance(time.Minute)
	if err := r.Touch("a"); err != nil {
		t.Fatalf("touch: %v", err)
	}
	if err := r.Touch("a"); err != nil {
		t.Fatalf("touch: %v", err)
	}
	m, _ := r.Get("a")
	if m.AccessCount != 2 || m.LastAccessed == nil || !m.LastAccessed.Equal(clk.t) {
		t.Fatalf("unexpected usage: %+v", m)
	}
	if err := r.Touch("zzz"); !modelerr.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestVerify(t *testing.T) {
	r, fs, _ := newTestRegistry(t, 0)
	writeModel(t, fs, "/m/a.gguf", "original")
	_ = r.Register("a", "/m/a.gguf")

	ok, err := r.Verify("a")
	if err != nil || !ok {
		t.Fatalf("expected valid, got %v %v", ok, err)
	}

	writeModel(t, fs, "/m/a.gguf", "tampered")
	ok, err = r.Verify("a")
	if err != nil || ok {
		t.Fatalf("expected mismatch to report false without error, got %v %v", ok, err)
	}

	if err := fs.Remove("/m/a.gguf"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	ok, err = r.Verify("a")
	if err != nil || ok {
		t.Fatalf("expected missing file to report false without error, got %v %v", ok, err)
	}

	if _, err := r.Verify("nope"); !modelerr.IsNotFound(err) {
		t.Fatalf("expected not found for unknown id, got %v", err)
	}
}

func TestWouldExceedLimit(t *testing.T) {
	r, fs, _ := newTestRegistry(t, 10)
	writeModel(t, fs, "/m/a.gguf", "123456")
	writeModel(t, fs, "/m/b.gguf", "1234")
	_ = r.Register("a", "/m/a.gguf")
	_ = r.Register("b", "/m/b.gguf")

	if r.WouldExceedLimit(10) {
		t.Fatalf("nothing cached yet; 10 bytes fits a 10 byte limit")
	}
	r.SetCached("a", true)
	if r.WouldExceedLimit(4) {
		t.Fatalf("6+4 should fit")
	}
	if !r.WouldExceedLimit(5) {
		t.Fatalf("6+5 should exceed")
	}
	if r.CachedBytes() != 6 {
		t.Fatalf("expected 6 cached bytes, got %d", r.CachedBytes())
	}

	unlimited, _, _ := newTestRegistry(t, 0)
	if unlimited.WouldExceedLimit(1 << 40) {
		t.Fatalf("a zero limit disables the check")
	}
}

func TestOrderingQueries(t *testing.T) {
	r, fs, clk := newTestRegistry(t, 0)
	for _, id := range []string{"a", "b", "c", "d"} {
		writeModel(t, fs, "/m/"+id+".gguf", id)
		if err := r.Register(id, "/m/"+id+".gguf"); err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
		r.SetCached(id, id != "d")
	}
	// a touched long ago once, b never, c touched recently three times.
	clk.advance(10 * time.Second)
	_ = r.Touch("a")
	clk.advance(10 * time.Second)
	for i := 0; i < 3; i++ {
		_ = r.Touch("c")
	}
	clk.advance(time.Second)

	if got := r.OldestCached(); !reflect.DeepEqual(got, []string{"b", "a", "c"}) {
		t.Fatalf("OldestCached=%v", got)
	}
	if got := r.LeastUsedCached(); !reflect.DeepEqual(got, []string{"b", "a", "c"}) {
		t.Fatalf("LeastUsedCached=%v", got)
	}
	if age, ok := r.AgeSeconds("c"); !ok || age != 1 {
		t.Fatalf("AgeSeconds(c)=%d,%v", age, ok)
	}
	if age, ok := r.AgeSeconds("b"); !ok || age != 21 {
		t.Fatalf("AgeSeconds(b)=%d,%v", age, ok)
	}
}

func TestOrderingTieBreaksOnRegistrationOrder(t *testing.T) {
	r, fs, _ := newTestRegistry(t, 0)
	for _, id := range []string{"z", "y", "x"} {
		writeModel(t, fs, "/m/"+id+".gguf", id)
		_ = r.Register(id, "/m/"+id+".gguf")
		r.SetCached(id, true)
	}
	want := []string{"z", "y", "x"}
	if got := r.OldestCached(); !reflect.DeepEqual(got, want) {
		t.Fatalf("OldestCached=%v", got)
	}
	if got := r.LeastUsedCached(); !reflect.DeepEqual(got, want) {
		t.Fatalf("LeastUsedCached=%v", got)
	}
}

func TestRemoveAndClear(t *testing.T) {
	r, fs, _ := newTestRegistry(t, 0)
	writeModel(t, fs, "/m/a.gguf", "a")
	writeModel(t, fs, "/m/b.gguf", "b")
	_ = r.Register("a", "/m/a.gguf")
	_ = r.Register("b", "/m/b.gguf")
	if !r.Remove("a") {
		t.Fatalf("expected remove to report true")
	}
	if r.Remove("a") {
		t.Fatalf("second remove should report false")
	}
	if _, ok := r.Get("a"); ok {
		t.Fatalf("a still registered")
	}
	r.Clear()
	if r.Len() != 0 {
		t.Fatalf("expected empty registry after clear")
	}
}

func TestDiscover(t *testing.T) {
	r, fs, _ := newTestRegistry(t, 0)
	writeModel(t, fs, "/models/a.gguf", "aaaa")
	writeModel(t, fs, "/models/b.safetensors", "bb")
	writeModel(t, fs, "/models/readme.md", "docs")
	models, err := r.Discover("/models")
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(models) != 2 || models[0].ID != "a.gguf" || models[1].ID != "b.safetensors" {
		t.Fatalf("unexpected models: %+v", models)
	}
	if models[0].ContentHash == "" || models[1].SizeBytes != 2 {
		t.Fatalf("discover should register size and hash: %+v", models)
	}
	if _, err := r.Discover("/missing"); !modelerr.IsIO(err) {
		t.Fatalf("expected io error for missing dir, got %v", err)
	}
}

func TestHashMemo(t *testing.T) {
	m, err := newHashMemo(8)
	if err != nil {
		t.Fatalf("memo: %v", err)
	}
	mt := time.Unix(100, 0)
	m.store("/a", 10, mt, "h1")
	if h, ok := m.lookup("/a", 10, mt); !ok || h != "h1" {
		t.Fatalf("expected memo hit")
	}
	if _, ok := m.lookup("/a", 11, mt); ok {
		t.Fatalf("size change must miss")
	}
	if _, ok := m.lookup("/a", 10, mt.Add(time.Second)); ok {
		t.Fatalf("mtime change must miss")
	}
	m.forget("/a")
	if _, ok := m.lookup("/a", 10, mt); ok {
		t.Fatalf("forgotten path must miss")
	}
	var nilMemo *hashMemo
	if _, ok := nilMemo.lookup("/a", 1, mt); ok {
		t.Fatalf("nil memo never hits")
	}
}

func TestRegisterHostFS(t *testing.T) {
	dir := t.TempDir()
	p := dir + "/host.gguf"
	if err := os.WriteFile(p, []byte("abc"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	r := New(Options{})
	if err := r.Register("host", p); err != nil {
		t.Fatalf("register: %v", err)
	}
	if ok, err := r.Verify("host"); err != nil || !ok {
		t.Fatalf("verify: %v %v", ok, err)
	}
}

package registry

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
)

func TestScanner_FiltersModelFiles(t *testing.T) {
	fs := memfs.New()
	files := []string{
		"a.gguf",
		"b.GGUF", // case-insensitive
		"c.safetensors",
		"not-model.txt",
		"model.bin",
	}
	for _, f := range files {
		if err := util.WriteFile(fs, "/models/"+f, []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := fs.MkdirAll("/models/sub.gguf", 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	models, err := NewScanner(fs).Scan("/models")
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if len(models) != 3 {
		t.Fatalf("expected 3 models, got %d: %+v", len(models), models)
	}
	want := []struct{ id, format string }{{"a.gguf", "gguf"}, {"b.GGUF", "gguf"}, {"c.safetensors", "safetensors"}}
	for i, w := range want {
		if models[i].ID != w.id || models[i].Format != w.format {
			t.Fatalf("model %d: got %s/%s want %s/%s", i, models[i].ID, models[i].Format, w.id, w.format)
		}
		if models[i].Path != "/models/"+w.id {
			t.Fatalf("unexpected path %s", models[i].Path)
		}
	}
}

func TestScanner_MissingDir(t *testing.T) {
	if _, err := NewScanner(memfs.New()).Scan("/nope"); err == nil {
		t.Fatalf("expected error for missing dir")
	}
}

func TestScanner_ExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir on this platform: %v", err)
	}
	hTmp, err := os.MkdirTemp(home, "modelcache-registry-*")
	if err != nil {
		t.Skipf("cannot create temp under home: %v", err)
	}
	defer os.RemoveAll(hTmp)
	if err := os.WriteFile(filepath.Join(hTmp, "x.gguf"), []byte(""), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	var tildePath string
	if runtime.GOOS == "windows" {
		tildePath = filepath.Join("~", filepath.Base(hTmp))
	} else {
		tildePath = "~/" + filepath.Base(hTmp)
	}
	models, err := LoadDir(tildePath)
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if len(models) != 1 || models[0].ID != "x.gguf" {
		t.Fatalf("unexpected models: %+v", models)
	}
}

func TestLoadDirHostFS(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "m.gguf"), []byte("abc"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	models, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(models) != 1 || models[0].ID != "m.gguf" || models[0].SizeBytes != 3 {
		t.Fatalf("unexpected: %+v", models)
	}
}

package registry

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/go-git/go-billy/v5"

	"modelcache/internal/common/fsutil"
	"modelcache/pkg/types"
)

// Scanner lists model files in a directory of a billy filesystem.
type Scanner struct {
	fs billy.Filesystem
}

// NewScanner returns a Scanner over fs; nil selects the host filesystem.
func NewScanner(fs billy.Filesystem) *Scanner {
	if fs == nil {
		fs = fsutil.OSFS()
	}
	return &Scanner{fs: fs}
}

// Scan returns one model per *.gguf or *.safetensors file directly under dir.
// ID is the full filename (including extension); Path is the absolute file
// path. Size and hash are left for Register to fill in.
func (s *Scanner) Scan(dir string) ([]types.Model, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := s.fs.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		format := fsutil.ModelFormat(name)
		if format == "" {
			continue
		}
		models = append(models, types.Model{
			ID:        name,
			Name:      name,
			Path:      filepath.Join(abs, name),
			Format:    format,
			SizeBytes: e.Size(),
		})
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}

// LoadDir scans dir on the host filesystem.
func LoadDir(dir string) ([]types.Model, error) {
	return NewScanner(nil).Scan(dir)
}

package fsutil

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// Model file formats recognised by ModelFormat.
const (
	FormatGGUF        = "gguf"
	FormatSafeTensors = "safetensors"
)

// ExpandHome expands a leading '~' to the user's home directory.
func ExpandHome(path string) (string, error) {
	if path == "" {
		return path, nil
	}
	if path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	// handle cases like ~/models/llm
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}

// PathExists checks if the given path exists.
func PathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, os.ErrNotExist)
}

// OSFS returns a billy filesystem rooted at "/" so absolute host paths
// resolve unchanged.
func OSFS() billy.Filesystem { return osfs.New("/") }

// ModelFormat returns the model format for a file name, matched
// case-insensitively on the extension, or "" for anything else.
func ModelFormat(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gguf":
		return FormatGGUF
	case ".safetensors":
		return FormatSafeTensors
	default:
		return ""
	}
}

// HashFile streams path through SHA-256 and returns the hex digest along
// with the number of bytes read.
func HashFile(fs billy.Basic, path string) (string, int64, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", n, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FS implements Backend backed by the local file system.
type FS struct {
	root string // absolute path to the content directory
}

// NewFS creates a new FS backend rooted at the given directory, creating it
// if it does not exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	return &FS{root: abs}, nil
}

// safePath resolves a location against the root and rejects any result that
// escapes it (directory traversal).
func (f *FS) safePath(location string) (string, error) {
	if location == "" {
		return "", fmt.Errorf("storage: empty location")
	}
	cleaned := filepath.Clean(location)
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute locations not allowed: %s", location)
	}
	joined := filepath.Join(f.root, cleaned)
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("storage: resolve location: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("storage: location escapes root: %s", location)
	}
	return abs, nil
}

// Read returns the raw bytes stored at location, or ErrNotFound.
func (f *FS) Read(location string) ([]byte, error) {
	p, err := f.safePath(location)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: read %s: %w", location, err)
	}
	return data, nil
}

// Write stores data at location. The write goes through a temp file and a
// rename so a crash never leaves half a document behind.
func (f *FS) Write(location string, data []byte) error {
	p, err := f.safePath(location)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("storage: create dir: %w", err)
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("storage: write %s: %w", location, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("storage: finalize %s: %w", location, err)
	}
	return nil
}

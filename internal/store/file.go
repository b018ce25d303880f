package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileMedium keeps the working document in a local JSON file.
// Writes go to a temp file in the same directory followed by a rename,
// so readers observe either the old or the new file, never a partial one.
type FileMedium struct {
	path string
}

// NewFileMedium returns a medium for path. The file need not exist yet.
func NewFileMedium(path string) *FileMedium {
	return &FileMedium{path: path}
}

// ResolveWorkingPath places name in tempDir when that directory exists,
// otherwise in cwd.
func ResolveWorkingPath(tempDir, cwd, name string) string {
	if tempDir != "" {
		if fi, err := os.Stat(tempDir); err == nil && fi.IsDir() {
			return filepath.Join(tempDir, name)
		}
	}
	return filepath.Join(cwd, name)
}

// Path returns the working file path.
func (f *FileMedium) Path() string { return f.path }

func (f *FileMedium) Driver() string { return "file" }

func (f *FileMedium) Close() error { return nil }

func (f *FileMedium) Load(_ context.Context) ([]byte, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return raw, err
}

func (f *FileMedium) Replace(_ context.Context, raw []byte) error {
	dir, base := filepath.Split(f.path)
	if dir == "" {
		dir = "."
	}

	tmp, err := os.CreateTemp(dir, base+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		cleanup()
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"canonical-trade-ingest/internal/storage"
)

// Loader reads the contents of a named input file.
type Loader interface {
	// Load returns the file bytes. Returns storage.ErrNotFound if the file does not exist.
	Load(ctx context.Context, name string) ([]byte, error)
}

// DirLoader loads files from a single directory.
type DirLoader struct {
	dir string
}

// NewDirLoader creates a loader rooted at dir.
func NewDirLoader(dir string) *DirLoader {
	return &DirLoader{dir: dir}
}

// Dir returns the input directory.
func (l *DirLoader) Dir() string {
	return l.dir
}

// Load reads name from the input directory. Names that are not a plain file
// name (separators, "." or "..") are rejected with storage.ErrInvalidInput.
func (l *DirLoader) Load(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return nil, fmt.Errorf("%w: file name %q", storage.ErrInvalidInput, name)
	}

	data, err := os.ReadFile(filepath.Join(l.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

var _ Loader = (*DirLoader)(nil)

package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/epir-jewellery/shop-assistant/backend/internal/model/catalog"
)

// FileSnapshot stores the catalog as a JSON file on local disk.
type FileSnapshot struct {
	path string
}

// NewFileSnapshot returns a snapshot stored at path.
func NewFileSnapshot(path string) *FileSnapshot {
	return &FileSnapshot{path: path}
}

// Load reads the snapshot file.
func (f *FileSnapshot) Load(_ context.Context) ([]catalog.Product, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSnapshotMissing, f.path)
		}
		return nil, fmt.Errorf("read catalog snapshot: %w", err)
	}
	return decodeSnapshot(data)
}

// Save writes to a temporary file next to the target, then renames it into place.
func (f *FileSnapshot) Save(_ context.Context, products []catalog.Product) error {
	data, err := encodeSnapshot(products, time.Now())
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".products-*.tmp")
	if err != nil {
		return fmt.Errorf("create tmp snapshot: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write tmp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync tmp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close tmp snapshot: %w", err)
	}

	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("swap catalog snapshot: %w", err)
	}
	return nil
}

package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// FileBackend keeps the snapshot in a local JSON file.
type FileBackend struct {
	Path string
}

// NewFileBackend returns a backend for the snapshot file at path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{Path: path}
}

// Location returns the file path.
func (b *FileBackend) Location() string { return b.Path }

// Read returns the file contents. A missing file yields an error wrapping
// fs.ErrNotExist.
func (b *FileBackend) Read(_ context.Context) ([]byte, error) {
	return os.ReadFile(b.Path)
}

// Write replaces the snapshot atomically: the data goes to a temp file in the
// same directory, is fsynced, and is renamed over the target. A crash leaves
// either the old or the new snapshot, never a torn one.
func (b *FileBackend) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(b.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(b.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, b.Path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	committed = true

	// Persist the rename itself. Not supported everywhere (e.g. Windows).
	if err := syncDir(dir); err != nil {
		log.Debug().Err(err).Str("dir", dir).Msg("Snapshot dir fsync skipped")
	}
	return nil
}

func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const checkpointFile = "checkpoint.json"

// Store reads and writes the checkpoint file under one directory. Writes
// go through a temp file and an atomic rename, so a crash mid-write can
// never leave a half-written checkpoint behind.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the checkpoint file location.
func (s *Store) Path() string {
	return filepath.Join(s.dir, checkpointFile)
}

// Save persists the checkpoint atomically.
func (s *Store) Save(cp *Checkpoint) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("Save: creating checkpoint dir: %w", err)
	}

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("Save: encoding checkpoint: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, checkpointFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("Save: creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("Save: writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("Save: syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("Save: closing temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.Path()); err != nil {
		return fmt.Errorf("Save: renaming into place: %w", err)
	}
	return nil
}

// Load reads the checkpoint, returning (nil, nil) when none exists.
func (s *Store) Load() (*Checkpoint, error) {
	data, err := os.ReadFile(s.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Load: reading checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("Load: decoding checkpoint %s: %w", s.Path(), err)
	}
	return &cp, nil
}

// Clear deletes the checkpoint after a confirmed commit. Missing files
// are fine: a DONE run has nothing to clear.
func (s *Store) Clear() error {
	err := os.Remove(s.Path())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("Clear: removing checkpoint: %w", err)
	}
	return nil
}

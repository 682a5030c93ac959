package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"papertrade/internal/account"
)

// FileStore is the durable backend: one JSON document, written atomically via
// a temp file rename so a crash mid-write never corrupts the previous save.
type FileStore struct {
	path        string
	minInterval time.Duration
	lastSave    time.Time
	log         zerolog.Logger
}

func NewFileStore(path string, minInterval time.Duration, log zerolog.Logger) *FileStore {
	return &FileStore{path: path, minInterval: minInterval, log: log}
}

func (s *FileStore) Save(_ context.Context, snap *account.Snapshot, now time.Time, force bool) error {
	if !force && !s.lastSave.IsZero() && now.Sub(s.lastSave) < s.minInterval {
		return nil
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}

	s.lastSave = now
	s.log.Debug().Str("path", s.path).Int("bytes", len(data)).Msg("snapshot saved")
	return nil
}

func (s *FileStore) Load(_ context.Context) (*account.Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snap account.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

func (s *FileStore) Close() error { return nil }

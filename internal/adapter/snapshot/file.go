// Package snapshot persists answer-cache snapshots as a JSON file.
package snapshot

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
)

// FileStore implements domain.CacheSnapshotStore on the local filesystem.
// All failures are reported as a false return and logged at debug level;
// persistence is best effort and callers never branch on the cause.
type FileStore struct {
	path string
	log  *slog.Logger
}

func NewFileStore(path string, log *slog.Logger) *FileStore {
	if log == nil {
		log = slog.Default()
	}
	return &FileStore{path: path, log: log}
}

// TryLoad reads the snapshot file. A missing or corrupt file yields false.
func (s *FileStore) TryLoad() (map[string]string, bool) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Debug("snapshot unreadable", slog.String("path", s.path), slog.Any("error", err))
		}
		return nil, false
	}
	var entries map[string]string
	if err := json.Unmarshal(raw, &entries); err != nil {
		s.log.Debug("snapshot corrupt", slog.String("path", s.path), slog.Any("error", err))
		return nil, false
	}
	return entries, true
}

// TrySave writes the snapshot atomically via a temp file rename.
func (s *FileStore) TrySave(entries map[string]string) bool {
	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		s.log.Debug("snapshot marshal failed", slog.Any("error", err))
		return false
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		s.log.Debug("snapshot dir not writable", slog.String("path", s.path), slog.Any("error", err))
		return false
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		s.log.Debug("snapshot write failed", slog.String("path", tmp), slog.Any("error", err))
		return false
	}
	if err := os.Rename(tmp, s.path); err != nil {
		s.log.Debug("snapshot rename failed", slog.String("path", s.path), slog.Any("error", err))
		_ = os.Remove(tmp)
		return false
	}
	return true
}

package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/taskdeck/core/internal/infrastructure/logger"
)

// FileStore is a key-value store persisted as a single JSON object in one
// file under the data directory. Every Set rewrites the whole file; the
// collection is small and local, so there is no incremental diffing.
type FileStore struct {
	mu     sync.RWMutex
	path   string
	data   map[string]string
	logger *logger.Logger
}

// NewFileStore opens (or creates) the store file in dataDir. A corrupt
// store file is discarded and logged; the session starts empty rather than
// failing to boot.
func NewFileStore(dataDir string, appLogger *logger.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	s := &FileStore{
		path:   filepath.Join(dataDir, "taskdeck.json"),
		data:   map[string]string{},
		logger: appLogger,
	}

	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read store file: %w", err)
	}

	if err := json.Unmarshal(b, &s.data); err != nil {
		appLogger.Warn("Discarding corrupt store file", "path", s.path, "error", err)
		s.data = map[string]string{}
	}
	if s.data == nil {
		s.data = map[string]string{}
	}

	return s, nil
}

// Get returns the value for key and whether it was present.
func (s *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	return v, ok, nil
}

// Set stores value under key and persists the whole store.
func (s *FileStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = value
	return s.saveLocked()
}

// Delete removes key and persists. Deleting a missing key is a no-op.
func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[key]; !ok {
		return nil
	}
	delete(s.data, key)
	return s.saveLocked()
}

// Close is a no-op for the file store; every write is already flushed.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) saveLocked() error {
	b, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}
	if err := os.WriteFile(s.path, b, 0o644); err != nil {
		return fmt.Errorf("write store file: %w", err)
	}
	return nil
}

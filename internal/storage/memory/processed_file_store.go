package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"canonical-trade-ingest/internal/storage"
)

// ProcessedFileStore is an in-memory implementation of storage.ProcessedFileStore.
type ProcessedFileStore struct {
	mu    sync.RWMutex
	files map[string]time.Time
}

// NewProcessedFileStore creates a new in-memory processed file store.
func NewProcessedFileStore() *ProcessedFileStore {
	return &ProcessedFileStore{
		files: make(map[string]time.Time),
	}
}

// MarkProcessed records a file as processed. The first timestamp wins.
func (s *ProcessedFileStore) MarkProcessed(_ context.Context, fileName string, at time.Time) error {
	if fileName == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.files[fileName]; !exists {
		s.files[fileName] = at
	}
	return nil
}

// IsProcessed checks if a file has been processed.
func (s *ProcessedFileStore) IsProcessed(_ context.Context, fileName string) (bool, error) {
	if fileName == "" {
		return false, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.files[fileName]
	return exists, nil
}

// LoadProcessed returns all processed file names, sorted.
func (s *ProcessedFileStore) LoadProcessed(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.files))
	for name := range s.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Forget removes a file from the history.
func (s *ProcessedFileStore) Forget(_ context.Context, fileName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.files, fileName)
	return nil
}

// Clear removes all history.
func (s *ProcessedFileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.files = make(map[string]time.Time)
	return nil
}

var _ storage.ProcessedFileStore = (*ProcessedFileStore)(nil)

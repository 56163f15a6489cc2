package memory

import (
	"context"
	"sort"
	"sync"

	"canonical-trade-ingest/internal/domain"
	"canonical-trade-ingest/internal/storage"
)

// ProcessingResultStore is an in-memory implementation of storage.ProcessingResultStore.
type ProcessingResultStore struct {
	mu   sync.RWMutex
	data []*domain.ProcessingResult // in insertion order
}

// NewProcessingResultStore creates a new in-memory result store.
func NewProcessingResultStore() *ProcessingResultStore {
	return &ProcessingResultStore{}
}

// Insert appends a result.
func (s *ProcessingResultStore) Insert(_ context.Context, r *domain.ProcessingResult) error {
	if r == nil || r.FileName == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = append(s.data, copyResult(r))
	return nil
}

// GetByFileName retrieves all results for a file, ordered by processed_at ASC.
func (s *ProcessingResultStore) GetByFileName(_ context.Context, fileName string) ([]*domain.ProcessingResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ProcessingResult
	for _, r := range s.data {
		if r.FileName == fileName {
			result = append(result, copyResult(r))
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ProcessedAt.Before(result[j].ProcessedAt)
	})

	return result, nil
}

// Count returns the number of stored results.
func (s *ProcessingResultStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func copyResult(r *domain.ProcessingResult) *domain.ProcessingResult {
	rc := *r
	rc.Errors = append([]string{}, r.Errors...)
	rc.DeliveryErrors = append([]string{}, r.DeliveryErrors...)
	rc.Trades = append([]*domain.CanonicalTrade{}, r.Trades...)
	return &rc
}

var _ storage.ProcessingResultStore = (*ProcessingResultStore)(nil)

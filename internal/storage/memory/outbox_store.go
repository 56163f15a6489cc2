package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"canonical-trade-ingest/internal/domain"
	"canonical-trade-ingest/internal/storage"
)

// OutboxStore is an in-memory implementation of storage.OutboxStore.
type OutboxStore struct {
	mu   sync.RWMutex
	data map[uuid.UUID]*domain.OutboxEvent // keyed by event id
}

// NewOutboxStore creates a new in-memory outbox store.
func NewOutboxStore() *OutboxStore {
	return &OutboxStore{
		data: make(map[uuid.UUID]*domain.OutboxEvent),
	}
}

// GetByID retrieves an event by its ID. Returns ErrNotFound if not exists.
func (s *OutboxStore) GetByID(_ context.Context, id uuid.UUID) (*domain.OutboxEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyEvent(e), nil
}

// GetByAggregateID retrieves all events for a trade, ordered by created_at ASC.
func (s *OutboxStore) GetByAggregateID(_ context.Context, aggregateID uuid.UUID) ([]*domain.OutboxEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.OutboxEvent
	for _, e := range s.data {
		if e.AggregateID == aggregateID {
			result = append(result, copyEvent(e))
		}
	}
	sortEvents(result)
	return result, nil
}

// GetPending retrieves up to limit PENDING events, oldest first.
func (s *OutboxStore) GetPending(_ context.Context, limit int) ([]*domain.OutboxEvent, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.OutboxEvent
	for _, e := range s.data {
		if e.Status == domain.OutboxStatusPending {
			result = append(result, copyEvent(e))
		}
	}
	sortEvents(result)
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// MarkPublished records a successful publish attempt.
func (s *OutboxStore) MarkPublished(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.data[id]
	if !exists {
		return storage.ErrNotFound
	}
	published := at
	e.Status = domain.OutboxStatusPublished
	e.Attempts++
	e.PublishedAt = &published
	return nil
}

// RecordFailure records a failed publish attempt; the event stays PENDING.
func (s *OutboxStore) RecordFailure(_ context.Context, id uuid.UUID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.data[id]
	if !exists {
		return storage.ErrNotFound
	}
	e.Attempts++
	e.LastError = reason
	return nil
}

func copyEvent(e *domain.OutboxEvent) *domain.OutboxEvent {
	ec := *e
	ec.Payload = append([]byte(nil), e.Payload...)
	if e.PublishedAt != nil {
		at := *e.PublishedAt
		ec.PublishedAt = &at
	}
	return &ec
}

func sortEvents(events []*domain.OutboxEvent) {
	sort.Slice(events, func(i, j int) bool {
		if !events[i].CreatedAt.Equal(events[j].CreatedAt) {
			return events[i].CreatedAt.Before(events[j].CreatedAt)
		}
		return events[i].ID.String() < events[j].ID.String()
	})
}

var _ storage.OutboxStore = (*OutboxStore)(nil)

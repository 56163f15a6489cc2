package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"canonical-trade-ingest/internal/domain"
	"canonical-trade-ingest/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
// Trades and events share one lock so SaveWithEvent is atomic.
type TradeStore struct {
	outbox *OutboxStore
	data   map[uuid.UUID]*domain.CanonicalTrade // keyed by trade id, guarded by outbox.mu
}

// NewTradeStore creates a trade store that writes events into outbox.
func NewTradeStore(outbox *OutboxStore) *TradeStore {
	return &TradeStore{
		outbox: outbox,
		data:   make(map[uuid.UUID]*domain.CanonicalTrade),
	}
}

// SaveWithEvent stores the trade and its event, or neither.
func (s *TradeStore) SaveWithEvent(_ context.Context, t *domain.CanonicalTrade, e *domain.OutboxEvent) error {
	if t == nil || e == nil || t.ID == uuid.Nil || e.ID == uuid.Nil || e.AggregateID != t.ID {
		return storage.ErrInvalidInput
	}

	s.outbox.mu.Lock()
	defer s.outbox.mu.Unlock()

	if _, exists := s.data[t.ID]; exists {
		return storage.ErrDuplicateKey
	}
	if _, exists := s.outbox.data[e.ID]; exists {
		return storage.ErrDuplicateKey
	}

	tc := *t
	s.data[t.ID] = &tc
	s.outbox.data[e.ID] = copyEvent(e)
	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeStore) GetByID(_ context.Context, id uuid.UUID) (*domain.CanonicalTrade, error) {
	s.outbox.mu.RLock()
	defer s.outbox.mu.RUnlock()

	t, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	tc := *t
	return &tc, nil
}

// GetBySourceFile retrieves all trades from a file, ordered by record ordinal ASC.
func (s *TradeStore) GetBySourceFile(_ context.Context, sourceFile string) ([]*domain.CanonicalTrade, error) {
	s.outbox.mu.RLock()
	defer s.outbox.mu.RUnlock()

	var result []*domain.CanonicalTrade
	for _, t := range s.data {
		if t.SourceFile == sourceFile {
			tc := *t
			result = append(result, &tc)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].RecordOrdinal < result[j].RecordOrdinal
	})

	return result, nil
}

var _ storage.TradeStore = (*TradeStore)(nil)

package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"canonical-trade-ingest/internal/domain"
)

// TradeStore provides access to canonical_trades storage.
type TradeStore interface {
	// SaveWithEvent inserts a trade and its outbox event in one unit of work.
	// Neither is visible unless both are stored.
	// Returns ErrDuplicateKey if the trade or event ID exists,
	// ErrInvalidInput if the event does not reference the trade.
	SaveWithEvent(ctx context.Context, trade *domain.CanonicalTrade, event *domain.OutboxEvent) error

	// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.CanonicalTrade, error)

	// GetBySourceFile retrieves all trades from a file, ordered by record ordinal ASC.
	GetBySourceFile(ctx context.Context, sourceFile string) ([]*domain.CanonicalTrade, error)
}

// OutboxStore provides access to outbox_events storage.
// Events are created through TradeStore.SaveWithEvent.
type OutboxStore interface {
	// GetByID retrieves an event by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.OutboxEvent, error)

	// GetByAggregateID retrieves all events for a trade, ordered by created_at ASC.
	GetByAggregateID(ctx context.Context, aggregateID uuid.UUID) ([]*domain.OutboxEvent, error)

	// GetPending retrieves up to limit PENDING events, oldest first.
	GetPending(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)

	// MarkPublished records a successful publish attempt.
	// Returns ErrNotFound if the event does not exist.
	MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error

	// RecordFailure records a failed publish attempt; the event stays PENDING.
	// Returns ErrNotFound if the event does not exist.
	RecordFailure(ctx context.Context, id uuid.UUID, reason string) error
}

// ProcessedFileStore persists the names of files that were fully processed,
// so the watcher does not re-ingest them after a restart.
type ProcessedFileStore interface {
	// MarkProcessed records a file as processed. Idempotent.
	MarkProcessed(ctx context.Context, fileName string, at time.Time) error

	// IsProcessed checks if a file has been processed.
	IsProcessed(ctx context.Context, fileName string) (bool, error)

	// LoadProcessed returns all processed file names (for warming the in-memory tracker).
	LoadProcessed(ctx context.Context) ([]string, error)

	// Forget removes a file from the history so it may be processed again.
	Forget(ctx context.Context, fileName string) error

	// Clear removes all history.
	Clear(ctx context.Context) error
}

// ProcessingResultStore is the append-only audit log of file outcomes.
type ProcessingResultStore interface {
	// Insert appends a result. Returns ErrInvalidInput if FileName is empty.
	Insert(ctx context.Context, r *domain.ProcessingResult) error

	// GetByFileName retrieves all results for a file, ordered by processed_at ASC.
	GetByFileName(ctx context.Context, fileName string) ([]*domain.ProcessingResult, error)
}

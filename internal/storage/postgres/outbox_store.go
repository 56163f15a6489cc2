package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"canonical-trade-ingest/internal/domain"
	"canonical-trade-ingest/internal/storage"
)

// OutboxStore implements storage.OutboxStore using PostgreSQL.
type OutboxStore struct {
	pool *Pool
}

// NewOutboxStore creates a new OutboxStore.
func NewOutboxStore(pool *Pool) *OutboxStore {
	return &OutboxStore{pool: pool}
}

// Compile-time interface check.
var _ storage.OutboxStore = (*OutboxStore)(nil)

const outboxColumns = `
	id, aggregate_id, event_type, payload, status,
	attempts, last_error, created_at, published_at
`

// GetByID retrieves an event by its ID. Returns ErrNotFound if not exists.
func (s *OutboxStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.OutboxEvent, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+outboxColumns+` FROM outbox_events WHERE id = $1`, id)
	e, err := scanEvent(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get outbox event by id: %w", err)
	}
	return e, nil
}

// GetByAggregateID retrieves all events for a trade, ordered by created_at ASC.
func (s *OutboxStore) GetByAggregateID(ctx context.Context, aggregateID uuid.UUID) ([]*domain.OutboxEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+outboxColumns+`
		FROM outbox_events
		WHERE aggregate_id = $1
		ORDER BY created_at ASC, id ASC
	`, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("get outbox events by aggregate id: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetPending retrieves up to limit PENDING events, oldest first.
func (s *OutboxStore) GetPending(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+outboxColumns+`
		FROM outbox_events
		WHERE status = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2
	`, string(domain.OutboxStatusPending), limit)
	if err != nil {
		return nil, fmt.Errorf("get pending outbox events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// MarkPublished records a successful publish attempt.
func (s *OutboxStore) MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE outbox_events
		SET status = $2, attempts = attempts + 1, published_at = $3
		WHERE id = $1
	`, id, string(domain.OutboxStatusPublished), at)
	if err != nil {
		return fmt.Errorf("mark outbox event published: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// RecordFailure records a failed publish attempt; the event stays PENDING.
func (s *OutboxStore) RecordFailure(ctx context.Context, id uuid.UUID, reason string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE outbox_events
		SET attempts = attempts + 1, last_error = $2
		WHERE id = $1
	`, id, reason)
	if err != nil {
		return fmt.Errorf("record outbox failure: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanEvent scans a single row into an OutboxEvent.
func scanEvent(row pgx.Row) (*domain.OutboxEvent, error) {
	var (
		e      domain.OutboxEvent
		status string
	)

	err := row.Scan(
		&e.ID, &e.AggregateID, &e.EventType, &e.Payload, &status,
		&e.Attempts, &e.LastError, &e.CreatedAt, &e.PublishedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Status = domain.OutboxStatus(status)
	e.CreatedAt = e.CreatedAt.UTC()
	e.PublishedAt = utcPtr(e.PublishedAt)
	return &e, nil
}

// scanEvents scans multiple rows into a slice of OutboxEvent.
func scanEvents(rows pgx.Rows) ([]*domain.OutboxEvent, error) {
	var events []*domain.OutboxEvent

	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan outbox event row: %w", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox event rows: %w", err)
	}

	return events, nil
}

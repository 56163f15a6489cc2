package domain

import (
	"time"

	"github.com/google/uuid"
)

// OutboxEvent is the durable record of intent to announce a persisted trade.
// Corresponds to outbox_events table in PostgreSQL.
type OutboxEvent struct {
	ID          uuid.UUID    // event identifier
	AggregateID uuid.UUID    // canonical trade ID
	EventType   string       // e.g. CANONICAL.CREATED
	Payload     []byte       // JSON document of the trade
	Status      OutboxStatus // PENDING until the queue accepts it
	Attempts    int          // publish attempts so far
	LastError   string       // last publish failure, empty if none
	CreatedAt   time.Time
	PublishedAt *time.Time // nil while PENDING
}

// OutboxStatus is the delivery state of an outbox event.
type OutboxStatus string

// Outbox status constants
const (
	OutboxStatusPending   OutboxStatus = "PENDING"
	OutboxStatusPublished OutboxStatus = "PUBLISHED"
)

// Event type constants
const (
	EventTypeCanonicalCreated = "CANONICAL.CREATED"
)

// Package outbox persists canonical trades together with their CANONICAL.CREATED
// event and publishes the event to the message queue.
//
// A trade counts as recorded once SaveWithEvent commits. Publishing happens
// afterwards; a failed publish leaves the event PENDING with the attempt and
// error recorded, and never undoes the trade.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"canonical-trade-ingest/internal/domain"
	"canonical-trade-ingest/internal/idhash"
	"canonical-trade-ingest/internal/observability"
	"canonical-trade-ingest/internal/queue"
	"canonical-trade-ingest/internal/storage"
)

// Message headers sent with every event.
const (
	HeaderIdempotencyKey = "idempotency-key"
	HeaderRecordKey      = "record-key"
	HeaderEventType      = "event-type"
	HeaderEventID        = "event-id"
	HeaderTradeID        = "trade-id"
)

const contentTypeJSON = "application/json"

// Delivery is the outcome of RecordAndPublish for one trade.
type Delivery struct {
	Trade      *domain.CanonicalTrade
	Event      *domain.OutboxEvent
	PublishErr error // nil when the queue accepted the event
}

// Published reports whether the event reached the queue.
func (d *Delivery) Published() bool {
	return d.PublishErr == nil
}

// Options configures a Service.
type Options struct {
	TradeStore  storage.TradeStore
	OutboxStore storage.OutboxStore
	Publisher   queue.Publisher

	// Destination defaults to queue.DefaultDestination.
	Destination string

	Now    func() time.Time
	NewID  func() uuid.UUID
	Logger *log.Logger
}

// Service records trades with their outbox event and publishes the event.
type Service struct {
	trades      storage.TradeStore
	outbox      storage.OutboxStore
	publisher   queue.Publisher
	destination string
	now         func() time.Time
	newID       func() uuid.UUID
	logger      *log.Logger
}

// New creates a Service.
func New(opts Options) *Service {
	if opts.Destination == "" {
		opts.Destination = queue.DefaultDestination
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.New
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	return &Service{
		trades:      opts.TradeStore,
		outbox:      opts.OutboxStore,
		publisher:   opts.Publisher,
		destination: opts.Destination,
		now:         opts.Now,
		newID:       opts.NewID,
		logger:      opts.Logger,
	}
}

// Destination returns the queue events are published to.
func (s *Service) Destination() string {
	return s.destination
}

// RecordAndPublish stores trade and a PENDING CANONICAL.CREATED event in one
// unit of work, then publishes the event.
//
// The returned error is non-nil only when nothing was stored. A publish
// failure is reported in Delivery.PublishErr.
func (s *Service) RecordAndPublish(ctx context.Context, trade *domain.CanonicalTrade) (*Delivery, error) {
	if trade == nil {
		return nil, fmt.Errorf("%w: nil trade", storage.ErrInvalidInput)
	}

	payload, err := json.Marshal(trade)
	if err != nil {
		return nil, fmt.Errorf("encode trade %s: %w", trade.ID, err)
	}

	event := &domain.OutboxEvent{
		ID:          s.newID(),
		AggregateID: trade.ID,
		EventType:   domain.EventTypeCanonicalCreated,
		Payload:     payload,
		Status:      domain.OutboxStatusPending,
		CreatedAt:   s.now().UTC(),
	}

	start := time.Now()
	err = s.trades.SaveWithEvent(ctx, trade, event)
	observability.RecordStoreCall("trades", "save_with_event", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("persist trade %s: %w", trade.ID, err)
	}

	recordKey := idhash.ComputeRecordKey(trade.SourceFile, trade.RecordOrdinal, trade.TransactionID)
	return &Delivery{
		Trade:      trade,
		Event:      event,
		PublishErr: s.publish(ctx, event, recordKey),
	}, nil
}

// RepublishPending retries up to limit PENDING events, oldest first, and
// returns how many reached the queue. Events created less than minAge ago are
// skipped: RecordAndPublish may still be publishing them. Individual publish
// failures are recorded on the event and logged.
func (s *Service) RepublishPending(ctx context.Context, limit int, minAge time.Duration) (int, error) {
	events, err := s.outbox.GetPending(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("load pending events: %w", err)
	}

	cutoff := s.now().UTC().Add(-minAge)
	published := 0
	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return published, err
		}
		if event.CreatedAt.After(cutoff) {
			// Oldest first, so the rest are newer still.
			break
		}

		var trade domain.CanonicalTrade
		recordKey := ""
		if err := json.Unmarshal(event.Payload, &trade); err == nil {
			recordKey = idhash.ComputeRecordKey(trade.SourceFile, trade.RecordOrdinal, trade.TransactionID)
		}

		if err := s.publish(ctx, event, recordKey); err != nil {
			s.logger.Printf("republish event %s: %v", event.ID, err)
			continue
		}
		published++
	}
	return published, nil
}

// publish sends event and records the attempt on the stored event and on event itself.
func (s *Service) publish(ctx context.Context, event *domain.OutboxEvent, recordKey string) error {
	msg := queue.Message{
		Body:        event.Payload,
		ContentType: contentTypeJSON,
		Headers: map[string]string{
			HeaderIdempotencyKey: idhash.ComputeEventKey(event.EventType, event.AggregateID.String()),
			HeaderEventType:      event.EventType,
			HeaderEventID:        event.ID.String(),
			HeaderTradeID:        event.AggregateID.String(),
		},
	}
	if recordKey != "" {
		msg.Headers[HeaderRecordKey] = recordKey
	}

	pubErr := s.publisher.Publish(ctx, s.destination, msg)
	observability.RecordPublish(pubErr)

	// Bookkeeping must land even when ctx was cancelled during the publish.
	bookCtx := context.WithoutCancel(ctx)

	event.Attempts++
	if pubErr != nil {
		event.LastError = pubErr.Error()
		if err := s.outbox.RecordFailure(bookCtx, event.ID, event.LastError); err != nil {
			s.logger.Printf("record publish failure for event %s: %v", event.ID, err)
		}
		return fmt.Errorf("publish event %s to %s: %w", event.ID, s.destination, pubErr)
	}

	at := s.now().UTC()
	event.Status = domain.OutboxStatusPublished
	event.PublishedAt = &at
	if err := s.outbox.MarkPublished(bookCtx, event.ID, at); err != nil {
		// The broker has the message; only the stored status lags.
		s.logger.Printf("mark event %s published: %v", event.ID, err)
	}
	return nil
}

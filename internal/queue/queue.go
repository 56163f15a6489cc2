// Package queue publishes messages to named destinations on a message broker.
package queue

import (
	"context"
	"errors"
)

// DefaultDestination is the queue canonical trade events are sent to.
const DefaultDestination = "canonical.trades.queue"

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("publisher closed")

// Message is one message to publish.
type Message struct {
	Body        []byte
	ContentType string            // e.g. application/json
	Headers     map[string]string // broker headers, e.g. idempotency-key
}

// Publisher sends messages to a broker. Publish returns nil only once the
// broker has accepted the message. Implementations are safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, destination string, msg Message) error
	Close() error
}

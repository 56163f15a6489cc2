package queue

import (
	"context"
	"sync"
)

// MemoryQueue is an in-process Publisher that keeps messages per destination.
// Used when no broker is configured and in tests.
type MemoryQueue struct {
	mu       sync.Mutex
	messages map[string][]Message
	failWith error
	closed   bool
}

// NewMemoryQueue creates an empty queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{messages: make(map[string][]Message)}
}

// Publish appends msg to destination, or returns the configured failure.
func (q *MemoryQueue) Publish(ctx context.Context, destination string, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	if q.failWith != nil {
		return q.failWith
	}

	q.messages[destination] = append(q.messages[destination], copyMessage(msg))
	return nil
}

// SetFailure makes every Publish return err until cleared with nil.
func (q *MemoryQueue) SetFailure(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failWith = err
}

// Messages returns the messages published to destination, oldest first.
func (q *MemoryQueue) Messages(destination string) []Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Message, len(q.messages[destination]))
	for i, m := range q.messages[destination] {
		out[i] = copyMessage(m)
	}
	return out
}

// Len returns the number of messages published to destination.
func (q *MemoryQueue) Len(destination string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages[destination])
}

// Close rejects further publishes.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}

func copyMessage(m Message) Message {
	c := Message{
		Body:        append([]byte(nil), m.Body...),
		ContentType: m.ContentType,
	}
	if m.Headers != nil {
		c.Headers = make(map[string]string, len(m.Headers))
		for k, v := range m.Headers {
			c.Headers[k] = v
		}
	}
	return c
}

var _ Publisher = (*MemoryQueue)(nil)

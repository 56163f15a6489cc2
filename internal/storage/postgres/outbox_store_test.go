package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canonical-trade-ingest/internal/domain"
	"canonical-trade-ingest/internal/storage"
)

func TestOutboxStore_RecordFailureThenPublish(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	trades := NewTradeStore(pool)
	outbox := NewOutboxStore(pool)

	trade := newTestTrade("orders.json", 1)
	event := newTestEvent(trade)
	require.NoError(t, trades.SaveWithEvent(ctx, trade, event))

	require.NoError(t, outbox.RecordFailure(ctx, event.ID, "connection refused"))

	got, err := outbox.GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutboxStatusPending, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, "connection refused", got.LastError)

	at := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	require.NoError(t, outbox.MarkPublished(ctx, event.ID, at))

	got, err = outbox.GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutboxStatusPublished, got.Status)
	assert.Equal(t, 2, got.Attempts)
	require.NotNil(t, got.PublishedAt)
	assert.True(t, at.Equal(*got.PublishedAt))
}

func TestOutboxStore_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	outbox := NewOutboxStore(pool)

	_, err := outbox.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, outbox.MarkPublished(ctx, uuid.New(), time.Now()), storage.ErrNotFound)
	assert.ErrorIs(t, outbox.RecordFailure(ctx, uuid.New(), "x"), storage.ErrNotFound)
}

func TestOutboxStore_GetPending(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	trades := NewTradeStore(pool)
	outbox := NewOutboxStore(pool)

	var events []*domain.OutboxEvent
	for _, ordinal := range []int{1, 2, 3} {
		trade := newTestTrade("pending.json", ordinal)
		event := newTestEvent(trade)
		require.NoError(t, trades.SaveWithEvent(ctx, trade, event))
		events = append(events, event)
	}
	require.NoError(t, outbox.MarkPublished(ctx, events[0].ID, time.Now()))

	pending, err := outbox.GetPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, events[1].ID, pending[0].ID)
	assert.Equal(t, events[2].ID, pending[1].ID)

	pending, err = outbox.GetPending(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	_, err = outbox.GetPending(ctx, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canonical-trade-ingest/internal/domain"
	"canonical-trade-ingest/internal/storage"
)

func newTestTrade(sourceFile string, ordinal int) *domain.CanonicalTrade {
	amount := decimal.RequireFromString("1234.56")
	return &domain.CanonicalTrade{
		ID:              uuid.New(),
		RecordOrdinal:   ordinal,
		SourceFile:      sourceFile,
		OriginatorType:  "A",
		FirmNumber:      ptr(int64(12)),
		FundNumber:      ptr(int64(345)),
		TransactionType: domain.TransactionTypeBuy,
		TransactionID:   fmt.Sprintf("TXN-%d", ordinal),
		TradeDate:       ptr(time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)),
		DollarAmount:    &amount,
		ClientAccountNo: "ACC-1",
		ClientName:      "Jane Doe",
		TaxID:           "123456789",
		DateOfBirth:     ptr(time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)),
		KYC:             "Y",
		Status:          domain.TradeStatusReceived,
		CreatedAt:       time.Date(2024, 3, 15, 10, 0, ordinal, 0, time.UTC),
	}
}

func newTestEvent(trade *domain.CanonicalTrade) *domain.OutboxEvent {
	return &domain.OutboxEvent{
		ID:          uuid.New(),
		AggregateID: trade.ID,
		EventType:   domain.EventTypeCanonicalCreated,
		Payload:     []byte(`{"id": "` + trade.ID.String() + `"}`),
		Status:      domain.OutboxStatusPending,
		CreatedAt:   trade.CreatedAt,
	}
}

func TestTradeStore_SaveWithEventAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeStore(pool)
	outbox := NewOutboxStore(pool)

	trade := newTestTrade("orders.json", 1)
	event := newTestEvent(trade)

	require.NoError(t, store.SaveWithEvent(ctx, trade, event))

	got, err := store.GetByID(ctx, trade.ID)
	require.NoError(t, err)

	assert.Equal(t, trade.ID, got.ID)
	assert.Equal(t, trade.SourceFile, got.SourceFile)
	assert.Equal(t, trade.RecordOrdinal, got.RecordOrdinal)
	assert.Equal(t, trade.FirmNumber, got.FirmNumber)
	assert.Equal(t, trade.FundNumber, got.FundNumber)
	assert.Equal(t, trade.TransactionID, got.TransactionID)
	require.NotNil(t, got.TradeDate)
	assert.True(t, trade.TradeDate.Equal(*got.TradeDate))
	require.NotNil(t, got.DollarAmount)
	assert.True(t, trade.DollarAmount.Equal(*got.DollarAmount))
	assert.Nil(t, got.ShareQuantity)
	require.NotNil(t, got.DateOfBirth)
	assert.True(t, trade.DateOfBirth.Equal(*got.DateOfBirth))
	assert.Equal(t, trade.TaxID, got.TaxID)
	assert.Equal(t, domain.TradeStatusReceived, got.Status)
	assert.True(t, trade.CreatedAt.Equal(got.CreatedAt))

	events, err := outbox.GetByAggregateID(ctx, trade.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, event.ID, events[0].ID)
	assert.Equal(t, domain.OutboxStatusPending, events[0].Status)
	assert.Equal(t, domain.EventTypeCanonicalCreated, events[0].EventType)
	assert.JSONEq(t, string(event.Payload), string(events[0].Payload))
	assert.Nil(t, events[0].PublishedAt)
}

func TestTradeStore_NullableColumns(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeStore(pool)

	trade := &domain.CanonicalTrade{
		ID:              uuid.New(),
		RecordOrdinal:   1,
		SourceFile:      "sparse.csv",
		TransactionType: domain.TransactionTypeSell,
		ShareQuantity:   ptr(decimal.NewFromInt(10)),
		Status:          domain.TradeStatusReceived,
		CreatedAt:       time.Now().UTC(),
	}
	require.NoError(t, store.SaveWithEvent(ctx, trade, newTestEvent(trade)))

	got, err := store.GetByID(ctx, trade.ID)
	require.NoError(t, err)
	assert.Nil(t, got.FirmNumber)
	assert.Nil(t, got.FundNumber)
	assert.Nil(t, got.TradeDate)
	assert.Nil(t, got.DollarAmount)
	assert.Nil(t, got.DateOfBirth)
	require.NotNil(t, got.ShareQuantity)
	assert.True(t, got.ShareQuantity.Equal(decimal.NewFromInt(10)))
}

func TestTradeStore_DuplicateEventRollsBackTrade(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeStore(pool)

	first := newTestTrade("orders.json", 1)
	event := newTestEvent(first)
	require.NoError(t, store.SaveWithEvent(ctx, first, event))

	// Same event id for a new trade: the event insert fails, so the trade must not persist.
	second := newTestTrade("orders.json", 2)
	dup := *event
	dup.AggregateID = second.ID
	err := store.SaveWithEvent(ctx, second, &dup)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	_, err = store.GetByID(ctx, second.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTradeStore_DuplicateTrade(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeStore(pool)

	trade := newTestTrade("orders.json", 1)
	require.NoError(t, store.SaveWithEvent(ctx, trade, newTestEvent(trade)))

	err := store.SaveWithEvent(ctx, trade, newTestEvent(trade))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestTradeStore_InvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeStore(pool)

	trade := newTestTrade("orders.json", 1)
	other := newTestEvent(newTestTrade("orders.json", 2))
	assert.ErrorIs(t, store.SaveWithEvent(ctx, trade, other), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.SaveWithEvent(ctx, trade, nil), storage.ErrInvalidInput)
}

func TestTradeStore_GetByIDNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := NewTradeStore(pool).GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTradeStore_GetBySourceFile(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeStore(pool)

	for _, ordinal := range []int{3, 1, 2} {
		trade := newTestTrade("batch.csv", ordinal)
		require.NoError(t, store.SaveWithEvent(ctx, trade, newTestEvent(trade)))
	}
	other := newTestTrade("other.csv", 1)
	require.NoError(t, store.SaveWithEvent(ctx, other, newTestEvent(other)))

	trades, err := store.GetBySourceFile(ctx, "batch.csv")
	require.NoError(t, err)
	require.Len(t, trades, 3)
	for i, tr := range trades {
		assert.Equal(t, i+1, tr.RecordOrdinal)
	}

	trades, err = store.GetBySourceFile(ctx, "missing.csv")
	require.NoError(t, err)
	assert.Empty(t, trades)
}

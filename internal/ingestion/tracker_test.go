package ingestion

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canonical-trade-ingest/internal/storage/memory"
)

func TestMemoryTracker_Lifecycle(t *testing.T) {
	ctx := context.Background()
	tr := NewMemoryTracker()

	require.True(t, tr.Claim("a.json"))
	assert.False(t, tr.Claim("a.json"), "claimed twice")
	assert.Equal(t, TrackerStats{Processing: 1}, tr.Stats())

	tr.Release("a.json")
	assert.False(t, tr.IsProcessed("a.json"))
	require.True(t, tr.Claim("a.json"), "released name can be claimed again")

	require.NoError(t, tr.Complete(ctx, "a.json"))
	assert.True(t, tr.IsProcessed("a.json"))
	assert.False(t, tr.Claim("a.json"), "processed name cannot be claimed")
	assert.Equal(t, TrackerStats{Processed: 1}, tr.Stats())

	require.NoError(t, tr.Forget(ctx, "a.json"))
	assert.True(t, tr.Claim("a.json"))

	require.NoError(t, tr.Complete(ctx, "a.json"))
	require.True(t, tr.Claim("b.json"))
	require.NoError(t, tr.Reset(ctx))
	assert.Equal(t, TrackerStats{Processing: 1}, tr.Stats(), "reset keeps claims in flight")
}

func TestMemoryTracker_ConcurrentClaim(t *testing.T) {
	tr := NewMemoryTracker()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tr.Claim("same.json") {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestPersistentTracker(t *testing.T) {
	ctx := context.Background()
	store := memory.NewProcessedFileStore()
	require.NoError(t, store.MarkProcessed(ctx, "old.json", time.Now()))

	tr, err := NewPersistentTracker(ctx, store)
	require.NoError(t, err)
	assert.True(t, tr.IsProcessed("old.json"), "history is loaded on start")
	assert.False(t, tr.Claim("old.json"))

	require.True(t, tr.Claim("new.csv"))
	require.NoError(t, tr.Complete(ctx, "new.csv"))
	ok, err := store.IsProcessed(ctx, "new.csv")
	require.NoError(t, err)
	assert.True(t, ok, "completion is written through")

	// A fresh tracker over the same store remembers both files.
	restarted, err := NewPersistentTracker(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, TrackerStats{Processed: 2}, restarted.Stats())

	require.True(t, restarted.Claim("pending.xml"))
	restarted.Release("pending.xml")
	ok, err = store.IsProcessed(ctx, "pending.xml")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, restarted.Forget(ctx, "old.json"))
	assert.False(t, restarted.IsProcessed("old.json"))
	ok, err = store.IsProcessed(ctx, "old.json")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, restarted.Reset(ctx))
	names, err := store.LoadProcessed(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
	assert.Equal(t, 0, restarted.Stats().Processed)
}

package ingestion

import (
	"context"
	"fmt"
	"time"

	"canonical-trade-ingest/internal/storage"
)

// PersistentTracker is a MemoryTracker whose processed set is also written to
// a ProcessedFileStore, so a restarted process does not ingest a file again.
// Claims are not persisted: a file in flight at shutdown is retried.
type PersistentTracker struct {
	mem   *MemoryTracker
	store storage.ProcessedFileStore
	now   func() time.Time
}

// NewPersistentTracker creates a tracker and loads the processed history from store.
func NewPersistentTracker(ctx context.Context, store storage.ProcessedFileStore) (*PersistentTracker, error) {
	names, err := store.LoadProcessed(ctx)
	if err != nil {
		return nil, fmt.Errorf("load processed files: %w", err)
	}

	t := &PersistentTracker{
		mem:   NewMemoryTracker(),
		store: store,
		now:   time.Now,
	}
	t.mem.markProcessed(names...)
	return t, nil
}

// Claim reserves name if it is neither in flight nor in the loaded history.
func (t *PersistentTracker) Claim(name string) bool {
	return t.mem.Claim(name)
}

// Complete marks name processed in memory and in the store. The in-memory
// state is updated even when the store write fails.
func (t *PersistentTracker) Complete(ctx context.Context, name string) error {
	_ = t.mem.Complete(ctx, name)
	if err := t.store.MarkProcessed(ctx, name, t.now().UTC()); err != nil {
		return fmt.Errorf("persist processed file %s: %w", name, err)
	}
	return nil
}

// Release drops the claim on name.
func (t *PersistentTracker) Release(name string) {
	t.mem.Release(name)
}

// IsProcessed reports whether name has been processed.
func (t *PersistentTracker) IsProcessed(name string) bool {
	return t.mem.IsProcessed(name)
}

// Forget removes name from the store and from memory.
func (t *PersistentTracker) Forget(ctx context.Context, name string) error {
	if err := t.store.Forget(ctx, name); err != nil {
		return fmt.Errorf("forget processed file %s: %w", name, err)
	}
	return t.mem.Forget(ctx, name)
}

// Stats returns the in-memory set sizes.
func (t *PersistentTracker) Stats() TrackerStats {
	return t.mem.Stats()
}

// Reset clears the stored history and the in-memory processed set.
func (t *PersistentTracker) Reset(ctx context.Context) error {
	if err := t.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear processed files: %w", err)
	}
	return t.mem.Reset(ctx)
}

var _ Tracker = (*PersistentTracker)(nil)

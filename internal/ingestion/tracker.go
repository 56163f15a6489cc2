package ingestion

import (
	"context"
	"sync"
)

// Tracker records which input files are being processed and which are done,
// so each file is handed to the processor once.
//
// A name moves through Claim → Complete (processed) or Claim → Release
// (eligible again). Implementations are safe for concurrent use.
type Tracker interface {
	// Claim atomically reserves name for processing. It returns false if name is
	// already being processed or has been processed.
	Claim(name string) bool

	// Complete moves a claimed name to the processed set.
	Complete(ctx context.Context, name string) error

	// Release drops a claim without marking the name processed.
	Release(name string)

	// IsProcessed reports whether name has been processed.
	IsProcessed(name string) bool

	// Forget removes name from the processed set so it can be claimed again.
	Forget(ctx context.Context, name string) error

	// Stats returns the current set sizes.
	Stats() TrackerStats

	// Reset clears the processed set. Claims in flight are kept.
	Reset(ctx context.Context) error
}

// TrackerStats holds tracker set sizes.
type TrackerStats struct {
	Processing int `json:"processing"`
	Processed  int `json:"processed"`
}

// MemoryTracker keeps both sets in process memory under one mutex.
type MemoryTracker struct {
	mu         sync.Mutex
	processing map[string]struct{}
	processed  map[string]struct{}
}

// NewMemoryTracker creates an empty tracker.
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{
		processing: make(map[string]struct{}),
		processed:  make(map[string]struct{}),
	}
}

// Claim reserves name if it is in neither set.
func (t *MemoryTracker) Claim(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.processing[name]; ok {
		return false
	}
	if _, ok := t.processed[name]; ok {
		return false
	}
	t.processing[name] = struct{}{}
	return true
}

// Complete marks name processed.
func (t *MemoryTracker) Complete(_ context.Context, name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.processing, name)
	t.processed[name] = struct{}{}
	return nil
}

// Release drops the claim on name.
func (t *MemoryTracker) Release(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.processing, name)
}

// IsProcessed reports whether name is in the processed set.
func (t *MemoryTracker) IsProcessed(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.processed[name]
	return ok
}

// Forget removes name from the processed set.
func (t *MemoryTracker) Forget(_ context.Context, name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.processed, name)
	return nil
}

// Stats returns the set sizes.
func (t *MemoryTracker) Stats() TrackerStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return TrackerStats{Processing: len(t.processing), Processed: len(t.processed)}
}

// Reset clears the processed set.
func (t *MemoryTracker) Reset(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.processed = make(map[string]struct{})
	return nil
}

// markProcessed adds names to the processed set without claiming them.
func (t *MemoryTracker) markProcessed(names ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, name := range names {
		t.processed[name] = struct{}{}
	}
}

var _ Tracker = (*MemoryTracker)(nil)

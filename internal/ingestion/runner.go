// Package ingestion watches the input directory and hands each new order file
// to the processor exactly once, on a bounded pool of workers.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"canonical-trade-ingest/internal/domain"
	"canonical-trade-ingest/internal/observability"
	"canonical-trade-ingest/internal/parser"
)

// ErrInProgress is returned by ProcessNow when the file is already being processed.
var ErrInProgress = errors.New("file is already being processed")

// Processor processes one input file. Implemented by orchestrator.Orchestrator.
type Processor interface {
	ProcessFile(ctx context.Context, name string) (*domain.ProcessingResult, error)
}

// Runner watches a directory and dispatches claimed files to workers.
type Runner struct {
	dir           string
	processor     Processor
	tracker       Tracker
	workers       int
	settleDelay   time.Duration // wait before processing a newly seen file
	scanInterval  time.Duration // reconciliation scan period
	shutdownGrace time.Duration // time allowed for in-flight work on shutdown
	logger        *log.Logger

	queue  chan string
	mu     sync.RWMutex // guards closed against sends on queue
	closed bool
	busy   atomic.Int32
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Dir       string
	Processor Processor
	Tracker   Tracker // Default: in-memory tracker

	Workers       int           // Default: 4
	QueueSize     int           // Default: 100
	SettleDelay   time.Duration // Default: 500ms; negative disables
	ScanInterval  time.Duration // Default: 30s
	ShutdownGrace time.Duration // Default: 60s
	Logger        *log.Logger
}

// NewRunner creates a new ingestion runner.
func NewRunner(opts RunnerOptions) *Runner {
	if opts.Tracker == nil {
		opts.Tracker = NewMemoryTracker()
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 100
	}
	if opts.SettleDelay == 0 {
		opts.SettleDelay = 500 * time.Millisecond
	}
	if opts.SettleDelay < 0 {
		opts.SettleDelay = 0
	}
	if opts.ScanInterval <= 0 {
		opts.ScanInterval = 30 * time.Second
	}
	if opts.ShutdownGrace <= 0 {
		opts.ShutdownGrace = 60 * time.Second
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Runner{
		dir:           opts.Dir,
		processor:     opts.Processor,
		tracker:       opts.Tracker,
		workers:       opts.Workers,
		settleDelay:   opts.SettleDelay,
		scanInterval:  opts.ScanInterval,
		shutdownGrace: opts.ShutdownGrace,
		logger:        logger,
		queue:         make(chan string, opts.QueueSize),
	}
}

// ensureDir creates the input directory when it does not exist yet.
func (r *Runner) ensureDir() error {
	info, err := os.Stat(r.dir)
	switch {
	case err == nil && !info.IsDir():
		return fmt.Errorf("input path %s is not a directory", r.dir)
	case err == nil:
		return nil
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("stat %s: %w", r.dir, err)
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create input directory: %w", err)
	}
	r.logger.Printf("Created input directory %s", r.dir)
	return nil
}

// Tracker returns the tracker used by the runner.
func (r *Runner) Tracker() Tracker {
	return r.tracker
}

// Run watches the directory until ctx is cancelled, then stops accepting
// files and waits up to the shutdown grace period for workers to finish.
// Work still running after that is cancelled and its claims released.
// A Runner can be run once.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.ensureDir(); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(r.dir); err != nil {
		return fmt.Errorf("watch %s: %w", r.dir, err)
	}

	// Workers get their own context so in-flight files can finish during the grace period.
	workCtx, cancelWork := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWork()

	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go r.worker(workCtx, &wg)
	}

	r.logger.Printf("Watching %s: workers=%d settle=%v scan=%v", r.dir, r.workers, r.settleDelay, r.scanInterval)
	r.scan()

	ticker := time.NewTicker(r.scanInterval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop

		case event, ok := <-watcher.Events:
			if !ok {
				r.logger.Println("Watcher events channel closed")
				break loop
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				r.submitPath(event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				r.logger.Println("Watcher errors channel closed")
				break loop
			}
			r.logger.Printf("Watcher error: %v", err)

		case <-ticker.C:
			r.scan()
		}
	}

	r.logger.Println("Runner stopping...")
	watcher.Close()
	r.closeQueue()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(r.shutdownGrace):
		r.logger.Printf("Shutdown grace %v exceeded, cancelling in-flight files", r.shutdownGrace)
		cancelWork()
		<-done
	}

	r.logger.Println("Runner stopped")
	return nil
}

// Submit claims name and queues it for a worker. It returns false if the name
// is unsupported, already claimed or processed, or the queue is full or closed.
// A full queue releases the claim so a later scan can retry.
func (r *Runner) Submit(name string) bool {
	if !parser.IsSupported(name) {
		return false
	}
	if !r.tracker.Claim(name) {
		return false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.tracker.Release(name)
		return false
	}

	select {
	case r.queue <- name:
		r.updateMetrics()
		return true
	default:
		r.tracker.Release(name)
		observability.RecordDeferred()
		r.logger.Printf("Work queue full, deferring %s to next scan", name)
		return false
	}
}

// ProcessNow processes name synchronously, outside the work queue. A file
// processed earlier is forgotten and processed again. Returns ErrInProgress
// if a worker currently holds the file.
func (r *Runner) ProcessNow(ctx context.Context, name string) (*domain.ProcessingResult, error) {
	if r.tracker.IsProcessed(name) {
		if err := r.tracker.Forget(ctx, name); err != nil {
			return nil, err
		}
	}
	if !r.tracker.Claim(name) {
		return nil, fmt.Errorf("%w: %s", ErrInProgress, name)
	}

	result, err := r.processor.ProcessFile(ctx, name)
	if err != nil {
		r.tracker.Release(name)
		return nil, err
	}
	if err := r.tracker.Complete(context.WithoutCancel(ctx), name); err != nil {
		r.logger.Printf("Error completing %s: %v", name, err)
	}
	r.updateMetrics()
	return result, nil
}

// RunnerStats is a snapshot of runner state.
type RunnerStats struct {
	Tracker    TrackerStats `json:"tracker"`
	QueueDepth int          `json:"queueDepth"`
	Busy       int          `json:"busy"`
}

// Stats returns current runner statistics.
func (r *Runner) Stats() RunnerStats {
	return RunnerStats{
		Tracker:    r.tracker.Stats(),
		QueueDepth: len(r.queue),
		Busy:       int(r.busy.Load()),
	}
}

// scan submits every regular file in the directory.
func (r *Runner) scan() {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		r.logger.Printf("Error scanning %s: %v", r.dir, err)
		return
	}

	submitted := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if r.Submit(entry.Name()) {
			submitted++
		}
	}
	if submitted > 0 {
		r.logger.Printf("Scan queued %d file(s)", submitted)
	}
}

func (r *Runner) submitPath(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return
	}
	r.Submit(filepath.Base(path))
}

func (r *Runner) closeQueue() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
}

func (r *Runner) worker(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	for name := range r.queue {
		if ctx.Err() != nil {
			r.tracker.Release(name)
			continue
		}
		r.handle(ctx, name)
	}
}

// handle processes one claimed file and completes or releases the claim.
func (r *Runner) handle(ctx context.Context, name string) {
	r.busy.Add(1)
	r.updateMetrics()
	defer func() {
		r.busy.Add(-1)
		r.updateMetrics()
	}()

	if r.settleDelay > 0 {
		timer := time.NewTimer(r.settleDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			r.tracker.Release(name)
			return
		case <-timer.C:
		}
	}

	if !r.process(ctx, name) {
		r.tracker.Release(name)
		return
	}
	if err := r.tracker.Complete(context.WithoutCancel(ctx), name); err != nil {
		r.logger.Printf("Error completing %s: %v", name, err)
	}
}

// process runs the processor and reports whether the file finished. Panics are recovered.
func (r *Runner) process(ctx context.Context, name string) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			observability.RecordWorkerPanic()
			r.logger.Printf("Panic processing %s: %v\n%s", name, p, debug.Stack())
			ok = false
		}
	}()

	result, err := r.processor.ProcessFile(ctx, name)
	if err != nil {
		r.logger.Printf("Processing %s did not finish: %v", name, err)
		return false
	}
	if result.Status == domain.FileStatusError {
		r.logger.Printf("File %s failed: %v", name, result.Errors)
	}
	return true
}

func (r *Runner) updateMetrics() {
	observability.UpdateWorkQueue(len(r.queue), int(r.busy.Load()))
	stats := r.tracker.Stats()
	observability.UpdateTrackedFiles(stats.Processing, stats.Processed)
}

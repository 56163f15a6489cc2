// Package pipeline assembles the ingestion components from configuration:
// stores, publisher, outbox service, orchestrator and tracker.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"canonical-trade-ingest/internal/config"
	"canonical-trade-ingest/internal/fixedwidth"
	"canonical-trade-ingest/internal/ingestion"
	"canonical-trade-ingest/internal/orchestrator"
	"canonical-trade-ingest/internal/outbox"
	"canonical-trade-ingest/internal/parser"
	"canonical-trade-ingest/internal/queue"
	"canonical-trade-ingest/internal/storage"
	chstore "canonical-trade-ingest/internal/storage/clickhouse"
	"canonical-trade-ingest/internal/storage/memory"
	"canonical-trade-ingest/internal/storage/migrations"
	pgstore "canonical-trade-ingest/internal/storage/postgres"
)

// Pipeline holds the wired components.
type Pipeline struct {
	Orchestrator *orchestrator.Orchestrator
	Outbox       *outbox.Service
	Tracker      ingestion.Tracker
	Publisher    queue.Publisher

	Trades  storage.TradeStore
	Events  storage.OutboxStore
	Results storage.ProcessingResultStore

	cfg     config.Config
	logger  *log.Logger
	closers []func()
}

// stores holds storage implementations.
type stores struct {
	trades    storage.TradeStore
	events    storage.OutboxStore
	processed storage.ProcessedFileStore
	results   storage.ProcessingResultStore
}

// Build creates all components described by cfg. Postgres and ClickHouse
// schemas are migrated on connect. Close releases connections.
func Build(ctx context.Context, cfg config.Config, logger *log.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = log.Default()
	}
	p := &Pipeline{cfg: cfg, logger: logger}

	layout, err := cfg.Layout()
	if err != nil {
		return nil, fmt.Errorf("fixed-width layout: %w", err)
	}

	s, err := p.createStores(ctx)
	if err != nil {
		p.Close()
		return nil, err
	}

	publisher, err := p.createPublisher()
	if err != nil {
		p.Close()
		return nil, err
	}

	var tracker ingestion.Tracker = ingestion.NewMemoryTracker()
	if s.processed != nil {
		tracker, err = ingestion.NewPersistentTracker(ctx, s.processed)
		if err != nil {
			p.Close()
			return nil, err
		}
	}

	p.Trades = s.trades
	p.Events = s.events
	p.Results = s.results
	p.Publisher = publisher
	p.Tracker = tracker
	p.Outbox = outbox.New(outbox.Options{
		TradeStore:  s.trades,
		OutboxStore: s.events,
		Publisher:   publisher,
		Destination: cfg.QueueDestination,
		Logger:      logger,
	})
	p.Orchestrator = orchestrator.New(orchestrator.Options{
		Loader:      orchestrator.NewDirLoader(cfg.InputDir),
		Recorder:    p.Outbox,
		Parser:      parser.New(fixedwidth.NewDecoder(layout)),
		ResultStore: s.results,
		Logger:      logger,
	})

	logger.Printf("Pipeline ready: input=%s layout=%s postgres=%t clickhouse=%t broker=%t destination=%s",
		cfg.InputDir, layout.Name, cfg.UsePostgres(), cfg.UseClickhouse(), cfg.QueueURL != "", cfg.QueueDestination)
	return p, nil
}

// NewRunner creates a directory runner over the pipeline's orchestrator and tracker.
func (p *Pipeline) NewRunner() *ingestion.Runner {
	return ingestion.NewRunner(ingestion.RunnerOptions{
		Dir:           p.cfg.InputDir,
		Processor:     p.Orchestrator,
		Tracker:       p.Tracker,
		Workers:       p.cfg.Workers,
		QueueSize:     p.cfg.QueueSize,
		SettleDelay:   settleDelay(p.cfg),
		ScanInterval:  p.cfg.ScanInterval,
		ShutdownGrace: p.cfg.ShutdownGrace,
		Logger:        p.logger,
	})
}

// Close releases the publisher and store connections, in reverse order of creation.
func (p *Pipeline) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
	p.closers = nil
}

func (p *Pipeline) createStores(ctx context.Context) (*stores, error) {
	s := &stores{}

	if p.cfg.UsePostgres() {
		pool, err := pgstore.NewPool(ctx, p.cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		p.closers = append(p.closers, pool.Close)

		applied, err := migrations.RunPostgresMigrations(ctx, pool)
		if err != nil {
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}
		if len(applied) > 0 {
			p.logger.Printf("Applied postgres migrations: %v", applied)
		}

		s.trades = pgstore.NewTradeStore(pool)
		s.events = pgstore.NewOutboxStore(pool)
		s.processed = pgstore.NewProcessedFileStore(pool)
	} else {
		events := memory.NewOutboxStore()
		s.trades = memory.NewTradeStore(events)
		s.events = events
		p.logger.Println("Using in-memory trade and outbox stores; processed files are not remembered across restarts")
	}

	if p.cfg.UseClickhouse() {
		conn, err := migrations.RunClickhouseMigrations(ctx, p.cfg.ClickhouseDSN)
		if err != nil {
			return nil, fmt.Errorf("clickhouse: %w", err)
		}
		p.closers = append(p.closers, func() { conn.Close() })
		s.results = chstore.NewProcessingResultStore(conn)
	} else {
		s.results = memory.NewProcessingResultStore()
	}

	return s, nil
}

func (p *Pipeline) createPublisher() (queue.Publisher, error) {
	if p.cfg.QueueURL == "" {
		p.logger.Println("No broker configured; events are kept in an in-process queue")
		q := queue.NewMemoryQueue()
		p.closers = append(p.closers, func() { q.Close() })
		return q, nil
	}

	publisher, err := queue.NewSTOMPPublisher(queue.STOMPConfig{
		URL:      p.cfg.QueueURL,
		Login:    p.cfg.QueueLogin,
		Passcode: p.cfg.QueuePasscode,
		Logger:   p.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create publisher: %w", err)
	}
	p.closers = append(p.closers, func() {
		if err := publisher.Close(); err != nil {
			p.logger.Printf("Error closing publisher: %v", err)
		}
	})
	return publisher, nil
}

// settleDelay maps a configured zero to "no delay"; the runner treats zero as "use default".
func settleDelay(cfg config.Config) time.Duration {
	if cfg.SettleDelay == 0 {
		return -1
	}
	return cfg.SettleDelay
}

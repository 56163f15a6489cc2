// Package orchestrator drives one input file end to end:
// load → parse → map → validate → persist with outbox → publish.
//
// A file is a batch of independent records. Record-level and delivery-level
// failures are collected in the ProcessingResult and never abort the file;
// only file-level failures (unsupported format, unreadable file, parse
// failure) mark the whole result ERROR.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"canonical-trade-ingest/internal/domain"
	"canonical-trade-ingest/internal/mapping"
	"canonical-trade-ingest/internal/observability"
	"canonical-trade-ingest/internal/outbox"
	"canonical-trade-ingest/internal/parser"
	"canonical-trade-ingest/internal/storage"
	"canonical-trade-ingest/internal/validation"
)

// Recorder persists a trade with its outbox event and publishes it.
// Implemented by outbox.Service.
type Recorder interface {
	RecordAndPublish(ctx context.Context, trade *domain.CanonicalTrade) (*outbox.Delivery, error)
}

// Orchestrator processes input files.
type Orchestrator struct {
	loader   Loader
	parser   *parser.Parser
	mapper   *mapping.Mapper
	recorder Recorder
	results  storage.ProcessingResultStore

	now    func() time.Time
	logger *log.Logger
}

// Options for creating Orchestrator.
type Options struct {
	// Required
	Loader   Loader
	Recorder Recorder

	// Optional; defaults are the standard fixed-width layout and a default mapper.
	Parser *parser.Parser
	Mapper *mapping.Mapper

	// ResultStore receives every completed result. Nil disables the audit log.
	ResultStore storage.ProcessingResultStore

	Now    func() time.Time
	Logger *log.Logger
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	if opts.Parser == nil {
		opts.Parser = parser.New(nil)
	}
	if opts.Mapper == nil {
		opts.Mapper = mapping.New(mapping.Options{Now: opts.Now})
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	return &Orchestrator{
		loader:   opts.Loader,
		parser:   opts.Parser,
		mapper:   opts.Mapper,
		recorder: opts.Recorder,
		results:  opts.ResultStore,
		now:      opts.Now,
		logger:   opts.Logger,
	}
}

// ProcessFile processes the named file and returns its result.
//
// The error is non-nil only when ctx is cancelled before the file completes.
// The partial result is returned alongside it and is not written to the
// result store, so the file can be processed again later.
func (o *Orchestrator) ProcessFile(ctx context.Context, name string) (*domain.ProcessingResult, error) {
	start := time.Now()
	result := domain.NewProcessingResult(name, o.now().UTC())

	if err := o.process(ctx, result); err != nil {
		o.logger.Printf("processing %s interrupted after %d of %d records: %v",
			name, result.SuccessCount+result.FailedCount, result.TotalRecords, err)
		return result, err
	}

	o.finish(ctx, result, time.Since(start))
	return result, nil
}

func (o *Orchestrator) process(ctx context.Context, result *domain.ProcessingResult) error {
	name := result.FileName

	format, err := parser.FormatFromFileName(name)
	if err != nil {
		fileError(result, "unsupported file format: %s", name)
		return nil
	}
	result.Format = format

	data, err := o.loader.Load(ctx, name)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, storage.ErrNotFound) {
			fileError(result, "file not found: %s", name)
		} else {
			fileError(result, "load %s: %v", name, err)
		}
		return nil
	}

	records, err := o.parser.Parse(data, format)
	if err != nil {
		fileError(result, "%v", err)
		return nil
	}

	result.TotalRecords = len(records)
	if len(records) == 0 {
		result.Status = domain.FileStatusFailed
		result.AddError("no records found in " + name)
		return nil
	}

	for i := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := o.processRecord(ctx, result, &records[i], i+1); err != nil {
			return err
		}
	}

	result.Finalize()
	return nil
}

// processRecord maps, validates and records one record. Every outcome lands in
// result; the error is non-nil only when ctx ended while persisting.
func (o *Orchestrator) processRecord(ctx context.Context, result *domain.ProcessingResult, rec *domain.ExternalTradeRecord, ordinal int) error {
	trade, err := o.mapper.Map(rec, ordinal, result.FileName)
	if err != nil {
		recordFailure(result, observability.OutcomeInvalid, fmt.Sprintf("%s: %v", recordLabel(rec, ordinal), err))
		return nil
	}

	if verdict := validation.Validate(trade); !verdict.Valid {
		recordFailure(result, observability.OutcomeInvalid,
			fmt.Sprintf("invalid trade %s: %s", tradeLabel(trade), verdict.Reason))
		return nil
	}

	delivery, err := o.recorder.RecordAndPublish(ctx, trade)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		recordFailure(result, observability.OutcomeFailed,
			fmt.Sprintf("record %d: persist trade %s: %v", ordinal, tradeLabel(trade), err))
		return nil
	}

	result.SuccessCount++
	result.AddTrade(trade)
	observability.RecordRecord(observability.OutcomePersisted)

	if delivery.PublishErr != nil {
		result.PublishFailedCount++
		result.AddDeliveryError(fmt.Sprintf("trade %s: %v", tradeLabel(trade), delivery.PublishErr))
		o.logger.Printf("publish failed for trade %s from %s: %v", trade.ID, result.FileName, delivery.PublishErr)
		return nil
	}
	result.PublishedCount++
	return nil
}

// finish logs, records metrics and appends the result to the audit log.
func (o *Orchestrator) finish(ctx context.Context, result *domain.ProcessingResult, elapsed time.Duration) {
	observability.RecordFile(string(result.Status), string(result.Format), elapsed)

	o.logger.Printf("processed %s: status=%s total=%d success=%d failed=%d published=%d publish_failed=%d (%s)",
		result.FileName, result.Status, result.TotalRecords, result.SuccessCount, result.FailedCount,
		result.PublishedCount, result.PublishFailedCount, elapsed.Round(time.Millisecond))

	if o.results == nil {
		return
	}
	start := time.Now()
	err := o.results.Insert(ctx, result)
	observability.RecordStoreCall("results", "insert", time.Since(start), err)
	if err != nil {
		o.logger.Printf("store result for %s: %v", result.FileName, err)
	}
}

func fileError(result *domain.ProcessingResult, format string, args ...any) {
	result.Status = domain.FileStatusError
	result.AddError(fmt.Sprintf(format, args...))
}

func recordFailure(result *domain.ProcessingResult, outcome, msg string) {
	result.FailedCount++
	result.AddError(msg)
	observability.RecordRecord(outcome)
}

// tradeLabel names a trade in messages by transaction ID, falling back to its ordinal.
// recordLabel names an unmapped record by ordinal and, when present, its transaction ID.
func recordLabel(rec *domain.ExternalTradeRecord, ordinal int) string {
	id := rec.TransactionID
	if id == "" {
		id = rec.OrderID
	}
	if id == "" {
		return fmt.Sprintf("record %d", ordinal)
	}
	return fmt.Sprintf("record %d (%s)", ordinal, id)
}

func tradeLabel(t *domain.CanonicalTrade) string {
	if t.TransactionID != "" {
		return t.TransactionID
	}
	return fmt.Sprintf("#%d", t.RecordOrdinal)
}

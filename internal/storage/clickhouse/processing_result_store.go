package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"canonical-trade-ingest/internal/domain"
	"canonical-trade-ingest/internal/storage"
)

// ProcessingResultStore implements storage.ProcessingResultStore using ClickHouse.
// Only trade identifiers are kept; results read back carry trades with ID set.
type ProcessingResultStore struct {
	conn *Conn
}

// NewProcessingResultStore creates a new ProcessingResultStore.
func NewProcessingResultStore(conn *Conn) *ProcessingResultStore {
	return &ProcessingResultStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ProcessingResultStore = (*ProcessingResultStore)(nil)

// Insert appends a result.
func (s *ProcessingResultStore) Insert(ctx context.Context, r *domain.ProcessingResult) error {
	if r == nil || r.FileName == "" {
		return storage.ErrInvalidInput
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO processing_results (
			file_name, format, processed_at, status,
			total_records, success_count, failed_count, published_count, publish_failed_count,
			errors, delivery_errors, trade_ids
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	tradeIDs := make([]string, 0, len(r.Trades))
	for _, t := range r.Trades {
		tradeIDs = append(tradeIDs, t.ID.String())
	}

	err = batch.Append(
		r.FileName, string(r.Format), r.ProcessedAt.UTC(), string(r.Status),
		uint32(r.TotalRecords), uint32(r.SuccessCount), uint32(r.FailedCount),
		uint32(r.PublishedCount), uint32(r.PublishFailedCount),
		nonNil(r.Errors), nonNil(r.DeliveryErrors), tradeIDs,
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("insert processing result: %w", err)
	}
	return nil
}

// GetByFileName retrieves all results for a file, ordered by processed_at ASC.
func (s *ProcessingResultStore) GetByFileName(ctx context.Context, fileName string) ([]*domain.ProcessingResult, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT
			file_name, format, processed_at, status,
			total_records, success_count, failed_count, published_count, publish_failed_count,
			errors, delivery_errors, trade_ids
		FROM processing_results
		WHERE file_name = ?
		ORDER BY processed_at ASC
	`, fileName)
	if err != nil {
		return nil, fmt.Errorf("query processing results: %w", err)
	}
	defer rows.Close()

	var results []*domain.ProcessingResult
	for rows.Next() {
		var (
			r                                    domain.ProcessingResult
			format, status                       string
			processedAt                          time.Time
			total, success, failed, pub, pubFail uint32
			tradeIDs                             []string
		)

		err := rows.Scan(
			&r.FileName, &format, &processedAt, &status,
			&total, &success, &failed, &pub, &pubFail,
			&r.Errors, &r.DeliveryErrors, &tradeIDs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan processing result row: %w", err)
		}

		r.Format = domain.Format(format)
		r.Status = domain.FileStatus(status)
		r.ProcessedAt = processedAt.UTC()
		r.TotalRecords = int(total)
		r.SuccessCount = int(success)
		r.FailedCount = int(failed)
		r.PublishedCount = int(pub)
		r.PublishFailedCount = int(pubFail)
		r.Trades = make([]*domain.CanonicalTrade, 0, len(tradeIDs))
		for _, id := range tradeIDs {
			parsed, err := uuid.Parse(id)
			if err != nil {
				return nil, fmt.Errorf("parse trade id %q: %w", id, err)
			}
			r.Trades = append(r.Trades, &domain.CanonicalTrade{ID: parsed})
		}

		results = append(results, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate processing result rows: %w", err)
	}

	return results, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"canonical-trade-ingest/internal/storage"
)

// ProcessedFileStore is a PostgreSQL implementation of storage.ProcessedFileStore
// backed by the processed_files table.
type ProcessedFileStore struct {
	pool *Pool
}

// NewProcessedFileStore creates a new PostgreSQL processed file store.
func NewProcessedFileStore(pool *Pool) *ProcessedFileStore {
	return &ProcessedFileStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ProcessedFileStore = (*ProcessedFileStore)(nil)

// MarkProcessed records a file as processed. The first timestamp wins.
func (s *ProcessedFileStore) MarkProcessed(ctx context.Context, fileName string, at time.Time) error {
	if fileName == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO processed_files (file_name, processed_at)
		VALUES ($1, $2)
		ON CONFLICT (file_name) DO NOTHING
	`, fileName, at)
	if err != nil {
		return fmt.Errorf("mark file processed: %w", err)
	}
	return nil
}

// IsProcessed checks if a file has been processed.
func (s *ProcessedFileStore) IsProcessed(ctx context.Context, fileName string) (bool, error) {
	if fileName == "" {
		return false, storage.ErrInvalidInput
	}

	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM processed_files WHERE file_name = $1)
	`, fileName).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check processed file: %w", err)
	}
	return exists, nil
}

// LoadProcessed returns all processed file names, sorted.
func (s *ProcessedFileStore) LoadProcessed(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT file_name FROM processed_files ORDER BY file_name
	`)
	if err != nil {
		return nil, fmt.Errorf("load processed files: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan processed file row: %w", err)
		}
		names = append(names, name)
	}

	return names, rows.Err()
}

// Forget removes a file from the history.
func (s *ProcessedFileStore) Forget(ctx context.Context, fileName string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM processed_files WHERE file_name = $1`, fileName); err != nil {
		return fmt.Errorf("forget processed file: %w", err)
	}
	return nil
}

// Clear removes all history.
func (s *ProcessedFileStore) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM processed_files`); err != nil {
		return fmt.Errorf("clear processed files: %w", err)
	}
	return nil
}

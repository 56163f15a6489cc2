package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"canonical-trade-ingest/internal/domain"
	"canonical-trade-ingest/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

const tradeColumns = `
	id, source_file, record_ordinal,
	originator_type, firm_number, fund_number, transaction_type, transaction_id,
	trade_date, dollar_amount, client_account_no, client_name, tax_id,
	date_of_birth, kyc, share_quantity,
	status, created_at
`

// SaveWithEvent inserts the trade and its outbox event in one transaction.
func (s *TradeStore) SaveWithEvent(ctx context.Context, t *domain.CanonicalTrade, e *domain.OutboxEvent) error {
	if t == nil || e == nil || t.ID == uuid.Nil || e.ID == uuid.Nil || e.AggregateID != t.ID {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO canonical_trades (`+tradeColumns+`) VALUES (
			$1, $2, $3,
			$4, $5, $6, $7, $8,
			$9, $10, $11, $12, $13,
			$14, $15, $16,
			$17, $18
		)
	`,
		t.ID, t.SourceFile, t.RecordOrdinal,
		t.OriginatorType, t.FirmNumber, t.FundNumber, t.TransactionType, t.TransactionID,
		t.TradeDate, decimalArg(t.DollarAmount), t.ClientAccountNo, t.ClientName, t.TaxID,
		t.DateOfBirth, t.KYC, decimalArg(t.ShareQuantity),
		string(t.Status), t.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert canonical trade: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO outbox_events (
			id, aggregate_id, event_type, payload, status,
			attempts, last_error, created_at, published_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		e.ID, e.AggregateID, e.EventType, e.Payload, string(e.Status),
		e.Attempts, e.LastError, e.CreatedAt, e.PublishedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert outbox event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.CanonicalTrade, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+tradeColumns+` FROM canonical_trades WHERE id = $1`, id)
	t, err := scanTrade(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get canonical trade by id: %w", err)
	}
	return t, nil
}

// GetBySourceFile retrieves all trades from a file, ordered by record ordinal ASC.
func (s *TradeStore) GetBySourceFile(ctx context.Context, sourceFile string) ([]*domain.CanonicalTrade, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+tradeColumns+`
		FROM canonical_trades
		WHERE source_file = $1
		ORDER BY record_ordinal ASC, id ASC
	`, sourceFile)
	if err != nil {
		return nil, fmt.Errorf("get canonical trades by source file: %w", err)
	}
	defer rows.Close()

	var trades []*domain.CanonicalTrade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan canonical trade row: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate canonical trade rows: %w", err)
	}

	return trades, nil
}

// scanTrade scans a single row into a CanonicalTrade.
func scanTrade(row pgx.Row) (*domain.CanonicalTrade, error) {
	var (
		t             domain.CanonicalTrade
		status        string
		dollarAmount  decimal.NullDecimal
		shareQuantity decimal.NullDecimal
	)

	err := row.Scan(
		&t.ID, &t.SourceFile, &t.RecordOrdinal,
		&t.OriginatorType, &t.FirmNumber, &t.FundNumber, &t.TransactionType, &t.TransactionID,
		&t.TradeDate, &dollarAmount, &t.ClientAccountNo, &t.ClientName, &t.TaxID,
		&t.DateOfBirth, &t.KYC, &shareQuantity,
		&status, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Status = domain.TradeStatus(status)
	t.DollarAmount = fromNullDecimal(dollarAmount)
	t.ShareQuantity = fromNullDecimal(shareQuantity)
	t.TradeDate = utcPtr(t.TradeDate)
	t.DateOfBirth = utcPtr(t.DateOfBirth)
	t.CreatedAt = t.CreatedAt.UTC()

	return &t, nil
}

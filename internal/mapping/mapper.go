// Package mapping converts external trade records into canonical trades.
package mapping

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"canonical-trade-ingest/internal/domain"
)

// ErrInvalidField is returned when a field cannot be converted to its canonical type.
var ErrInvalidField = errors.New("invalid field")

// Date layouts as sent by producers.
const (
	dateLayout     = "02012006"       // ddMMyyyy
	dateTimeLayout = "02012006150405" // ddMMyyyyHHmmss
)

// Options configures a Mapper.
type Options struct {
	Now   func() time.Time // defaults to time.Now
	NewID func() uuid.UUID // defaults to uuid.New
}

// Mapper builds canonical trades. It is safe for concurrent use.
type Mapper struct {
	now   func() time.Time
	newID func() uuid.UUID
}

// New creates a Mapper.
func New(opts Options) *Mapper {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.New
	}
	return &Mapper{now: opts.Now, newID: opts.NewID}
}

// Map converts rec, found at 1-based ordinal in sourceFile, into a canonical trade
// with status RECEIVED. Unparseable dates become nil; a non-numeric firm or fund
// number fails the record.
func (m *Mapper) Map(rec *domain.ExternalTradeRecord, ordinal int, sourceFile string) (*domain.CanonicalTrade, error) {
	if rec == nil {
		panic("mapping: nil record")
	}

	firm, err := parseNumber(rec.FirmNumber)
	if err != nil {
		return nil, fmt.Errorf("firm number: %w", err)
	}
	fund, err := parseNumber(coalesce(rec.FundNumber, rec.FundCode))
	if err != nil {
		return nil, fmt.Errorf("fund number: %w", err)
	}

	trade := &domain.CanonicalTrade{
		ID:              m.newID(),
		RecordOrdinal:   ordinal,
		SourceFile:      sourceFile,
		OriginatorType:  strings.TrimSpace(rec.OriginatorType),
		FirmNumber:      firm,
		FundNumber:      fund,
		TransactionType: strings.ToUpper(strings.TrimSpace(coalesce(rec.TransactionType, rec.TxnType))),
		TransactionID:   strings.TrimSpace(coalesce(rec.TransactionID, rec.OrderID)),
		TradeDate:       ParseTradeDate(rec.TradeDate),
		DollarAmount:    cloneDecimal(rec.DollarAmount, rec.Amount),
		ClientAccountNo: strings.TrimSpace(rec.ClientAccountNo),
		ClientName:      strings.TrimSpace(coalesce(rec.ClientName, rec.InvestorName)),
		TaxID:           strings.TrimSpace(rec.SSN),
		DateOfBirth:     ParseDate(rec.DOB),
		KYC:             strings.TrimSpace(rec.KYC),
		ShareQuantity:   cloneDecimal(rec.ShareQuantity, rec.Units),
		Status:          domain.TradeStatusReceived,
		CreatedAt:       m.now().UTC(),
	}
	if trade.ClientAccountNo == "" {
		trade.ClientAccountNo = strconv.Itoa(ordinal)
	}

	return trade, nil
}

// ParseDate parses a ddMMyyyy string. Empty or malformed input yields nil.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if len(s) != len(dateLayout) {
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil
	}
	return &t
}

// ParseTradeDate accepts ddMMyyyy or ddMMyyyyHHmmss. Anything else yields nil.
func ParseTradeDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if len(s) != len(dateTimeLayout) {
		return ParseDate(s)
	}
	t, err := time.Parse(dateTimeLayout, s)
	if err != nil {
		return nil
	}
	return &t
}

func parseNumber(s string) (*int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidField, s)
	}
	return &v, nil
}

func coalesce(primary, legacy string) string {
	if strings.TrimSpace(primary) != "" {
		return primary
	}
	return legacy
}

// cloneDecimal copies the first non-nil value so the trade shares no state with the record.
func cloneDecimal(primary, legacy *decimal.Decimal) *decimal.Decimal {
	src := primary
	if src == nil {
		src = legacy
	}
	if src == nil {
		return nil
	}
	d := *src
	return &d
}

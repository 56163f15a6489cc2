package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"canonical-trade-ingest/internal/domain"
)

// csvColumn binds a header name to a record field.
type csvColumn func(rec *domain.ExternalTradeRecord, value string) error

func textColumn(field func(*domain.ExternalTradeRecord) *string) csvColumn {
	return func(rec *domain.ExternalTradeRecord, value string) error {
		*field(rec) = strings.TrimSpace(value)
		return nil
	}
}

func decimalColumn(field func(*domain.ExternalTradeRecord) **decimal.Decimal) csvColumn {
	return func(rec *domain.ExternalTradeRecord, value string) error {
		value = strings.TrimSpace(value)
		if value == "" {
			return nil
		}
		d, err := decimal.NewFromString(value)
		if err != nil {
			return err
		}
		*field(rec) = &d
		return nil
	}
}

// csvColumns is keyed by lower-cased header name.
var csvColumns = map[string]csvColumn{
	"originatortype":  textColumn(func(r *domain.ExternalTradeRecord) *string { return &r.OriginatorType }),
	"firmnumber":      textColumn(func(r *domain.ExternalTradeRecord) *string { return &r.FirmNumber }),
	"fundnumber":      textColumn(func(r *domain.ExternalTradeRecord) *string { return &r.FundNumber }),
	"transactiontype": textColumn(func(r *domain.ExternalTradeRecord) *string { return &r.TransactionType }),
	"transactionid":   textColumn(func(r *domain.ExternalTradeRecord) *string { return &r.TransactionID }),
	"tradedate":       textColumn(func(r *domain.ExternalTradeRecord) *string { return &r.TradeDate }),
	"dollaramount":    decimalColumn(func(r *domain.ExternalTradeRecord) **decimal.Decimal { return &r.DollarAmount }),
	"clientaccountno": textColumn(func(r *domain.ExternalTradeRecord) *string { return &r.ClientAccountNo }),
	"clientname":      textColumn(func(r *domain.ExternalTradeRecord) *string { return &r.ClientName }),
	"ssn":             textColumn(func(r *domain.ExternalTradeRecord) *string { return &r.SSN }),
	"dob":             textColumn(func(r *domain.ExternalTradeRecord) *string { return &r.DOB }),
	"kyc":             textColumn(func(r *domain.ExternalTradeRecord) *string { return &r.KYC }),
	"sharequantity":   decimalColumn(func(r *domain.ExternalTradeRecord) **decimal.Decimal { return &r.ShareQuantity }),

	"orderid":      textColumn(func(r *domain.ExternalTradeRecord) *string { return &r.OrderID }),
	"fundcode":     textColumn(func(r *domain.ExternalTradeRecord) *string { return &r.FundCode }),
	"investorname": textColumn(func(r *domain.ExternalTradeRecord) *string { return &r.InvestorName }),
	"txntype":      textColumn(func(r *domain.ExternalTradeRecord) *string { return &r.TxnType }),
	"amount":       decimalColumn(func(r *domain.ExternalTradeRecord) **decimal.Decimal { return &r.Amount }),
	"units":        decimalColumn(func(r *domain.ExternalTradeRecord) **decimal.Decimal { return &r.Units }),
}

// parseCSV binds columns by header name. Unknown columns are ignored and rows
// may be shorter or longer than the header.
func parseCSV(data []byte) ([]domain.ExternalTradeRecord, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("parse csv header: %w", err)
	}

	names := make([]string, len(header))
	binds := make([]csvColumn, len(header))
	for i, h := range header {
		names[i] = strings.TrimSpace(h)
		binds[i] = csvColumns[strings.ToLower(names[i])]
	}

	var records []domain.ExternalTradeRecord
	row := 1
	for {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			return nil, fmt.Errorf("parse csv row %d: %w", row, err)
		}

		var rec domain.ExternalTradeRecord
		for i, value := range fields {
			if i >= len(binds) || binds[i] == nil {
				continue
			}
			if err := binds[i](&rec, value); err != nil {
				return nil, fmt.Errorf("parse csv row %d column %s: %w", row, names[i], err)
			}
		}
		if rec.IsEmpty() {
			continue
		}
		records = append(records, rec)
	}

	return records, nil
}

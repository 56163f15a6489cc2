package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExternalTradeRecord is one order as read from a source file, before mapping.
// Field names follow the producers' camelCase wire names in every format.
type ExternalTradeRecord struct {
	OriginatorType  string           `json:"originatorType,omitempty" xml:"originatorType,omitempty"`
	FirmNumber      string           `json:"firmNumber,omitempty" xml:"firmNumber,omitempty"`
	FundNumber      string           `json:"fundNumber,omitempty" xml:"fundNumber,omitempty"`
	TransactionType string           `json:"transactionType,omitempty" xml:"transactionType,omitempty"`
	TransactionID   string           `json:"transactionId,omitempty" xml:"transactionId,omitempty"`
	TradeDate       string           `json:"tradeDate,omitempty" xml:"tradeDate,omitempty"` // ddMMyyyy or ddMMyyyyHHmmss
	DollarAmount    *decimal.Decimal `json:"dollarAmount,omitempty" xml:"dollarAmount,omitempty"`
	ClientAccountNo string           `json:"clientAccountNo,omitempty" xml:"clientAccountNo,omitempty"`
	ClientName      string           `json:"clientName,omitempty" xml:"clientName,omitempty"`
	SSN             string           `json:"ssn,omitempty" xml:"ssn,omitempty"`
	DOB             string           `json:"dob,omitempty" xml:"dob,omitempty"` // ddMMyyyy
	KYC             string           `json:"kyc,omitempty" xml:"kyc,omitempty"`
	ShareQuantity   *decimal.Decimal `json:"shareQuantity,omitempty" xml:"shareQuantity,omitempty"`

	// Legacy names still sent by older producers.
	OrderID      string           `json:"orderId,omitempty" xml:"orderId,omitempty"`
	FundCode     string           `json:"fundCode,omitempty" xml:"fundCode,omitempty"`
	InvestorName string           `json:"investorName,omitempty" xml:"investorName,omitempty"`
	TxnType      string           `json:"txnType,omitempty" xml:"txnType,omitempty"`
	Amount       *decimal.Decimal `json:"amount,omitempty" xml:"amount,omitempty"`
	Units        *decimal.Decimal `json:"units,omitempty" xml:"units,omitempty"`
}

// UnmarshalJSON accepts identifier and date fields as JSON strings or numbers.
// Numbers keep their literal text, so fundNumber 1001 reads as "1001".
func (r *ExternalTradeRecord) UnmarshalJSON(data []byte) error {
	type plain ExternalTradeRecord
	aux := struct {
		*plain
		FirmNumber      flexString `json:"firmNumber"`
		FundNumber      flexString `json:"fundNumber"`
		TransactionID   flexString `json:"transactionId"`
		TradeDate       flexString `json:"tradeDate"`
		ClientAccountNo flexString `json:"clientAccountNo"`
		SSN             flexString `json:"ssn"`
		DOB             flexString `json:"dob"`
		OrderID         flexString `json:"orderId"`
		FundCode        flexString `json:"fundCode"`
	}{
		plain:           (*plain)(r),
		FirmNumber:      flexString(r.FirmNumber),
		FundNumber:      flexString(r.FundNumber),
		TransactionID:   flexString(r.TransactionID),
		TradeDate:       flexString(r.TradeDate),
		ClientAccountNo: flexString(r.ClientAccountNo),
		SSN:             flexString(r.SSN),
		DOB:             flexString(r.DOB),
		OrderID:         flexString(r.OrderID),
		FundCode:        flexString(r.FundCode),
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	r.FirmNumber = string(aux.FirmNumber)
	r.FundNumber = string(aux.FundNumber)
	r.TransactionID = string(aux.TransactionID)
	r.TradeDate = string(aux.TradeDate)
	r.ClientAccountNo = string(aux.ClientAccountNo)
	r.SSN = string(aux.SSN)
	r.DOB = string(aux.DOB)
	r.OrderID = string(aux.OrderID)
	r.FundCode = string(aux.FundCode)
	return nil
}

// flexString decodes a JSON string or number into its text. null leaves the value unchanged.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		return nil
	case data[0] == '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	case data[0] == '-' || (data[0] >= '0' && data[0] <= '9'):
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*s = flexString(n.String())
		return nil
	default:
		return fmt.Errorf("expected string or number, got %s", data)
	}
}

// IsEmpty reports whether no field of the record carries a value.
func (r *ExternalTradeRecord) IsEmpty() bool {
	return *r == ExternalTradeRecord{}
}

// CanonicalTrade is the normalized unit of persistence and publication.
// Corresponds to canonical_trades table in PostgreSQL.
// Financial fields never change after ID assignment; only Status may.
type CanonicalTrade struct {
	ID            uuid.UUID `json:"id"`
	RecordOrdinal int       `json:"recordOrdinal"` // 1-based position within SourceFile
	SourceFile    string    `json:"sourceFile"`

	OriginatorType  string           `json:"originatorType,omitempty"`
	FirmNumber      *int64           `json:"firmNumber,omitempty"`
	FundNumber      *int64           `json:"fundNumber,omitempty"`
	TransactionType string           `json:"transactionType"`
	TransactionID   string           `json:"transactionId"`
	TradeDate       *time.Time       `json:"tradeDate,omitempty"`
	DollarAmount    *decimal.Decimal `json:"dollarAmount,omitempty"`
	ClientAccountNo string           `json:"clientAccountNo,omitempty"`
	ClientName      string           `json:"clientName,omitempty"`
	TaxID           string           `json:"taxId,omitempty"`
	DateOfBirth     *time.Time       `json:"dateOfBirth,omitempty"`
	KYC             string           `json:"kyc,omitempty"`
	ShareQuantity   *decimal.Decimal `json:"shareQuantity,omitempty"`

	Status    TradeStatus `json:"status"`
	CreatedAt time.Time   `json:"createdAt"`
}

// TradeStatus is the lifecycle state of a canonical trade.
type TradeStatus string

// Trade status constants
const (
	TradeStatusReceived TradeStatus = "RECEIVED"
)

// Transaction type codes
const (
	TransactionTypeBuy  = "B"
	TransactionTypeSell = "S"
)

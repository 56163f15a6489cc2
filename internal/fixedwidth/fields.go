package fixedwidth

import (
	"github.com/shopspring/decimal"

	"canonical-trade-ingest/internal/domain"
)

func isNumericField(name string) bool {
	return name == FieldDollarAmount || name == FieldShareQuantity
}

func isTextField(name string) bool {
	return textField(&domain.ExternalTradeRecord{}, name) != nil
}

// textField returns a pointer to the named string field of r, or nil.
func textField(r *domain.ExternalTradeRecord, name string) *string {
	switch name {
	case FieldOriginatorType:
		return &r.OriginatorType
	case FieldFirmNumber:
		return &r.FirmNumber
	case FieldFundNumber:
		return &r.FundNumber
	case FieldTransactionType:
		return &r.TransactionType
	case FieldTransactionID:
		return &r.TransactionID
	case FieldTradeDate:
		return &r.TradeDate
	case FieldClientAccountNo:
		return &r.ClientAccountNo
	case FieldClientName:
		return &r.ClientName
	case FieldSSN:
		return &r.SSN
	case FieldDOB:
		return &r.DOB
	case FieldKYC:
		return &r.KYC
	default:
		return nil
	}
}

// numericField returns a pointer to the named decimal field of r, or nil.
func numericField(r *domain.ExternalTradeRecord, name string) **decimal.Decimal {
	switch name {
	case FieldDollarAmount:
		return &r.DollarAmount
	case FieldShareQuantity:
		return &r.ShareQuantity
	default:
		return nil
	}
}

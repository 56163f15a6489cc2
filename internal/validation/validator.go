// Package validation applies business rules to canonical trades.
package validation

import (
	"fmt"
	"strings"

	"canonical-trade-ingest/internal/domain"
)

// Rejection reasons.
const (
	ReasonMissingAmount   = "dollar amount must be present and positive"
	ReasonMissingQuantity = "share quantity must be present and positive"
	ReasonMissingFund     = "fund number is required"
	ReasonUnknownType     = "unsupported transaction type"
)

// Verdict is the outcome of validating one trade.
type Verdict struct {
	Valid  bool
	Reason string // empty when Valid
}

func invalid(reason string) Verdict {
	return Verdict{Reason: reason}
}

// Validate checks trade against the rules for its transaction type:
// buys need a positive dollar amount, sells a positive share quantity,
// and both need a fund number. Other types are rejected.
// Panics if trade is nil.
func Validate(trade *domain.CanonicalTrade) Verdict {
	if trade == nil {
		panic("validation: nil trade")
	}

	switch strings.ToUpper(strings.TrimSpace(trade.TransactionType)) {
	case domain.TransactionTypeBuy:
		if trade.DollarAmount == nil || !trade.DollarAmount.IsPositive() {
			return invalid(ReasonMissingAmount)
		}
	case domain.TransactionTypeSell:
		if trade.ShareQuantity == nil || !trade.ShareQuantity.IsPositive() {
			return invalid(ReasonMissingQuantity)
		}
	default:
		return invalid(fmt.Sprintf("%s %q", ReasonUnknownType, trade.TransactionType))
	}

	if trade.FundNumber == nil {
		return invalid(ReasonMissingFund)
	}
	return Verdict{Valid: true}
}

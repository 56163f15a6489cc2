// Package fixedwidth decodes positional trade lines using configurable byte offsets.
package fixedwidth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Field names understood by the decoder. They match the JSON/CSV/XML wire names.
const (
	FieldOriginatorType  = "originatorType"
	FieldFirmNumber      = "firmNumber"
	FieldFundNumber      = "fundNumber"
	FieldTransactionType = "transactionType"
	FieldTransactionID   = "transactionId"
	FieldTradeDate       = "tradeDate"
	FieldDollarAmount    = "dollarAmount"
	FieldClientAccountNo = "clientAccountNo"
	FieldClientName      = "clientName"
	FieldSSN             = "ssn"
	FieldDOB             = "dob"
	FieldKYC             = "kyc"
	FieldShareQuantity   = "shareQuantity"
)

// Built-in layout names.
const (
	LayoutStandard    = "standard"
	LayoutTimestamped = "timestamped"
)

// ErrInvalidLayout is returned when a layout definition is inconsistent.
var ErrInvalidLayout = errors.New("invalid fixed-width layout")

// Field is one positional column. Start and End are 1-indexed and inclusive.
// Numeric fields hold an unsigned integer with Scale implied decimal places.
type Field struct {
	Name    string `json:"name"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Numeric bool   `json:"numeric,omitempty"`
	Scale   int32  `json:"scale,omitempty"`
}

// Width returns the number of bytes the field occupies.
func (f Field) Width() int {
	return f.End - f.Start + 1
}

// Layout describes a complete line. Lines shorter than Width are rejected.
type Layout struct {
	Name   string  `json:"name"`
	Width  int     `json:"width"`
	Fields []Field `json:"fields"`
}

// StandardLayout is the 124-byte layout with a ddMMyyyy trade date and a KYC flag.
func StandardLayout() *Layout {
	return &Layout{
		Name:  LayoutStandard,
		Width: 124,
		Fields: []Field{
			{Name: FieldOriginatorType, Start: 1, End: 1},
			{Name: FieldFirmNumber, Start: 2, End: 5},
			{Name: FieldFundNumber, Start: 6, End: 9},
			{Name: FieldTransactionType, Start: 10, End: 10},
			{Name: FieldTransactionID, Start: 11, End: 26},
			{Name: FieldTradeDate, Start: 27, End: 34},
			{Name: FieldDollarAmount, Start: 35, End: 50, Numeric: true, Scale: 2},
			{Name: FieldClientAccountNo, Start: 51, End: 70},
			{Name: FieldClientName, Start: 71, End: 90},
			{Name: FieldSSN, Start: 91, End: 99},
			{Name: FieldDOB, Start: 100, End: 107},
			{Name: FieldKYC, Start: 108, End: 108},
			{Name: FieldShareQuantity, Start: 109, End: 124, Numeric: true, Scale: 0},
		},
	}
}

// TimestampedLayout is the 129-byte layout carrying a ddMMyyyyHHmmss trade timestamp
// and no KYC flag.
func TimestampedLayout() *Layout {
	return &Layout{
		Name:  LayoutTimestamped,
		Width: 129,
		Fields: []Field{
			{Name: FieldOriginatorType, Start: 1, End: 1},
			{Name: FieldFirmNumber, Start: 2, End: 5},
			{Name: FieldFundNumber, Start: 6, End: 9},
			{Name: FieldTransactionType, Start: 10, End: 10},
			{Name: FieldTransactionID, Start: 11, End: 26},
			{Name: FieldTradeDate, Start: 27, End: 40},
			{Name: FieldDollarAmount, Start: 41, End: 56, Numeric: true, Scale: 2},
			{Name: FieldClientAccountNo, Start: 57, End: 76},
			{Name: FieldClientName, Start: 77, End: 96},
			{Name: FieldSSN, Start: 97, End: 105},
			{Name: FieldDOB, Start: 106, End: 113},
			{Name: FieldShareQuantity, Start: 114, End: 129, Numeric: true, Scale: 0},
		},
	}
}

// LayoutByName returns a built-in layout.
func LayoutByName(name string) (*Layout, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case LayoutStandard, "":
		return StandardLayout(), nil
	case LayoutTimestamped:
		return TimestampedLayout(), nil
	default:
		return nil, fmt.Errorf("%w: unknown layout %q", ErrInvalidLayout, name)
	}
}

// LoadLayout reads a JSON layout definition from path and validates it.
// A zero width defaults to the largest field end.
func LoadLayout(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout %s: %w", path, err)
	}

	var l Layout
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("decode layout %s: %w", path, err)
	}
	if l.Width == 0 {
		for _, f := range l.Fields {
			if f.End > l.Width {
				l.Width = f.End
			}
		}
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return &l, nil
}

// Validate checks offsets, names and numeric placement.
func (l *Layout) Validate() error {
	if l == nil || len(l.Fields) == 0 {
		return fmt.Errorf("%w: no fields", ErrInvalidLayout)
	}
	if l.Width <= 0 {
		return fmt.Errorf("%w: width must be positive", ErrInvalidLayout)
	}

	seen := make(map[string]struct{}, len(l.Fields))
	for _, f := range l.Fields {
		if f.Start < 1 || f.End < f.Start {
			return fmt.Errorf("%w: field %s has bad offsets [%d,%d]", ErrInvalidLayout, f.Name, f.Start, f.End)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("%w: field %s declared twice", ErrInvalidLayout, f.Name)
		}
		seen[f.Name] = struct{}{}

		numericName := isNumericField(f.Name)
		if !numericName && !isTextField(f.Name) {
			return fmt.Errorf("%w: unknown field %q", ErrInvalidLayout, f.Name)
		}
		if f.Numeric != numericName {
			return fmt.Errorf("%w: field %s numeric flag mismatch", ErrInvalidLayout, f.Name)
		}
		if f.Scale < 0 {
			return fmt.Errorf("%w: field %s has negative scale", ErrInvalidLayout, f.Name)
		}
	}
	return nil
}

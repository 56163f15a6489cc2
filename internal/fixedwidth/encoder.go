package fixedwidth

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"canonical-trade-ingest/internal/domain"
)

// Encoder renders external trade records as positional lines.
type Encoder struct {
	layout *Layout
}

// NewEncoder creates an Encoder for layout. A nil layout selects StandardLayout.
func NewEncoder(layout *Layout) *Encoder {
	if layout == nil {
		layout = StandardLayout()
	}
	return &Encoder{layout: layout}
}

// EncodeLine renders rec using the layout. Text is left-aligned and space padded;
// numerics are zero padded with the implied scale removed. Nil numerics are blank.
func (e *Encoder) EncodeLine(rec *domain.ExternalTradeRecord) (string, error) {
	buf := []byte(strings.Repeat(" ", e.layout.Width))

	for _, f := range e.layout.Fields {
		var value string
		if f.Numeric {
			d := *numericField(rec, f.Name)
			if d == nil {
				continue
			}
			v, err := EncodeImpliedDecimal(*d, f.Scale, f.Width())
			if err != nil {
				return "", fmt.Errorf("field %s: %w", f.Name, err)
			}
			value = v
		} else {
			value = *textField(rec, f.Name)
			if len(value) > f.Width() {
				return "", fmt.Errorf("field %s: %q exceeds %d bytes", f.Name, value, f.Width())
			}
		}
		copy(buf[f.Start-1:f.End], value)
	}

	return string(buf), nil
}

// EncodeImpliedDecimal renders d as a zero-padded integer of width digits with
// scale implied decimal places.
func EncodeImpliedDecimal(d decimal.Decimal, scale int32, width int) (string, error) {
	if d.IsNegative() {
		return "", fmt.Errorf("negative value %s", d)
	}
	shifted := d.Shift(scale)
	if !shifted.IsInteger() {
		return "", fmt.Errorf("value %s has more than %d decimal places", d, scale)
	}
	digits := shifted.BigInt().String()
	if len(digits) > width {
		return "", fmt.Errorf("value %s exceeds %d digits", d, width)
	}
	return strings.Repeat("0", width-len(digits)) + digits, nil
}

package fixedwidth

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"canonical-trade-ingest/internal/domain"
)

// ErrShortLine is returned for a line narrower than the layout width.
var ErrShortLine = errors.New("line shorter than layout width")

// lineDelimiter is the optional end-of-record marker some producers append.
const lineDelimiter = '|'

// Decoder turns positional lines into external trade records.
type Decoder struct {
	layout *Layout
}

// NewDecoder creates a Decoder for layout. A nil layout selects StandardLayout.
func NewDecoder(layout *Layout) *Decoder {
	if layout == nil {
		layout = StandardLayout()
	}
	return &Decoder{layout: layout}
}

// Layout returns the decoder's layout.
func (d *Decoder) Layout() *Layout {
	return d.layout
}

// DecodeLine decodes a single line without its terminator.
// Returns ErrShortLine if the line (after stripping one trailing delimiter)
// is narrower than the layout.
func (d *Decoder) DecodeLine(line string) (domain.ExternalTradeRecord, error) {
	var rec domain.ExternalTradeRecord

	line = strings.TrimSuffix(line, "\r")
	if n := len(line); n > 0 && line[n-1] == lineDelimiter {
		line = line[:n-1]
	}
	if len(line) < d.layout.Width {
		return rec, fmt.Errorf("%w: %d < %d", ErrShortLine, len(line), d.layout.Width)
	}

	for _, f := range d.layout.Fields {
		raw := Extract(line, f.Start, f.End)
		if f.Numeric {
			v := ParseImpliedDecimal(raw, f.Scale)
			*numericField(&rec, f.Name) = &v
			continue
		}
		*textField(&rec, f.Name) = raw
	}

	return rec, nil
}

// Decode decodes every line of data. Blank and short lines are skipped;
// the number of short lines is returned alongside the records.
func (d *Decoder) Decode(data []byte) ([]domain.ExternalTradeRecord, int, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var records []domain.ExternalTradeRecord
	skipped := 0

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		rec, err := d.DecodeLine(line)
		if err != nil {
			if errors.Is(err, ErrShortLine) {
				skipped++
				continue
			}
			return nil, skipped, err
		}
		records = append(records, rec)
	}

	if err := scanner.Err(); err != nil {
		return nil, skipped, fmt.Errorf("scan fixed-width lines: %w", err)
	}

	return records, skipped, nil
}

// Extract returns the trimmed substring at 1-indexed inclusive [start, end].
// Offsets beyond the line yield an empty string.
func Extract(line string, start, end int) string {
	if start < 1 || end > len(line) || end < start {
		return ""
	}
	return strings.TrimSpace(line[start-1 : end])
}

// ParseImpliedDecimal parses an integer string and divides it by 10^scale.
// Empty or non-integer input yields zero.
func ParseImpliedDecimal(s string, scale int32) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return decimal.Zero
	}
	return decimal.New(v, -scale)
}

// Package parser turns raw order files into flat external trade records.
//
// Each format owns an ordered list of decoding strategies; the first strategy
// that accepts the input wins. Strategies report failure through errors only.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"canonical-trade-ingest/internal/domain"
	"canonical-trade-ingest/internal/fixedwidth"
)

// ErrUnsupportedFormat is returned for a file extension or format with no decoder.
var ErrUnsupportedFormat = errors.New("unsupported format")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// FormatFromFileName resolves the format from the file extension, case-insensitively.
func FormatFromFileName(name string) (domain.Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return domain.FormatJSON, nil
	case ".xml":
		return domain.FormatXML, nil
	case ".csv":
		return domain.FormatCSV, nil
	case ".txt":
		return domain.FormatFixedWidth, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
}

// IsSupported reports whether name has an extension Parse can handle.
func IsSupported(name string) bool {
	_, err := FormatFromFileName(name)
	return err == nil
}

// Parser decodes file contents of any supported format.
type Parser struct {
	fixed *fixedwidth.Decoder
}

// New creates a Parser. A nil decoder uses the standard fixed-width layout.
func New(decoder *fixedwidth.Decoder) *Parser {
	if decoder == nil {
		decoder = fixedwidth.NewDecoder(nil)
	}
	return &Parser{fixed: decoder}
}

// Parse decodes data in the given format into records in file order.
// Empty input yields no records and no error.
func (p *Parser) Parse(data []byte, format domain.Format) ([]domain.ExternalTradeRecord, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	switch format {
	case domain.FormatJSON:
		return parseJSON(data)
	case domain.FormatXML:
		return parseXML(data)
	case domain.FormatCSV:
		return parseCSV(data)
	case domain.FormatFixedWidth:
		records, _, err := p.fixed.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("parse fixed-width: %w", err)
		}
		return records, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// strategy is one interpretation of a document's shape.
type strategy struct {
	name   string
	decode func(data []byte) ([]domain.ExternalTradeRecord, error)
}

// firstMatch runs strategies in order and returns the first success.
func firstMatch(format string, data []byte, strategies []strategy) ([]domain.ExternalTradeRecord, error) {
	var errs []string
	for _, s := range strategies {
		records, err := s.decode(data)
		if err == nil {
			return records, nil
		}
		errs = append(errs, fmt.Sprintf("%s: %v", s.name, err))
	}
	return nil, fmt.Errorf("parse %s: no interpretation matched (%s)", format, strings.Join(errs, "; "))
}

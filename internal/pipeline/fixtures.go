package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"canonical-trade-ingest/internal/domain"
	"canonical-trade-ingest/internal/fixedwidth"
)

// FixtureOptions controls sample order generation.
type FixtureOptions struct {
	Count        int    // records per file, default 10
	Seed         int64  // generator seed; equal seeds give equal files
	InvalidEvery int    // every Nth record fails validation; 0 disables
	Prefix       string // file name prefix, default "orders"
	Layout       *fixedwidth.Layout
}

var fixtureClients = []string{"Jane Doe", "John Smith", "Ada Lovelace", "Alan Turing", "Grace Hopper"}

// GenerateOrders returns deterministic sample records for opts.Seed.
// Timestamped layouts get a ddMMyyyyHHmmss trade date.
func GenerateOrders(opts FixtureOptions) []domain.ExternalTradeRecord {
	if opts.Count <= 0 {
		opts.Count = 10
	}
	rng := rand.New(rand.NewSource(opts.Seed))
	base := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	withTime := opts.Layout != nil && opts.Layout.Name == fixedwidth.LayoutTimestamped

	records := make([]domain.ExternalTradeRecord, 0, opts.Count)
	for i := 1; i <= opts.Count; i++ {
		at := base.Add(time.Duration(rng.Intn(90*24)) * time.Hour)
		dob := time.Date(1950+rng.Intn(50), time.Month(1+rng.Intn(12)), 1+rng.Intn(28), 0, 0, 0, 0, time.UTC)

		rec := domain.ExternalTradeRecord{
			OriginatorType:  "A",
			FirmNumber:      fmt.Sprintf("%04d", 1+rng.Intn(9999)),
			FundNumber:      fmt.Sprintf("%04d", 1+rng.Intn(9999)),
			TransactionID:   fmt.Sprintf("TX%08d%06d", opts.Seed%100000000, i),
			TradeDate:       at.Format("02012006"),
			ClientAccountNo: fmt.Sprintf("AC%08d", rng.Intn(100000000)),
			ClientName:      fixtureClients[rng.Intn(len(fixtureClients))],
			SSN:             fmt.Sprintf("%09d", rng.Intn(1000000000)),
			DOB:             dob.Format("02012006"),
			KYC:             "Y",
		}
		if withTime {
			rec.TradeDate = at.Format("02012006150405")
			rec.KYC = ""
		}

		if rng.Intn(2) == 0 {
			rec.TransactionType = domain.TransactionTypeBuy
			amount := decimal.New(int64(100+rng.Intn(9999900)), -2)
			rec.DollarAmount = &amount
		} else {
			rec.TransactionType = domain.TransactionTypeSell
			qty := decimal.NewFromInt(int64(1 + rng.Intn(5000)))
			rec.ShareQuantity = &qty
		}

		if opts.InvalidEvery > 0 && i%opts.InvalidEvery == 0 {
			zero := decimal.Zero
			rec.TransactionType = domain.TransactionTypeBuy
			rec.DollarAmount = &zero
			rec.ShareQuantity = nil
		}
		records = append(records, rec)
	}
	return records
}

// WriteFixtures writes the same generated orders as <prefix>.json, .xml, .csv
// and .txt into dir and returns the file names.
func WriteFixtures(dir string, opts FixtureOptions) ([]string, error) {
	if opts.Prefix == "" {
		opts.Prefix = "orders"
	}
	records := GenerateOrders(opts)

	encoders := []struct {
		ext    string
		encode func([]domain.ExternalTradeRecord) ([]byte, error)
	}{
		{".json", encodeJSON},
		{".xml", encodeXML},
		{".csv", encodeCSV},
		{".txt", func(r []domain.ExternalTradeRecord) ([]byte, error) { return encodeFixedWidth(r, opts.Layout) }},
	}

	var names []string
	for _, e := range encoders {
		data, err := e.encode(records)
		if err != nil {
			return names, fmt.Errorf("encode %s: %w", e.ext, err)
		}
		name := opts.Prefix + e.ext
		// Write under a temporary name first so a watcher never sees a partial file.
		tmp := filepath.Join(dir, "."+name+".tmp")
		if err := os.WriteFile(tmp, data, 0o644); err != nil {
			return names, err
		}
		if err := os.Rename(tmp, filepath.Join(dir, name)); err != nil {
			return names, err
		}
		names = append(names, name)
	}
	return names, nil
}

func encodeJSON(records []domain.ExternalTradeRecord) ([]byte, error) {
	return json.MarshalIndent(records, "", "  ")
}

type xmlOrders struct {
	XMLName xml.Name                     `xml:"Orders"`
	Orders  []domain.ExternalTradeRecord `xml:"Order"`
}

func encodeXML(records []domain.ExternalTradeRecord) ([]byte, error) {
	body, err := xml.MarshalIndent(xmlOrders{Orders: records}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}

var csvHeader = []string{
	"originatorType", "firmNumber", "fundNumber", "transactionType", "transactionId",
	"tradeDate", "dollarAmount", "clientAccountNo", "clientName", "ssn", "dob", "kyc", "shareQuantity",
}

func encodeCSV(records []domain.ExternalTradeRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, r := range records {
		row := []string{
			r.OriginatorType, r.FirmNumber, r.FundNumber, r.TransactionType, r.TransactionID,
			r.TradeDate, decimalString(r.DollarAmount), r.ClientAccountNo, r.ClientName,
			r.SSN, r.DOB, r.KYC, decimalString(r.ShareQuantity),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func encodeFixedWidth(records []domain.ExternalTradeRecord, layout *fixedwidth.Layout) ([]byte, error) {
	enc := fixedwidth.NewEncoder(layout)
	lines := make([]string, 0, len(records))
	for i := range records {
		line, err := enc.EncodeLine(&records[i])
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i+1, err)
		}
		lines = append(lines, line)
	}
	return []byte(strings.Join(lines, "\n") + "\n"), nil
}

func decimalString(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

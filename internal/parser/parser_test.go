package parser

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canonical-trade-ingest/internal/domain"
	"canonical-trade-ingest/internal/fixedwidth"
)

const orderA = `{"originatorType":"A","firmNumber":"12","fundNumber":"345","transactionType":"B","transactionId":"T-1","tradeDate":"15032024","dollarAmount":"100.50","clientName":"Jane Doe"}`
const orderB = `{"transactionType":"S","transactionId":"T-2","fundNumber":"345","shareQuantity":25}`

func TestFormatFromFileName(t *testing.T) {
	tests := []struct {
		name string
		want domain.Format
	}{
		{"orders.json", domain.FormatJSON},
		{"ORDERS.JSON", domain.FormatJSON},
		{"orders.xml", domain.FormatXML},
		{"orders.Csv", domain.FormatCSV},
		{"orders.txt", domain.FormatFixedWidth},
	}
	for _, tt := range tests {
		got, err := FormatFromFileName(tt.name)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}

	for _, name := range []string{"orders.pdf", "orders", "orders.json.tmp"} {
		_, err := FormatFromFileName(name)
		assert.ErrorIs(t, err, ErrUnsupportedFormat, name)
		assert.False(t, IsSupported(name))
	}
}

func TestParse_UnknownFormat(t *testing.T) {
	_, err := New(nil).Parse([]byte("x"), domain.Format("yaml"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestParseJSON_ShapesAreEquivalent(t *testing.T) {
	p := New(nil)

	array, err := p.Parse([]byte("["+orderA+","+orderB+"]"), domain.FormatJSON)
	require.NoError(t, err)
	require.Len(t, array, 2)

	wrapped, err := p.Parse([]byte(`{"orders":[`+orderA+","+orderB+`]}`), domain.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, array, wrapped)

	lines, err := p.Parse([]byte(orderA+"\n\n"+orderB+"\n"), domain.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, array, lines)

	single, err := p.Parse([]byte("  "+orderA+"\n"), domain.FormatJSON)
	require.NoError(t, err)
	require.Len(t, single, 1)
	assert.Equal(t, array[0], single[0])

	rec := array[0]
	assert.Equal(t, "T-1", rec.TransactionID)
	assert.Equal(t, "12", rec.FirmNumber)
	assert.True(t, rec.DollarAmount.Equal(decimal.RequireFromString("100.50")))
	assert.True(t, array[1].ShareQuantity.Equal(decimal.NewFromInt(25)))
}

func TestParseJSON_Empty(t *testing.T) {
	for _, in := range []string{"", "   \n\t"} {
		records, err := New(nil).Parse([]byte(in), domain.FormatJSON)
		require.NoError(t, err)
		assert.Empty(t, records)
	}

	records, err := New(nil).Parse([]byte("[]"), domain.FormatJSON)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestParseJSON_LegacyFields(t *testing.T) {
	records, err := New(nil).Parse([]byte(`{"orderId":"L-1","fundCode":"77","txnType":"B","amount":10}`), domain.FormatJSON)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "L-1", records[0].OrderID)
	assert.Equal(t, "77", records[0].FundCode)
	assert.True(t, records[0].Amount.Equal(decimal.NewFromInt(10)))
}

func TestParseJSON_NumericIdentifiers(t *testing.T) {
	in := `[{"firmNumber":12,"fundNumber":1001,"transactionType":"B","transactionId":90001,"tradeDate":15032024,"dollarAmount":250.75,"clientAccountNo":445566,"ssn":123456789},
{"orderId":7,"fundCode":77,"txnType":"S","units":3}]`

	records, err := New(nil).Parse([]byte(in), domain.FormatJSON)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "12", records[0].FirmNumber)
	assert.Equal(t, "1001", records[0].FundNumber)
	assert.Equal(t, "90001", records[0].TransactionID)
	assert.Equal(t, "15032024", records[0].TradeDate)
	assert.Equal(t, "445566", records[0].ClientAccountNo)
	assert.Equal(t, "123456789", records[0].SSN)
	assert.True(t, records[0].DollarAmount.Equal(decimal.RequireFromString("250.75")))
	assert.Equal(t, "7", records[1].OrderID)
	assert.Equal(t, "77", records[1].FundCode)

	lines := "{\"transactionId\":1,\"fundNumber\":345}\n{\"transactionId\":\"T-2\",\"fundNumber\":345}\n"
	records, err = New(nil).Parse([]byte(lines), domain.FormatJSON)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "1", records[0].TransactionID)
	assert.Equal(t, "345", records[1].FundNumber)
}

func TestParseJSON_Malformed(t *testing.T) {
	_, err := New(nil).Parse([]byte(`{"transactionId": "T-1",`), domain.FormatJSON)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "array")
	assert.Contains(t, err.Error(), "lines")

	_, err = New(nil).Parse([]byte(`{"unrelated": true}`), domain.FormatJSON)
	assert.Error(t, err)
}

func TestParseXML(t *testing.T) {
	p := New(nil)

	list := `<?xml version="1.0"?>
<Orders>
  <Order><transactionType>B</transactionType><transactionId>T-1</transactionId><fundNumber>345</fundNumber><dollarAmount>100.50</dollarAmount></Order>
  <Order><transactionType>S</transactionType><transactionId>T-2</transactionId><fundNumber>345</fundNumber><shareQuantity>25</shareQuantity></Order>
</Orders>`
	records, err := p.Parse([]byte(list), domain.FormatXML)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "T-1", records[0].TransactionID)
	assert.True(t, records[0].DollarAmount.Equal(decimal.RequireFromString("100.5")))
	assert.True(t, records[1].ShareQuantity.Equal(decimal.NewFromInt(25)))

	// Any wrapper element name is accepted.
	records, err = p.Parse([]byte(`<Batch><Order><transactionId>T-9</transactionId></Order></Batch>`), domain.FormatXML)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "T-9", records[0].TransactionID)

	single := `<Order><transactionType>B</transactionType><transactionId>T-3</transactionId></Order>`
	records, err = p.Parse([]byte(single), domain.FormatXML)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "T-3", records[0].TransactionID)
	assert.Equal(t, "B", records[0].TransactionType)
}

func TestParseXML_Malformed(t *testing.T) {
	_, err := New(nil).Parse([]byte(`<Orders><Order>`), domain.FormatXML)
	assert.Error(t, err)

	_, err = New(nil).Parse([]byte(`<Trade><transactionId>T-1</transactionId></Trade>`), domain.FormatXML)
	assert.Error(t, err)
}

func TestParseCSV(t *testing.T) {
	data := "transactionId, transactionType,fundNumber,dollarAmount,shareQuantity,ignored\n" +
		"T-1, B,345, 100.50,,x\n" +
		"T-2,S,345,,25\n" +
		"T-3,B\n"

	records, err := New(nil).Parse([]byte(data), domain.FormatCSV)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "T-1", records[0].TransactionID)
	assert.Equal(t, "B", records[0].TransactionType)
	assert.True(t, records[0].DollarAmount.Equal(decimal.RequireFromString("100.50")))
	assert.Nil(t, records[0].ShareQuantity)

	assert.Nil(t, records[1].DollarAmount)
	assert.True(t, records[1].ShareQuantity.Equal(decimal.NewFromInt(25)))

	assert.Equal(t, "T-3", records[2].TransactionID)
	assert.Empty(t, records[2].FundNumber)
}

func TestParseCSV_ColumnOrderIrrelevant(t *testing.T) {
	a, err := New(nil).Parse([]byte("transactionId,fundNumber\nT-1,345\n"), domain.FormatCSV)
	require.NoError(t, err)
	b, err := New(nil).Parse([]byte("FundNumber,TransactionId\n345,T-1\n"), domain.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestParseCSV_BadDecimal(t *testing.T) {
	_, err := New(nil).Parse([]byte("transactionId,dollarAmount\nT-1,1.0\nT-2,abc\n"), domain.FormatCSV)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 3")
	assert.Contains(t, err.Error(), "dollarAmount")
}

func TestParseCSV_Empty(t *testing.T) {
	records, err := New(nil).Parse(nil, domain.FormatCSV)
	require.NoError(t, err)
	assert.Empty(t, records)

	records, err = New(nil).Parse([]byte("transactionId,fundNumber\n"), domain.FormatCSV)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestParseFixedWidth(t *testing.T) {
	amount := decimal.RequireFromString("250.00")
	rec := domain.ExternalTradeRecord{
		TransactionType: "B",
		TransactionID:   "FW-1",
		FundNumber:      "0345",
		DollarAmount:    &amount,
	}
	line, err := fixedwidth.NewEncoder(nil).EncodeLine(&rec)
	require.NoError(t, err)

	data := strings.Join([]string{line, "", "too short", line + "|"}, "\n")
	records, err := New(nil).Parse([]byte(data), domain.FormatFixedWidth)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "FW-1", records[0].TransactionID)
	assert.True(t, records[1].DollarAmount.Equal(amount))
}

func TestParse_StripsBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("transactionId\nT-1\n")...)
	records, err := New(nil).Parse(data, domain.FormatCSV)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "T-1", records[0].TransactionID)
}

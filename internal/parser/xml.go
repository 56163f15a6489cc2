package parser

import (
	"bytes"
	"encoding/xml"
	"errors"

	"canonical-trade-ingest/internal/domain"
)

var xmlStrategies = []strategy{
	{name: "order list", decode: decodeXMLList},
	{name: "single order", decode: decodeXMLSingle},
}

func parseXML(data []byte) ([]domain.ExternalTradeRecord, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	return firstMatch("xml", data, xmlStrategies)
}

// xmlOrderList matches any root element wrapping <Order> children.
type xmlOrderList struct {
	Orders []domain.ExternalTradeRecord `xml:"Order"`
}

type xmlOrder struct {
	XMLName xml.Name `xml:"Order"`
	domain.ExternalTradeRecord
}

func decodeXMLList(data []byte) ([]domain.ExternalTradeRecord, error) {
	var list xmlOrderList
	if err := xml.Unmarshal(data, &list); err != nil {
		return nil, err
	}
	if len(list.Orders) == 0 {
		return nil, errors.New("no <Order> elements")
	}
	return list.Orders, nil
}

func decodeXMLSingle(data []byte) ([]domain.ExternalTradeRecord, error) {
	var order xmlOrder
	if err := xml.Unmarshal(data, &order); err != nil {
		return nil, err
	}
	return []domain.ExternalTradeRecord{order.ExternalTradeRecord}, nil
}

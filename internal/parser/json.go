package parser

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"canonical-trade-ingest/internal/domain"
)

var jsonStrategies = []strategy{
	{name: "array", decode: decodeJSONArray},
	{name: "wrapped", decode: decodeJSONWrapped},
	{name: "single", decode: decodeJSONSingle},
	{name: "lines", decode: decodeJSONLines},
}

func parseJSON(data []byte) ([]domain.ExternalTradeRecord, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	return firstMatch("json", data, jsonStrategies)
}

func decodeJSONArray(data []byte) ([]domain.ExternalTradeRecord, error) {
	var records []domain.ExternalTradeRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}

type jsonWrapper struct {
	Orders []domain.ExternalTradeRecord `json:"orders"`
}

func decodeJSONWrapped(data []byte) ([]domain.ExternalTradeRecord, error) {
	var w jsonWrapper
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	if len(w.Orders) == 0 {
		return nil, errors.New("no orders list")
	}
	return w.Orders, nil
}

func decodeJSONSingle(data []byte) ([]domain.ExternalTradeRecord, error) {
	var rec domain.ExternalTradeRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	if rec.IsEmpty() {
		return nil, errors.New("object has no trade fields")
	}
	return []domain.ExternalTradeRecord{rec}, nil
}

func decodeJSONLines(data []byte) ([]domain.ExternalTradeRecord, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var records []domain.ExternalTradeRecord
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec domain.ExternalTradeRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if rec.IsEmpty() {
			return nil, fmt.Errorf("line %d: object has no trade fields", lineNo)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

package domain

import (
	"testing"
	"time"
)

func TestProcessingResult_Finalize(t *testing.T) {
	tests := []struct {
		name    string
		success int
		failed  int
		preset  FileStatus
		want    FileStatus
	}{
		{"all persisted", 3, 0, "", FileStatusSuccess},
		{"some failed", 2, 1, "", FileStatusPartialSuccess},
		{"all failed", 0, 3, "", FileStatusFailed},
		{"file error kept", 2, 1, FileStatusError, FileStatusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewProcessingResult("orders.csv", time.Now())
			r.SuccessCount = tt.success
			r.FailedCount = tt.failed
			r.Status = tt.preset

			r.Finalize()
			if r.Status != tt.want {
				t.Errorf("Status = %s, want %s", r.Status, tt.want)
			}
		})
	}
}

func TestNewProcessingResult_EmptySlices(t *testing.T) {
	r := NewProcessingResult("orders.json", time.Now())
	if r.Errors == nil || r.DeliveryErrors == nil || r.Trades == nil {
		t.Fatal("expected non-nil slices so JSON renders [] instead of null")
	}

	r.AddError("record 1: bad")
	r.AddDeliveryError("trade T-1: down")
	r.AddTrade(&CanonicalTrade{TransactionID: "T-2"})
	if len(r.Errors) != 1 || len(r.DeliveryErrors) != 1 || len(r.Trades) != 1 {
		t.Fatalf("unexpected lengths: %d %d %d", len(r.Errors), len(r.DeliveryErrors), len(r.Trades))
	}
}

func TestExternalTradeRecord_IsEmpty(t *testing.T) {
	var r ExternalTradeRecord
	if !r.IsEmpty() {
		t.Error("zero record should be empty")
	}
	r.KYC = "Y"
	if r.IsEmpty() {
		t.Error("record with a field should not be empty")
	}
}

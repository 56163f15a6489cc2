package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeEventKey computes the idempotency key sent with a published outbox event.
// Formula: SHA256(event_type|aggregate_id)
// Returns hex-encoded hash (64 characters).
func ComputeEventKey(eventType string, aggregateID string) string {
	data := fmt.Sprintf("%s|%s", eventType, aggregateID)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeRecordKey identifies a source record independently of its trade ID,
// so consumers can detect the same file row ingested twice.
// Formula: SHA256(source_file|record_ordinal|transaction_id)
// Returns hex-encoded hash (64 characters).
func ComputeRecordKey(sourceFile string, recordOrdinal int, transactionID string) string {
	data := fmt.Sprintf("%s|%d|%s", sourceFile, recordOrdinal, transactionID)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

package domain

import "time"

// Format is a supported input file format.
type Format string

// Format constants
const (
	FormatJSON       Format = "json"
	FormatXML        Format = "xml"
	FormatCSV        Format = "csv"
	FormatFixedWidth Format = "fixedwidth"
)

// FileStatus is the overall outcome of processing one file.
type FileStatus string

// File status constants
const (
	FileStatusSuccess        FileStatus = "SUCCESS"         // every record persisted
	FileStatusPartialSuccess FileStatus = "PARTIAL_SUCCESS" // some records failed
	FileStatusFailed         FileStatus = "FAILED"          // no record persisted
	FileStatusError          FileStatus = "ERROR"           // file-level failure
)

// ProcessingResult aggregates the outcome of processing one file.
// It is owned by a single processing call and never shared across files.
type ProcessingResult struct {
	FileName    string     `json:"fileName"`
	Format      Format     `json:"format,omitempty"`
	ProcessedAt time.Time  `json:"processedAt"`
	Status      FileStatus `json:"status"`

	TotalRecords       int `json:"totalRecords"`
	SuccessCount       int `json:"successCount"`
	FailedCount        int `json:"failedCount"`
	PublishedCount     int `json:"publishedCount"`
	PublishFailedCount int `json:"publishFailedCount"`

	Errors         []string          `json:"errors"`         // file and record failures, in file order
	DeliveryErrors []string          `json:"deliveryErrors"` // queue publish failures, in file order
	Trades         []*CanonicalTrade `json:"trades"`         // persisted trades, in file order
}

// NewProcessingResult creates an empty result for fileName.
func NewProcessingResult(fileName string, now time.Time) *ProcessingResult {
	return &ProcessingResult{
		FileName:       fileName,
		ProcessedAt:    now,
		Errors:         []string{},
		DeliveryErrors: []string{},
		Trades:         []*CanonicalTrade{},
	}
}

// AddError appends a file- or record-level error message.
func (r *ProcessingResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// AddDeliveryError appends a publish failure message.
func (r *ProcessingResult) AddDeliveryError(msg string) {
	r.DeliveryErrors = append(r.DeliveryErrors, msg)
}

// AddTrade records a persisted trade.
func (r *ProcessingResult) AddTrade(t *CanonicalTrade) {
	r.Trades = append(r.Trades, t)
}

// Finalize derives Status from the success and failure counts.
// ERROR is set by the caller and is never overwritten.
func (r *ProcessingResult) Finalize() {
	if r.Status == FileStatusError {
		return
	}
	switch {
	case r.FailedCount == 0:
		r.Status = FileStatusSuccess
	case r.SuccessCount > 0:
		r.Status = FileStatusPartialSuccess
	default:
		r.Status = FileStatusFailed
	}
}

// Package report provides JSONL run records and the run summary document.
//
// Records are typed envelopes, one per line, each a self-contained JSON
// object. A gate run emits one submission record, one evaluation record per
// completed snapshot, any error record, and a final verdict record.
package report

import (
	"encoding/json"
	"errors"
	"time"
)

// Record type constants define the envelope types for JSONL output.
// These follow the pattern: perfgate.<type>.v<version>
const (
	// TypeSubmission identifies snapshot submission records.
	TypeSubmission = "perfgate.submission.v1"

	// TypeEvaluation identifies per-snapshot evaluation records.
	TypeEvaluation = "perfgate.evaluation.v1"

	// TypeVerdict identifies the final verdict record.
	TypeVerdict = "perfgate.verdict.v1"

	// TypeError identifies error records.
	TypeError = "perfgate.error.v1"
)

// Record is the envelope for all JSONL output.
type Record struct {
	// Type identifies the record type (e.g., "perfgate.verdict.v1").
	Type string `json:"type"`

	// TS is the timestamp when the record was created (RFC3339Nano).
	TS time.Time `json:"ts"`

	// RunID is the correlation ID for this gate run.
	RunID string `json:"run_id"`

	// Build is the build label the run belongs to.
	Build string `json:"build"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// JobRef identifies a started snapshot.
type JobRef struct {
	TestID     int    `json:"test_id"`
	SnapshotID int    `json:"snapshot_id"`
	URL        string `json:"url,omitempty"`
}

// FailedTest is a test whose snapshot could not be started.
type FailedTest struct {
	TestID int    `json:"test_id"`
	Error  string `json:"error"`
}

// SubmissionRecord is the data payload for snapshot submission.
type SubmissionRecord struct {
	Submitted []JobRef     `json:"submitted"`
	Failed    []FailedTest `json:"failed,omitempty"`
}

// TagRecord is one tag applied to a snapshot.
type TagRecord struct {
	Name     string `json:"name"`
	Priority string `json:"priority"`
}

// EvaluationRecord is the data payload for one evaluated snapshot.
type EvaluationRecord struct {
	TestID          int    `json:"test_id"`
	SnapshotID      int    `json:"snapshot_id"`
	URL             string `json:"url,omitempty"`
	Score           *int   `json:"score,omitempty"`
	CriticalDefects *int   `json:"critical_defects,omitempty"`

	Passed  bool     `json:"passed"`
	Reasons []string `json:"reasons,omitempty"`
	Details []string `json:"details,omitempty"`

	Tags []TagRecord `json:"tags,omitempty"`

	// EnrichmentErrors lists failed best-effort lookups.
	EnrichmentErrors []string `json:"enrichment_errors,omitempty"`

	// TagError is set when the tags could not be applied.
	TagError string `json:"tag_error,omitempty"`
}

// VerdictRecord is the data payload for the final verdict.
type VerdictRecord struct {
	Passed bool `json:"passed"`

	// Waited is false when results were not awaited.
	Waited bool `json:"waited"`

	Submitted int `json:"submitted"`
	Evaluated int `json:"evaluated"`
	Failed    int `json:"failed"`

	// Duration is the total run duration.
	Duration time.Duration `json:"duration_ns"`

	// DurationHuman is a human-readable duration string.
	DurationHuman string `json:"duration"`

	// ErrorCode is set when an infrastructure error decided the run.
	ErrorCode string `json:"error_code,omitempty"`
}

// ErrorRecord is the data payload for errors.
type ErrorRecord struct {
	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	TestID     int `json:"test_id,omitempty"`
	SnapshotID int `json:"snapshot_id,omitempty"`
}

// Error codes for ErrorRecord.
const (
	ErrCodeSubmission = "SUBMISSION_FAILED"
	ErrCodeScanFailed = "SCAN_FAILED"
	ErrCodeTimeout    = "TIMEOUT"
	ErrCodeCancelled  = "CANCELLED"
	ErrCodeEvaluation = "EVALUATION_FAILED"
	ErrCodeNoResults  = "NO_RESULTS"
	ErrCodeInternal   = "INTERNAL"
)

// Writer errors.
var (
	// ErrWriterClosed is returned when writing to a closed writer.
	ErrWriterClosed = errors.New("writer is closed")
)

// WriteError wraps errors that occur during write operations.
type WriteError struct {
	Op  string // Operation that failed (e.g., "marshal_data", "write")
	Err error  // Underlying error
}

func (e *WriteError) Error() string {
	return "report: " + e.Op + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

package gate

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

// ErrNoCompletedJobs is returned when evaluation is requested on an empty
// set of completed snapshots. An empty set is never a vacuous pass.
var ErrNoCompletedJobs = errors.New("no completed snapshots to evaluate")

// SubmitFailure records one test whose snapshot could not be created.
type SubmitFailure struct {
	TestID int
	Err    error
}

// SubmissionError reports that one or more snapshots failed to start.
// The snapshots that did start are still returned alongside it.
type SubmissionError struct {
	Attempted int
	Failures  []SubmitFailure

	cause error
}

func newSubmissionError(attempted int, failures []SubmitFailure) *SubmissionError {
	var result *multierror.Error
	for _, f := range failures {
		result = multierror.Append(result, fmt.Errorf("test %d: %w", f.TestID, f.Err))
	}
	return &SubmissionError{
		Attempted: attempted,
		Failures:  failures,
		cause:     result.ErrorOrNil(),
	}
}

// Error implements the error interface.
func (e *SubmissionError) Error() string {
	return fmt.Sprintf("failed to launch %d of %d performance test(s)", len(e.Failures), e.Attempted)
}

// Unwrap exposes the aggregated per-test errors.
func (e *SubmissionError) Unwrap() error {
	return e.cause
}

// FailedTestIDs returns the tests whose submission failed.
func (e *SubmissionError) FailedTestIDs() []int {
	ids := make([]int, 0, len(e.Failures))
	for _, f := range e.Failures {
		ids = append(ids, f.TestID)
	}
	return ids
}

// PollAbortError reports that waiting stopped because a snapshot failed.
//
// Err is nil when the snapshot itself reached the error state, and holds the
// cause when its state could not be fetched.
type PollAbortError struct {
	Job Snapshot
	Err error
}

// Error implements the error interface.
func (e *PollAbortError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("Test %d, snapshot %d failed scanning", e.Job.TestID, e.Job.SnapshotID)
	}
	return fmt.Sprintf("polling %s: %v", e.Job, e.Err)
}

// Unwrap returns the fetch error, if any.
func (e *PollAbortError) Unwrap() error {
	return e.Err
}

// PollTimeoutError reports that the deadline passed with snapshots still
// outstanding. No partial completed set accompanies it.
type PollTimeoutError struct {
	Timeout   time.Duration
	Remaining []Snapshot
}

// Error implements the error interface.
func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("timeout of %s exceeded with %d snapshot(s) outstanding", e.Timeout, len(e.Remaining))
}

// CancellationError reports an external abort while waiting.
type CancellationError struct {
	Err error
}

// Error implements the error interface.
func (e *CancellationError) Error() string {
	return fmt.Sprintf("abort signal received: %v", e.Err)
}

// Unwrap returns the context error.
func (e *CancellationError) Unwrap() error {
	return e.Err
}

// EvaluationError reports that a mandatory evaluation lookup failed.
type EvaluationError struct {
	Job Snapshot
	Err error
}

// Error implements the error interface.
func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluating %s: %v", e.Job, e.Err)
}

// Unwrap returns the lookup error.
func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// EnrichmentError records a failed best-effort call (defect detail lookup,
// tagging). It is never escalated and never changes a verdict.
type EnrichmentError struct {
	Op  string
	Job Snapshot
	Err error
}

// Error implements the error interface.
func (e *EnrichmentError) Error() string {
	return fmt.Sprintf("%s for %s: %v", e.Op, e.Job, e.Err)
}

// Unwrap returns the underlying error.
func (e *EnrichmentError) Unwrap() error {
	return e.Err
}

// MissingTestsError lists test IDs that do not exist on the service.
type MissingTestsError struct {
	TestIDs []int
}

// Error implements the error interface.
func (e *MissingTestsError) Error() string {
	if len(e.TestIDs) == 1 {
		return fmt.Sprintf("Test ID %d does not exist.", e.TestIDs[0])
	}
	return "The following Test IDs do not exist: " + joinIDs(e.TestIDs)
}

// IsInfrastructureError reports whether err is one of the error kinds that
// are resolved by the fail-on-error policy rather than by thresholds.
func IsInfrastructureError(err error) bool {
	var (
		submitErr *SubmissionError
		abortErr  *PollAbortError
		timeErr   *PollTimeoutError
		cancelErr *CancellationError
		evalErr   *EvaluationError
	)
	switch {
	case errors.As(err, &submitErr), errors.As(err, &abortErr), errors.As(err, &timeErr),
		errors.As(err, &cancelErr), errors.As(err, &evalErr), errors.Is(err, ErrNoCompletedJobs):
		return true
	default:
		return false
	}
}

func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

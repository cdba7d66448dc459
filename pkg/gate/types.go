// Package gate implements the build-gate engine.
//
// A gate run submits one performance snapshot per configured test, waits for
// the snapshots to finish, evaluates each finished snapshot against the
// configured thresholds and tags the results back on the remote service. The
// run resolves to exactly one pass/fail verdict.
//
// Phases run sequentially and each phase hands a fresh slice to the next:
//
//	ThresholdConfig -> Submitter -> Poller -> Evaluator -> Reporter -> verdict
package gate

import (
	"fmt"
	"strconv"
)

// JobState is the remote lifecycle state of a snapshot.
type JobState string

const (
	JobStateQueued   JobState = "Queued"
	JobStateRunning  JobState = "Running"
	JobStateComplete JobState = "Complete"
	JobStateError    JobState = "Error"
)

// IsComplete reports whether the snapshot finished successfully.
func (s JobState) IsComplete() bool {
	return s == JobStateComplete
}

// IsFailed reports whether the snapshot reached the terminal error state.
func (s JobState) IsFailed() bool {
	return s == JobStateError
}

// IsTerminal reports whether no further state changes are expected.
//
// Any state value the gate does not recognize is non-terminal: the poller
// keeps waiting rather than guessing success or failure.
func (s JobState) IsTerminal() bool {
	return s.IsComplete() || s.IsFailed()
}

// Snapshot is one remote test run.
type Snapshot struct {
	TestID     int
	SnapshotID int
	State      JobState

	// Score is the performance score (1-100), nil until reported.
	Score *int

	// CriticalDefects is the number of critical defects, nil until reported.
	CriticalDefects *int

	// ResultURL is the guest URL for the snapshot results.
	ResultURL string
}

// String identifies the snapshot for log lines and error messages.
func (s Snapshot) String() string {
	return fmt.Sprintf("test %d, snapshot %d", s.TestID, s.SnapshotID)
}

// Defect is a single finding reported on a snapshot.
type Defect struct {
	ID       int
	Name     string
	Severity string
	URL      string
}

// Priority is the importance of a tag on the remote service.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// MaxTagLength is the longest tag name the remote service accepts.
const MaxTagLength = 80

// Tag is a named, prioritized annotation on a snapshot or test.
type Tag struct {
	Name     string
	Priority Priority
}

// NewTag builds a tag with the name truncated to MaxTagLength characters.
// An empty priority defaults to PriorityMedium.
func NewTag(name string, priority Priority) Tag {
	if priority == "" {
		priority = PriorityMedium
	}
	return Tag{Name: truncate(name, MaxTagLength), Priority: priority}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// DefaultBuildSystem names the CI system in tags when none is configured.
const DefaultBuildSystem = "CI"

// BuildIdentity describes the CI build a gate run belongs to.
type BuildIdentity struct {
	System  string
	Project string

	// Number is the build number. Zero means unknown.
	Number int
}

func (b BuildIdentity) system() string {
	if b.System == "" {
		return DefaultBuildSystem
	}
	return b.System
}

// Label is the build label used in snapshot tags, e.g. "Jenkins web #42".
func (b BuildIdentity) Label() string {
	if b.Project != "" && b.Number > 0 {
		return truncate(b.system()+" "+b.Project+" #"+strconv.Itoa(b.Number), MaxTagLength)
	}
	return b.system() + " Build"
}

// TestLabel is the label used to mark a test definition as gated by a
// build pipeline, e.g. "Jenkins web".
func (b BuildIdentity) TestLabel() string {
	if b.Project != "" {
		return truncate(b.system()+" "+b.Project, MaxTagLength)
	}
	return b.system() + " Build"
}

// EvaluationOutcome is the verdict for one completed snapshot.
//
// Passed is true exactly when Reasons is empty.
type EvaluationOutcome struct {
	Job    Snapshot
	Passed bool

	// Reasons lists every failed criterion in evaluation order.
	Reasons []string

	// Details holds diagnostic lines (defect listings).
	Details []string

	// Tags is either a single pass tag, or a build-failed tag followed by
	// one tag per failed criterion.
	Tags []Tag

	// EnrichmentErrors records best-effort lookups that failed.
	EnrichmentErrors []error

	// TagError records a failure to apply Tags. It never changes Passed.
	TagError error
}

// BatchVerdict aggregates the outcomes of one gate run.
type BatchVerdict struct {
	// Passed is the logical AND of all outcome verdicts.
	Passed   bool
	Outcomes []EvaluationOutcome
}

// Failed returns the outcomes that did not pass.
func (v *BatchVerdict) Failed() []EvaluationOutcome {
	var out []EvaluationOutcome
	for _, o := range v.Outcomes {
		if !o.Passed {
			out = append(out, o)
		}
	}
	return out
}

package report

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/3leaps/perfgate/pkg/gate"
)

// NewRunID returns a fresh correlation ID for a gate run.
func NewRunID() string {
	return uuid.NewString()
}

// Thresholds echoes the effective gate configuration in the summary.
type Thresholds struct {
	PerformanceScore   *int          `json:"performance_score,omitempty"`
	MaxCriticalDefects *int          `json:"max_critical_defects,omitempty"`
	DefectIDs          []int         `json:"defect_ids,omitempty"`
	PollTimeout        time.Duration `json:"poll_timeout_ns"`
	FailOnError        bool          `json:"fail_on_error"`
	FailOnResults      bool          `json:"fail_on_results"`
}

// Summary is the report document written at the end of a gate run.
type Summary struct {
	RunID      string    `json:"run_id"`
	Build      string    `json:"build"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Passed bool `json:"passed"`
	Waited bool `json:"waited"`

	Tests      []int      `json:"tests"`
	Thresholds Thresholds `json:"thresholds"`

	Submission  SubmissionRecord   `json:"submission"`
	Evaluations []EvaluationRecord `json:"evaluations,omitempty"`

	Error *ErrorRecord `json:"error,omitempty"`
}

// NewSummary builds the summary document for res.
func NewSummary(runID string, cfg *gate.ThresholdConfig, res *gate.Result, started, finished time.Time) *Summary {
	s := &Summary{
		RunID:      runID,
		Build:      cfg.Build().Label(),
		StartedAt:  started.UTC(),
		FinishedAt: finished.UTC(),
		Passed:     res.Passed,
		Waited:     res.Waited,
		Tests:      cfg.TestIDs(),
		Thresholds: thresholdsOf(cfg),
		Submission: submissionOf(res.Submission),
	}
	if res.Verdict != nil {
		for _, o := range res.Verdict.Outcomes {
			s.Evaluations = append(s.Evaluations, evaluationOf(o))
		}
	}
	if res.Err != nil {
		s.Error = errorOf(res.Err)
	}
	return s
}

// JSON renders the summary as indented JSON.
func (s *Summary) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, &WriteError{Op: "marshal_summary", Err: err}
	}
	return append(data, '\n'), nil
}

// Emit writes the records for res to w in run order: submission,
// evaluations, error, verdict.
func Emit(ctx context.Context, w Writer, res *gate.Result, duration time.Duration) error {
	sub := submissionOf(res.Submission)
	if err := w.WriteSubmission(ctx, &sub); err != nil {
		return err
	}

	evaluated, failed := 0, 0
	if res.Verdict != nil {
		for _, o := range res.Verdict.Outcomes {
			eval := evaluationOf(o)
			if err := w.WriteEvaluation(ctx, &eval); err != nil {
				return err
			}
			evaluated++
			if !o.Passed {
				failed++
			}
		}
	}

	verdict := &VerdictRecord{
		Passed:        res.Passed,
		Waited:        res.Waited,
		Submitted:     len(sub.Submitted),
		Evaluated:     evaluated,
		Failed:        failed,
		Duration:      duration,
		DurationHuman: duration.Round(time.Millisecond).String(),
	}
	if res.Err != nil {
		rec := errorOf(res.Err)
		if err := w.WriteError(ctx, rec); err != nil {
			return err
		}
		verdict.ErrorCode = rec.Code
	}
	return w.WriteVerdict(ctx, verdict)
}

// ErrorCode classifies a gate error for machine consumers.
func ErrorCode(err error) string {
	var (
		submitErr *gate.SubmissionError
		abortErr  *gate.PollAbortError
		timeErr   *gate.PollTimeoutError
		cancelErr *gate.CancellationError
		evalErr   *gate.EvaluationError
	)
	switch {
	case errors.As(err, &submitErr):
		return ErrCodeSubmission
	case errors.As(err, &abortErr):
		return ErrCodeScanFailed
	case errors.As(err, &timeErr):
		return ErrCodeTimeout
	case errors.As(err, &cancelErr):
		return ErrCodeCancelled
	case errors.As(err, &evalErr):
		return ErrCodeEvaluation
	case errors.Is(err, gate.ErrNoCompletedJobs):
		return ErrCodeNoResults
	default:
		return ErrCodeInternal
	}
}

func errorOf(err error) *ErrorRecord {
	rec := &ErrorRecord{Code: ErrorCode(err), Message: err.Error()}

	var abortErr *gate.PollAbortError
	var evalErr *gate.EvaluationError
	switch {
	case errors.As(err, &abortErr):
		rec.TestID, rec.SnapshotID = abortErr.Job.TestID, abortErr.Job.SnapshotID
	case errors.As(err, &evalErr):
		rec.TestID, rec.SnapshotID = evalErr.Job.TestID, evalErr.Job.SnapshotID
	}
	return rec
}

func thresholdsOf(cfg *gate.ThresholdConfig) Thresholds {
	t := Thresholds{
		DefectIDs:     cfg.WatchedDefectIDs(),
		PollTimeout:   cfg.PollTimeout(),
		FailOnError:   cfg.FailOnError(),
		FailOnResults: cfg.FailOnResults(),
	}
	if v, ok := cfg.ScoreFloor(); ok {
		t.PerformanceScore = &v
	}
	if v, ok := cfg.MaxCriticalDefects(); ok {
		t.MaxCriticalDefects = &v
	}
	return t
}

func submissionOf(sub *gate.Submission) SubmissionRecord {
	rec := SubmissionRecord{Submitted: []JobRef{}}
	if sub == nil {
		return rec
	}
	for _, job := range sub.Jobs {
		rec.Submitted = append(rec.Submitted, JobRef{
			TestID:     job.TestID,
			SnapshotID: job.SnapshotID,
			URL:        job.ResultURL,
		})
	}
	for _, f := range sub.Failures {
		rec.Failed = append(rec.Failed, FailedTest{TestID: f.TestID, Error: f.Err.Error()})
	}
	return rec
}

func evaluationOf(o gate.EvaluationOutcome) EvaluationRecord {
	rec := EvaluationRecord{
		TestID:          o.Job.TestID,
		SnapshotID:      o.Job.SnapshotID,
		URL:             o.Job.ResultURL,
		Score:           o.Job.Score,
		CriticalDefects: o.Job.CriticalDefects,
		Passed:          o.Passed,
		Reasons:         o.Reasons,
		Details:         o.Details,
	}
	for _, tag := range o.Tags {
		rec.Tags = append(rec.Tags, TagRecord{Name: tag.Name, Priority: string(tag.Priority)})
	}
	for _, err := range o.EnrichmentErrors {
		rec.EnrichmentErrors = append(rec.EnrichmentErrors, err.Error())
	}
	if o.TagError != nil {
		rec.TagError = o.TagError.Error()
	}
	return rec
}

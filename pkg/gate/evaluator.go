package gate

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// criterionFailure is one failed threshold: the human-readable reason and
// the short message used in the failure tag.
type criterionFailure struct {
	reason string
	tag    string
}

// Evaluator decides a verdict for each completed snapshot.
type Evaluator struct {
	client   Client
	cfg      *ThresholdConfig
	reporter *Reporter
	log      *zap.Logger
	metrics  *Metrics
}

// NewEvaluator returns an Evaluator that tags results through reporter.
func NewEvaluator(client Client, cfg *ThresholdConfig, reporter *Reporter, logger *zap.Logger, metrics *Metrics) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{client: client, cfg: cfg, reporter: reporter, log: logger, metrics: metrics}
}

// Evaluate checks every completed snapshot and tags it with the outcome.
//
// Outcomes keep the order of jobs. An empty jobs slice returns
// ErrNoCompletedJobs. A failed watched-defect lookup returns an
// *EvaluationError; failed detail lookups and tagging are recorded on the
// outcome and never change it.
func (e *Evaluator) Evaluate(ctx context.Context, jobs []Snapshot) (*BatchVerdict, error) {
	if len(jobs) == 0 {
		return nil, ErrNoCompletedJobs
	}

	e.log.Info("----------------------")
	e.log.Info("Analyzing Test Results")
	e.log.Info("----------------------")

	verdict := &BatchVerdict{Passed: true, Outcomes: make([]EvaluationOutcome, 0, len(jobs))}
	for i, job := range jobs {
		if i > 0 {
			e.log.Info("----------------------")
		}

		outcome, err := e.EvaluateJob(ctx, job)
		if err != nil {
			return nil, err
		}

		if e.reporter != nil {
			outcome.TagError = e.reporter.Apply(ctx, job, outcome.Tags)
		}

		e.metrics.verdict(outcome.Passed)
		verdict.Outcomes = append(verdict.Outcomes, *outcome)
		verdict.Passed = verdict.Passed && outcome.Passed
	}

	if verdict.Passed {
		e.log.Info("All tests passed!")
	} else {
		e.log.Warn("One or more tests failed.")
	}
	return verdict, nil
}

// EvaluateJob runs every enabled criterion on job without short-circuiting
// and builds its tags. It does not apply the tags.
func (e *Evaluator) EvaluateJob(ctx context.Context, job Snapshot) (*EvaluationOutcome, error) {
	e.log.Info(fmt.Sprintf("Analyzing Test %d, Snapshot %d: %s", job.TestID, job.SnapshotID, job.ResultURL))

	out := &EvaluationOutcome{Job: job}
	var failures []criterionFailure

	if floor, ok := e.cfg.ScoreFloor(); ok {
		if f, failed := e.checkScore(job, floor); failed {
			failures = append(failures, f)
		}
	}

	if limit, ok := e.cfg.MaxCriticalDefects(); ok {
		if f, failed := e.checkCritical(ctx, job, limit, out); failed {
			failures = append(failures, f)
		}
	}

	if watched := e.cfg.WatchedDefectIDs(); len(watched) > 0 {
		f, failed, err := e.checkWatched(ctx, job, watched, out)
		if err != nil {
			return nil, &EvaluationError{Job: job, Err: err}
		}
		if failed {
			failures = append(failures, f)
		}
	}

	for _, f := range failures {
		out.Reasons = append(out.Reasons, f.reason)
	}
	out.Passed = len(out.Reasons) == 0
	out.Tags = buildTags(e.cfg.Build(), failures)
	return out, nil
}

func (e *Evaluator) checkScore(job Snapshot, floor int) (criterionFailure, bool) {
	f := criterionFailure{tag: fmt.Sprintf("Score less than %d", floor)}
	if job.Score == nil {
		f.reason = fmt.Sprintf("Performance score not reported (limit %d)", floor)
		e.log.Warn("** FAILED **: " + f.reason)
		return f, true
	}

	msg := fmt.Sprintf("Performance Score: %d (limit %d)", *job.Score, floor)
	if *job.Score < floor {
		f.reason = fmt.Sprintf("Performance score %d is below the limit of %d", *job.Score, floor)
		e.log.Warn("** FAILED **: " + msg)
		return f, true
	}
	e.log.Info("Passed: " + msg)
	return f, false
}

func (e *Evaluator) checkCritical(ctx context.Context, job Snapshot, limit int, out *EvaluationOutcome) (criterionFailure, bool) {
	f := criterionFailure{tag: fmt.Sprintf("Critical defects more than %d", limit)}
	if job.CriticalDefects == nil {
		f.reason = fmt.Sprintf("Critical defect count not reported (limit %d)", limit)
		e.log.Warn("** FAILED **: " + f.reason)
		return f, true
	}

	count := *job.CriticalDefects
	msg := fmt.Sprintf("Critical Defects: %d (limit %d)", count, limit)
	if count <= limit {
		e.log.Info("Passed: " + msg)
		return f, false
	}

	f.reason = fmt.Sprintf("Critical defects %d exceed the limit of %d", count, limit)
	e.log.Warn("** FAILED **: " + msg)

	// Detail is informational only.
	defects, err := e.client.FetchCriticalDefects(ctx, job.TestID, job.SnapshotID)
	if err != nil {
		e.log.Warn("Failed to load critical defect details", zap.Error(err))
		out.EnrichmentErrors = append(out.EnrichmentErrors, &EnrichmentError{Op: "fetch critical defects", Job: job, Err: err})
		e.metrics.enrichmentFailed()
		return f, true
	}
	e.logDefects(defects, out)
	e.log.Info("...Reminder: you can mute or change severity of these defects for future builds using the defect links above (must be logged in)")
	return f, true
}

func (e *Evaluator) checkWatched(ctx context.Context, job Snapshot, watched []int, out *EvaluationOutcome) (criterionFailure, bool, error) {
	defects, err := e.client.FetchDefectsByID(ctx, job.TestID, job.SnapshotID, watched)
	if err != nil {
		return criterionFailure{}, false, err
	}
	if len(defects) == 0 {
		e.log.Info("Passed: No defects in found defect fail list were discovered")
		return criterionFailure{}, false, nil
	}

	e.log.Warn(fmt.Sprintf("** FAILED **: %d defect(s) in your defect fail list were found:", len(defects)))
	e.logDefects(defects, out)

	f := criterionFailure{reason: fmt.Sprintf("%d defect(s) in the defect fail list were found", len(defects))}
	if len(defects) == 1 {
		f.tag = "1 failed defect found"
	} else {
		f.tag = fmt.Sprintf("%d failed defects found", len(defects))
	}
	return f, true, nil
}

func (e *Evaluator) logDefects(defects []Defect, out *EvaluationOutcome) {
	for i, d := range defects {
		line := fmt.Sprintf("--> %d. %s severity defect '%s' (%d): %s", i+1, d.Severity, d.Name, d.ID, d.URL)
		out.Details = append(out.Details, line)
		e.log.Info(line)
	}
}

// buildTags returns a single low-priority pass tag, or a high-priority
// build-failed tag followed by one tag per failure.
func buildTags(build BuildIdentity, failures []criterionFailure) []Tag {
	if len(failures) == 0 {
		return []Tag{NewTag(build.Label()+" build passed", PriorityLow)}
	}

	tags := make([]Tag, 0, len(failures)+1)
	tags = append(tags, NewTag(build.Label()+" build failed", PriorityHigh))
	for _, f := range failures {
		tags = append(tags, NewTag(build.system()+" Failure: "+f.tag, PriorityHigh))
	}
	return tags
}

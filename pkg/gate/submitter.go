package gate

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Submission is the result of starting snapshots for every configured test.
type Submission struct {
	// Jobs are the snapshots that started, in test ID order.
	Jobs []Snapshot

	// Failures are the tests whose snapshot could not be created.
	Failures []SubmitFailure
}

// Submitter creates one snapshot per configured test.
type Submitter struct {
	client  Client
	cfg     *ThresholdConfig
	log     *zap.Logger
	metrics *Metrics
}

// NewSubmitter returns a Submitter. A nil logger discards output.
func NewSubmitter(client Client, cfg *ThresholdConfig, logger *zap.Logger, metrics *Metrics) *Submitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Submitter{client: client, cfg: cfg, log: logger, metrics: metrics}
}

// Submit attempts every test independently; a failed test does not stop
// the others.
//
// When results will not be awaited, each snapshot is tagged with the build
// label at creation because no evaluation pass will tag it later. Otherwise
// tagging is left to the Evaluator.
//
// If any submission failed, Submit returns a *SubmissionError together with
// the snapshots that did start.
func (s *Submitter) Submit(ctx context.Context) (*Submission, error) {
	ids := s.cfg.TestIDs()
	s.log.Info(fmt.Sprintf("Creating %d new performance snapshot(s)", len(ids)))

	startTag := ""
	if !s.cfg.WaitForResults() {
		startTag = s.cfg.Build().Label()
	}

	sub := &Submission{Jobs: make([]Snapshot, 0, len(ids))}
	for _, id := range ids {
		s.log.Info(fmt.Sprintf("Creating new snapshot for test %d...", id))

		snap, err := s.client.SubmitJob(ctx, id, startTag)
		if err != nil {
			s.log.Warn("Failed to create snapshot", zap.Int("test_id", id), zap.Error(err))
			sub.Failures = append(sub.Failures, SubmitFailure{TestID: id, Err: err})
			s.metrics.submitFailed()
		} else {
			if snap.TestID == 0 {
				snap.TestID = id
			}
			s.log.Info(fmt.Sprintf("New snapshot %d created: %s", snap.SnapshotID, snap.ResultURL),
				zap.Int("test_id", id), zap.Int("snapshot_id", snap.SnapshotID))
			sub.Jobs = append(sub.Jobs, snap)
			s.metrics.submittedOK()
		}

		_ = s.tagTest(ctx, id)
	}

	if len(sub.Failures) > 0 {
		return sub, newSubmissionError(len(ids), sub.Failures)
	}

	s.log.Info("Done creating snapshots")
	return sub, nil
}

// tagTest marks the test definition as gated by this pipeline. Failures are
// logged and returned for callers that care; Submit ignores them.
func (s *Submitter) tagTest(ctx context.Context, testID int) error {
	tag := NewTag(s.cfg.Build().TestLabel(), PriorityLow)
	if err := s.client.UpdateTestTags(ctx, testID, []Tag{tag}); err != nil {
		s.log.Warn(fmt.Sprintf("Failed to tag test %d", testID), zap.Error(err))
		return &EnrichmentError{Op: "tag test", Job: Snapshot{TestID: testID}, Err: err}
	}
	return nil
}

package gate

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Reporter applies evaluation tags to snapshots on the remote service.
type Reporter struct {
	client  Client
	log     *zap.Logger
	metrics *Metrics
}

// NewReporter returns a Reporter.
func NewReporter(client Client, logger *zap.Logger, metrics *Metrics) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{client: client, log: logger, metrics: metrics}
}

// Apply adds tags to job. Names are normalized to MaxTagLength first.
//
// Tagging is best effort: the returned error is meant to be recorded, and
// the verdict that produced the tags is already final.
func (r *Reporter) Apply(ctx context.Context, job Snapshot, tags []Tag) error {
	if len(tags) == 0 {
		return nil
	}

	normalized := make([]Tag, len(tags))
	for i, t := range tags {
		normalized[i] = NewTag(t.Name, t.Priority)
	}

	if normalized[0].Priority == PriorityHigh {
		r.log.Info("Tagging defect failures")
	}

	if err := r.client.UpdateJobTags(ctx, job.TestID, job.SnapshotID, normalized); err != nil {
		r.log.Warn(fmt.Sprintf("Failed to tag snapshot %d for test %d", job.SnapshotID, job.TestID), zap.Error(err))
		r.metrics.tagFailed()
		return &EnrichmentError{Op: "tag snapshot", Job: job, Err: err}
	}
	return nil
}

package gate

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Poll intervals, chosen by time elapsed since the wait started.
const (
	pollIntervalEarly = 10 * time.Second
	pollIntervalMid   = 20 * time.Second
	pollIntervalLate  = 30 * time.Second

	pollBackoffMid  = 2 * time.Minute
	pollBackoffLate = 5 * time.Minute
)

// BackoffInterval returns the sleep before the next sweep given the time
// elapsed since the wait started: 10s below 2m, 20s below 5m, then 30s.
func BackoffInterval(elapsed time.Duration) time.Duration {
	switch {
	case elapsed >= pollBackoffLate:
		return pollIntervalLate
	case elapsed >= pollBackoffMid:
		return pollIntervalMid
	default:
		return pollIntervalEarly
	}
}

// Sleeper blocks for d or until ctx is done, returning ctx.Err() in the
// latter case.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// PollerOption customizes a Poller.
type PollerOption func(*Poller)

// WithClock replaces the wall clock and sleep used by the poller.
func WithClock(now func() time.Time, sleep Sleeper) PollerOption {
	return func(p *Poller) {
		if now != nil {
			p.now = now
		}
		if sleep != nil {
			p.sleep = sleep
		}
	}
}

// Poller waits for a batch of snapshots to reach a terminal state.
type Poller struct {
	client  Client
	timeout time.Duration
	log     *zap.Logger
	metrics *Metrics
	now     func() time.Time
	sleep   Sleeper
}

// NewPoller returns a Poller bounded by timeout.
func NewPoller(client Client, timeout time.Duration, logger *zap.Logger, metrics *Metrics, opts ...PollerOption) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Poller{
		client:  client,
		timeout: timeout,
		log:     logger,
		metrics: metrics,
		now:     time.Now,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Wait polls jobs until all complete or the timeout passes.
//
// Each iteration sleeps for BackoffInterval(elapsed) and then fetches every
// remaining snapshot once. A snapshot in the error state aborts the whole
// wait immediately with a *PollAbortError. Cancellation of ctx during the
// sleep returns a *CancellationError. If the deadline passes with snapshots
// outstanding, Wait returns a *PollTimeoutError and no completed set, even
// for snapshots that finished along the way.
func (p *Poller) Wait(ctx context.Context, jobs []Snapshot) ([]Snapshot, error) {
	remaining := append([]Snapshot(nil), jobs...)
	completed := make([]Snapshot, 0, len(jobs))

	start := p.now()
	deadline := start.Add(p.timeout)

	p.log.Info(fmt.Sprintf("Waiting for completion of %d snapshot(s), timeout %d seconds",
		len(remaining), int(p.timeout/time.Second)))

	for now := start; len(remaining) > 0 && now.Before(deadline); now = p.now() {
		interval := BackoffInterval(now.Sub(start))
		if err := p.sleep(ctx, interval); err != nil {
			return nil, &CancellationError{Err: err}
		}

		p.log.Info(fmt.Sprintf("Polling status of %d remaining snapshot(s)...", len(remaining)))

		var done []Snapshot
		var err error
		remaining, done, err = p.sweep(ctx, remaining)
		if err != nil {
			return nil, err
		}
		completed = append(completed, done...)
	}

	if len(remaining) > 0 {
		return nil, &PollTimeoutError{Timeout: p.timeout, Remaining: remaining}
	}

	p.log.Info("All snapshots complete")
	return completed, nil
}

// sweep fetches each job once, last to first, and returns the jobs still
// pending (in their original order) plus the jobs that completed.
func (p *Poller) sweep(ctx context.Context, jobs []Snapshot) ([]Snapshot, []Snapshot, error) {
	pending := make([]bool, len(jobs))
	var done []Snapshot

	for i := len(jobs) - 1; i >= 0; i-- {
		job := jobs[i]

		cur, err := p.client.FetchJob(ctx, job.TestID, job.SnapshotID)
		p.metrics.polled()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, nil, &CancellationError{Err: ctxErr}
			}
			return nil, nil, &PollAbortError{Job: job, Err: err}
		}
		cur = mergeIdentity(job, cur)

		switch {
		case cur.State.IsFailed():
			return nil, nil, &PollAbortError{Job: cur}
		case cur.State.IsComplete():
			done = append(done, cur)
			p.log.Info(fmt.Sprintf("Snapshot %d for test %d complete. %d remaining",
				cur.SnapshotID, cur.TestID, len(jobs)-len(done)))
		default:
			pending[i] = true
		}
	}

	still := make([]Snapshot, 0, len(jobs)-len(done))
	for i, job := range jobs {
		if pending[i] {
			still = append(still, job)
		}
	}
	return still, done, nil
}

// mergeIdentity fills identity fields the fetch response left empty.
func mergeIdentity(orig, cur Snapshot) Snapshot {
	if cur.TestID == 0 {
		cur.TestID = orig.TestID
	}
	if cur.SnapshotID == 0 {
		cur.SnapshotID = orig.SnapshotID
	}
	if cur.ResultURL == "" {
		cur.ResultURL = orig.ResultURL
	}
	return cur
}

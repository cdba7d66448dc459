package gate

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Result is everything a gate run produced.
type Result struct {
	// Passed is the single verdict of the run.
	Passed bool

	// Submission holds the snapshots that started and the tests that failed
	// to start. Nil only if submission never ran.
	Submission *Submission

	// Waited reports whether the run polled and evaluated snapshots.
	Waited bool

	// Completed are the snapshots that finished, in completion order.
	Completed []Snapshot

	// Verdict is nil unless evaluation ran to the end.
	Verdict *BatchVerdict

	// Err is the infrastructure error that decided the run, if any. When
	// Err is set, Passed reflects the fail-on-error policy.
	Err error
}

// Option customizes a Runner.
type Option func(*Runner)

// WithLogger sets the logger used to narrate the run.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.log = logger
		}
	}
}

// WithMetrics records run activity into m.
func WithMetrics(m *Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithPollerOptions passes options through to the Poller.
func WithPollerOptions(opts ...PollerOption) Option {
	return func(r *Runner) {
		r.pollerOpts = append(r.pollerOpts, opts...)
	}
}

// Runner executes one gate run.
type Runner struct {
	client     Client
	cfg        *ThresholdConfig
	log        *zap.Logger
	metrics    *Metrics
	pollerOpts []PollerOption
}

// NewRunner returns a Runner for cfg using client.
func NewRunner(client Client, cfg *ThresholdConfig, opts ...Option) *Runner {
	r := &Runner{
		client: client,
		cfg:    cfg,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunGate runs the gate and returns only the verdict.
func (r *Runner) RunGate(ctx context.Context) bool {
	return r.Run(ctx).Passed
}

// Run submits, waits for, evaluates and tags the configured snapshots.
//
// Threshold failures produce Passed=false with a nil Err. Every
// infrastructure failure (submission, poll abort, timeout, cancellation,
// evaluation lookup, empty result) stops the run and is resolved by the
// fail-on-error policy.
func (r *Runner) Run(ctx context.Context) *Result {
	res := &Result{}
	defer func() { r.metrics.runResult(res.Passed) }()

	submitter := NewSubmitter(r.client, r.cfg, r.log, r.metrics)
	sub, err := submitter.Submit(ctx)
	res.Submission = sub
	if err != nil {
		r.log.Error(err.Error(), zap.Ints("failed_test_ids", failedIDs(err)))
		return r.fail(res, err)
	}

	if !r.cfg.WaitForResults() {
		if !r.cfg.FailOnResults() {
			r.log.Info("Fail based on results disabled, continuing build without waiting for snapshots to complete.")
		} else {
			r.log.Info("No metrics were configured for build failure, continuing build without waiting for snapshots to complete.")
		}
		res.Passed = true
		return res
	}
	res.Waited = true

	poller := NewPoller(r.client, r.cfg.PollTimeout(), r.log, r.metrics, r.pollerOpts...)
	completed, err := poller.Wait(ctx, sub.Jobs)
	if err != nil {
		r.log.Error(err.Error())
		return r.fail(res, err)
	}
	res.Completed = completed

	reporter := NewReporter(r.client, r.log, r.metrics)
	evaluator := NewEvaluator(r.client, r.cfg, reporter, r.log, r.metrics)
	verdict, err := evaluator.Evaluate(ctx, completed)
	if err != nil {
		r.log.Error(err.Error())
		return r.fail(res, err)
	}

	res.Verdict = verdict
	res.Passed = verdict.Passed
	return res
}

func (r *Runner) fail(res *Result, err error) *Result {
	res.Err = err
	res.Passed = r.resolveInfraError(err)
	return res
}

// resolveInfraError applies the fail-on-error policy and returns the
// resulting verdict.
func (r *Runner) resolveInfraError(err error) bool {
	failed := r.cfg.FailOnError()
	r.metrics.infraError(failed)
	if failed {
		r.log.Error("Failing build per configured setting (fail on test error).", zap.Error(err))
		return false
	}
	r.log.Warn("Allowing build to continue per configured setting (don't fail on test error).", zap.Error(err))
	return true
}

// TestConnection verifies the configured credentials and test IDs.
func (r *Runner) TestConnection(ctx context.Context) error {
	return TestConnection(ctx, r.client, r.cfg.TestIDs())
}

// TestConnection checks that the service is reachable with valid
// credentials and that every test in testIDs exists. All missing tests are
// reported together in a *MissingTestsError.
func TestConnection(ctx context.Context, client Client, testIDs []int) error {
	if err := client.CheckConnection(ctx); err != nil {
		return fmt.Errorf("checking connection: %w", err)
	}

	var missing []int
	for _, id := range testIDs {
		if err := client.CheckTest(ctx, id); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return &MissingTestsError{TestIDs: missing}
	}
	return nil
}

func failedIDs(err error) []int {
	var subErr *SubmissionError
	if errors.As(err, &subErr) {
		return subErr.FailedTestIDs()
	}
	return nil
}

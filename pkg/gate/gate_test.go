package gate

import (
	"context"
	"errors"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.InfoLevel)
	return zap.New(core), logs
}

func TestRunner_NoWaitSkipsPolling(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		message string
	}{
		{
			name:    "results disabled",
			opts:    Options{TestIDs: []int{1, 2}, ScoreFloor: intPtr(80), Build: jenkinsBuild},
			message: "Fail based on results disabled, continuing build without waiting for snapshots to complete.",
		},
		{
			name:    "no criteria",
			opts:    Options{TestIDs: []int{1, 2}, FailOnResults: true, Build: jenkinsBuild},
			message: "No metrics were configured for build failure, continuing build without waiting for snapshots to complete.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newFakeClient()
			logger, logs := newObservedLogger()

			res := NewRunner(client, mustConfig(t, tt.opts), WithLogger(logger)).Run(context.Background())
			assert.True(t, res.Passed)
			assert.False(t, res.Waited)
			assert.NoError(t, res.Err)
			assert.Empty(t, client.fetchCalls)
			assert.Empty(t, client.jobTagCalls)
			assert.Equal(t, 1, logs.FilterMessage(tt.message).Len())

			// Snapshots are tagged with the build label at creation.
			require.Len(t, client.submitCalls, 2)
			for _, call := range client.submitCalls {
				assert.Equal(t, "Jenkins web #42", call.tagName)
			}
		})
	}
}

func TestRunner_FullRunPasses(t *testing.T) {
	client := newFakeClient()
	client.script(1, 501, running(), complete(90, 0))
	client.script(2, 502, complete(85, 1))
	clock := newFakeClock()

	cfg := mustConfig(t, Options{
		TestIDs:            []int{1, 2},
		ScoreFloor:         intPtr(80),
		MaxCriticalDefects: intPtr(1),
		FailOnResults:      true,
		FailOnError:        true,
		PollTimeout:        DefaultPollTimeout,
		Build:              jenkinsBuild,
	})

	res := NewRunner(client, cfg, WithPollerOptions(clock.option())).Run(context.Background())
	require.NoError(t, res.Err)
	assert.True(t, res.Passed)
	assert.True(t, res.Waited)
	assert.Len(t, res.Completed, 2)
	require.NotNil(t, res.Verdict)
	assert.True(t, res.Verdict.Passed)

	// The start tag is left to evaluation when results are awaited.
	for _, call := range client.submitCalls {
		assert.Empty(t, call.tagName)
	}

	// Each test definition is tagged with the low-priority test label.
	for _, id := range []int{1, 2} {
		require.Len(t, client.testTagCalls[id], 1)
		assert.Equal(t, []Tag{{Name: "Jenkins web", Priority: PriorityLow}}, client.testTagCalls[id][0])
	}

	assert.Equal(t, []Tag{{Name: "Jenkins web #42 build passed", Priority: PriorityLow}}, client.jobTagCalls[jobKey{1, 501}][0])
}

func TestRunner_ThresholdFailureIsNotAnError(t *testing.T) {
	client := newFakeClient()
	client.script(1, 501, complete(40, 0))
	clock := newFakeClock()

	cfg := mustConfig(t, Options{
		TestIDs:       []int{1},
		ScoreFloor:    intPtr(80),
		FailOnResults: true,
		FailOnError:   false,
		PollTimeout:   DefaultPollTimeout,
	})

	res := NewRunner(client, cfg, WithPollerOptions(clock.option())).Run(context.Background())
	assert.NoError(t, res.Err)
	assert.False(t, res.Passed)
	require.NotNil(t, res.Verdict)
	assert.Len(t, res.Verdict.Failed(), 1)
}

func TestRunner_InfrastructureErrorsFollowPolicy(t *testing.T) {
	scenarios := []struct {
		name    string
		setup   func(c *fakeClient, clock *fakeClock)
		timeout time.Duration
		check   func(t *testing.T, err error)
	}{
		{
			name: "submission failure",
			setup: func(c *fakeClient, _ *fakeClock) {
				c.submitErr[2] = errors.New("quota exceeded")
			},
			check: func(t *testing.T, err error) {
				var subErr *SubmissionError
				require.True(t, errors.As(err, &subErr))
				assert.Equal(t, []int{2}, subErr.FailedTestIDs())
				assert.Equal(t, "failed to launch 1 of 2 performance test(s)", subErr.Error())
			},
		},
		{
			name: "snapshot error state",
			setup: func(c *fakeClient, _ *fakeClock) {
				c.script(1, 501, Snapshot{State: JobStateError})
			},
			check: func(t *testing.T, err error) {
				var abortErr *PollAbortError
				require.True(t, errors.As(err, &abortErr))
			},
		},
		{
			name:    "timeout",
			setup:   func(*fakeClient, *fakeClock) {},
			timeout: 30 * time.Second,
			check: func(t *testing.T, err error) {
				var timeoutErr *PollTimeoutError
				require.True(t, errors.As(err, &timeoutErr))
			},
		},
		{
			name: "cancellation",
			setup: func(_ *fakeClient, clock *fakeClock) {
				clock.cancelAfter = 1
			},
			check: func(t *testing.T, err error) {
				var cancelErr *CancellationError
				require.True(t, errors.As(err, &cancelErr))
			},
		},
		{
			name: "watched defect lookup",
			setup: func(c *fakeClient, _ *fakeClock) {
				c.script(1, 501, complete(90, 0))
				c.script(2, 502, complete(90, 0))
				c.watchedErr = errors.New("bad gateway")
			},
			check: func(t *testing.T, err error) {
				var evalErr *EvaluationError
				require.True(t, errors.As(err, &evalErr))
			},
		},
	}

	for _, sc := range scenarios {
		for _, failOnError := range []bool{true, false} {
			name := sc.name + "/continue"
			if failOnError {
				name = sc.name + "/fail"
			}
			t.Run(name, func(t *testing.T) {
				client := newFakeClient()
				clock := newFakeClock()
				sc.setup(client, clock)

				timeout := sc.timeout
				if timeout == 0 {
					timeout = DefaultPollTimeout
				}
				cfg := mustConfig(t, Options{
					TestIDs:          []int{1, 2},
					WatchedDefectIDs: []int{5},
					FailOnResults:    true,
					FailOnError:      failOnError,
					PollTimeout:      timeout,
				})
				metrics := NewMetrics()

				res := NewRunner(client, cfg, WithMetrics(metrics), WithPollerOptions(clock.option())).Run(context.Background())
				require.Error(t, res.Err)
				assert.True(t, IsInfrastructureError(res.Err))
				assert.Equal(t, !failOnError, res.Passed)
				assert.Nil(t, res.Verdict)
				sc.check(t, res.Err)

				decision := "continue"
				if failOnError {
					decision = "fail"
				}
				assert.Equal(t, 1.0, counterValue(t, metrics, "perfgate_infrastructure_errors_total", decision))
			})
		}
	}
}

func TestRunner_SubmissionContinuesAfterFailure(t *testing.T) {
	client := newFakeClient()
	client.submitErr[1] = errors.New("boom")
	client.testTagErr = errors.New("tag failure is ignored")

	cfg := mustConfig(t, Options{TestIDs: []int{1, 2, 3}, FailOnError: true})
	res := NewRunner(client, cfg).Run(context.Background())

	assert.False(t, res.Passed)
	require.NotNil(t, res.Submission)
	assert.Len(t, client.submitCalls, 3)
	assert.Len(t, res.Submission.Jobs, 2)
	require.Len(t, res.Submission.Failures, 1)
	assert.Equal(t, 1, res.Submission.Failures[0].TestID)
	assert.Len(t, client.testTagCalls, 3)
}

func TestRunner_RunGate(t *testing.T) {
	client := newFakeClient()
	client.script(1, 501, complete(70, 0))
	clock := newFakeClock()

	cfg := mustConfig(t, Options{TestIDs: []int{1}, ScoreFloor: intPtr(80), FailOnResults: true, PollTimeout: time.Minute})
	assert.False(t, NewRunner(client, cfg, WithPollerOptions(clock.option())).RunGate(context.Background()))
}

func TestRunner_MetricsRecorded(t *testing.T) {
	client := newFakeClient()
	client.script(1, 501, running(), complete(90, 0))
	client.script(2, 502, complete(40, 0))
	clock := newFakeClock()
	metrics := NewMetrics()

	cfg := mustConfig(t, Options{TestIDs: []int{1, 2}, ScoreFloor: intPtr(80), FailOnResults: true, PollTimeout: time.Minute})
	res := NewRunner(client, cfg, WithMetrics(metrics), WithPollerOptions(clock.option())).Run(context.Background())
	require.NoError(t, res.Err)
	assert.False(t, res.Passed)

	assert.Equal(t, 2.0, counterValue(t, metrics, "perfgate_snapshots_submitted_total", ""))
	assert.Equal(t, 3.0, counterValue(t, metrics, "perfgate_snapshot_polls_total", ""))
	assert.Equal(t, 1.0, counterValue(t, metrics, "perfgate_snapshot_verdicts_total", "passed"))
	assert.Equal(t, 1.0, counterValue(t, metrics, "perfgate_snapshot_verdicts_total", "failed"))
}

func TestTestConnection(t *testing.T) {
	t.Run("all present", func(t *testing.T) {
		client := newFakeClient()
		require.NoError(t, TestConnection(context.Background(), client, []int{1, 2}))
	})

	t.Run("bad credentials", func(t *testing.T) {
		client := newFakeClient()
		client.connErr = errors.New("unauthorized")
		err := TestConnection(context.Background(), client, []int{1})
		assert.ErrorIs(t, err, client.connErr)
	})

	t.Run("one missing", func(t *testing.T) {
		client := newFakeClient()
		client.missing[5] = true
		err := TestConnection(context.Background(), client, []int{1, 5})
		assert.EqualError(t, err, "Test ID 5 does not exist.")
	})

	t.Run("several missing", func(t *testing.T) {
		client := newFakeClient()
		client.missing[5] = true
		client.missing[7] = true
		cfg := mustConfig(t, Options{TestIDs: []int{5, 6, 7}})
		err := NewRunner(client, cfg).TestConnection(context.Background())

		var missingErr *MissingTestsError
		require.True(t, errors.As(err, &missingErr))
		assert.Equal(t, []int{5, 7}, missingErr.TestIDs)
		assert.EqualError(t, err, "The following Test IDs do not exist: 5,7")
	})
}

func counterValue(t *testing.T, m *Metrics, name, label string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if label == "" || hasLabelValue(metric, label) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func hasLabelValue(metric *dto.Metric, value string) bool {
	for _, lp := range metric.GetLabel() {
		if lp.GetValue() == value {
			return true
		}
	}
	return false
}

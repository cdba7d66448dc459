package gate

import (
	"errors"
	"fmt"
	"time"
)

// DefaultPollTimeout is how long a run waits for snapshots by default.
const DefaultPollTimeout = 300 * time.Second

// BudgetDefectIDs are the defect IDs raised when a snapshot breaks one of
// its performance budgets (page weight, request count, load time, ...).
//
// They are added to the watched defect set when IncludeBudgetDefects is set.
var BudgetDefectIDs = []int{1001, 1002, 1003, 1004, 1005, 1006}

// ErrInvalidConfig is wrapped by every ThresholdConfig validation failure.
var ErrInvalidConfig = errors.New("invalid gate configuration")

// ConfigError describes a single invalid configuration field.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "gate config: " + e.Field + ": " + e.Message
}

// Unwrap lets callers match ErrInvalidConfig.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// Options are the raw inputs for NewThresholdConfig.
type Options struct {
	// TestIDs lists the tests to run. At least one is required.
	TestIDs []int

	// ScoreFloor fails a snapshot scoring below it (1-100). Optional.
	ScoreFloor *int

	// MaxCriticalDefects fails a snapshot with more critical defects. Optional.
	MaxCriticalDefects *int

	// WatchedDefectIDs fails a snapshot on which any of them is found.
	WatchedDefectIDs []int

	// IncludeBudgetDefects unions BudgetDefectIDs into WatchedDefectIDs.
	IncludeBudgetDefects bool

	// PollTimeout bounds the wait for snapshot completion. Must be >= 0.
	PollTimeout time.Duration

	// FailOnError fails the run on infrastructure errors (submission,
	// polling, timeout, cancellation). When false those errors pass the run.
	FailOnError bool

	// FailOnResults enables threshold evaluation. When false snapshots are
	// started and the run passes without waiting.
	FailOnResults bool

	Build BuildIdentity
}

// ThresholdConfig is the validated, immutable configuration of a gate run.
type ThresholdConfig struct {
	testIDs            []int
	scoreFloor         *int
	maxCriticalDefects *int
	watchedDefectIDs   []int
	pollTimeout        time.Duration
	failOnError        bool
	failOnResults      bool
	build              BuildIdentity
}

// NewThresholdConfig validates opts and returns an immutable configuration.
//
// Test and defect IDs are de-duplicated keeping first-seen order.
func NewThresholdConfig(opts Options) (*ThresholdConfig, error) {
	testIDs := dedupe(opts.TestIDs)
	if len(testIDs) == 0 {
		return nil, &ConfigError{Field: "TestIDs", Message: "at least one test ID is required"}
	}
	for _, id := range testIDs {
		if id < 0 {
			return nil, &ConfigError{Field: "TestIDs", Message: fmt.Sprintf("test ID %d must be 0 or larger", id)}
		}
	}

	cfg := &ThresholdConfig{
		testIDs:       testIDs,
		pollTimeout:   opts.PollTimeout,
		failOnError:   opts.FailOnError,
		failOnResults: opts.FailOnResults,
		build:         opts.Build,
	}

	if opts.ScoreFloor != nil {
		v := *opts.ScoreFloor
		if v < 1 || v > 100 {
			return nil, &ConfigError{Field: "ScoreFloor", Message: "value must be between 1 and 100"}
		}
		cfg.scoreFloor = &v
	}

	if opts.MaxCriticalDefects != nil {
		v := *opts.MaxCriticalDefects
		if v < 0 {
			return nil, &ConfigError{Field: "MaxCriticalDefects", Message: "value must be 0 or larger"}
		}
		cfg.maxCriticalDefects = &v
	}

	watched := append([]int(nil), opts.WatchedDefectIDs...)
	if opts.IncludeBudgetDefects {
		watched = append(watched, BudgetDefectIDs...)
	}
	cfg.watchedDefectIDs = dedupe(watched)
	for _, id := range cfg.watchedDefectIDs {
		if id < 0 {
			return nil, &ConfigError{Field: "WatchedDefectIDs", Message: fmt.Sprintf("defect ID %d must be 0 or larger", id)}
		}
	}

	if opts.PollTimeout < 0 {
		return nil, &ConfigError{Field: "PollTimeout", Message: "timeout must be 0 or larger"}
	}

	return cfg, nil
}

// TestIDs returns a copy of the configured test IDs.
func (c *ThresholdConfig) TestIDs() []int {
	return append([]int(nil), c.testIDs...)
}

// ScoreFloor returns the minimum passing score, if configured.
func (c *ThresholdConfig) ScoreFloor() (int, bool) {
	if c.scoreFloor == nil {
		return 0, false
	}
	return *c.scoreFloor, true
}

// MaxCriticalDefects returns the critical defect cap, if configured.
func (c *ThresholdConfig) MaxCriticalDefects() (int, bool) {
	if c.maxCriticalDefects == nil {
		return 0, false
	}
	return *c.maxCriticalDefects, true
}

// WatchedDefectIDs returns a copy of the watched defect IDs.
func (c *ThresholdConfig) WatchedDefectIDs() []int {
	return append([]int(nil), c.watchedDefectIDs...)
}

func (c *ThresholdConfig) PollTimeout() time.Duration { return c.pollTimeout }
func (c *ThresholdConfig) FailOnError() bool          { return c.failOnError }
func (c *ThresholdConfig) FailOnResults() bool        { return c.failOnResults }
func (c *ThresholdConfig) Build() BuildIdentity       { return c.build }

// HasCriteria reports whether at least one threshold criterion is set.
func (c *ThresholdConfig) HasCriteria() bool {
	return c.scoreFloor != nil || c.maxCriticalDefects != nil || len(c.watchedDefectIDs) > 0
}

// WaitForResults reports whether the run polls and evaluates snapshots.
// When false, no polling happens regardless of other settings.
func (c *ThresholdConfig) WaitForResults() bool {
	return c.failOnResults && c.HasCriteria()
}

func dedupe(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

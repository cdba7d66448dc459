package gateconfig

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/3leaps/perfgate/pkg/gate"
)

// Settings is the resolved configuration of one gate run, after manifest
// defaults and command-line overrides.
type Settings struct {
	TestIDs              []int `validate:"required,min=1,dive,gte=0"`
	ScoreFloor           *int  `validate:"omitempty,min=1,max=100"`
	MaxCriticalDefects   *int  `validate:"omitempty,gte=0"`
	WatchedDefectIDs     []int `validate:"omitempty,dive,gte=0"`
	IncludeBudgetDefects bool

	PollTimeout   time.Duration `validate:"gte=0s"`
	FailOnError   bool
	FailOnResults bool

	BuildSystem  string `validate:"omitempty,max=40"`
	BuildProject string
	BuildNumber  int `validate:"gte=0"`

	Report          string
	Records         string
	MetricsTextfile string
}

// Overrides holds raw command-line values. Empty strings and nil pointers
// leave the manifest value untouched.
type Overrides struct {
	TestIDs            string
	Score              string
	MaxCriticalDefects string
	DefectIDs          string
	BudgetDefects      *bool
	TimeoutSeconds     *int
	FailOnError        *bool
	FailOnResults      *bool
	BuildSystem        string
	BuildProject       string
	BuildNumber        *int
	Report             string
	Records            string
	MetricsTextfile    string
}

// DefaultSettings returns settings with every optional field at its default
// and no tests.
func DefaultSettings() *Settings {
	return &Settings{
		PollTimeout:   DefaultTimeoutSeconds * time.Second,
		FailOnError:   DefaultFailOnError,
		FailOnResults: DefaultFailOnResults,
	}
}

// FromManifest converts a loaded manifest to settings. m must have had
// ApplyDefaults called, which Load does.
func FromManifest(m *Manifest) *Settings {
	s := DefaultSettings()
	s.TestIDs = append([]int(nil), m.Tests...)
	s.ScoreFloor = m.Thresholds.PerformanceScore
	s.MaxCriticalDefects = m.Thresholds.MaxCriticalDefects
	s.WatchedDefectIDs = append([]int(nil), m.Thresholds.DefectIDs...)
	s.IncludeBudgetDefects = m.Thresholds.IncludeBudgetDefects
	if m.Thresholds.FailOnResults != nil {
		s.FailOnResults = *m.Thresholds.FailOnResults
	}
	if m.Polling.TimeoutSeconds != nil {
		s.PollTimeout = time.Duration(*m.Polling.TimeoutSeconds) * time.Second
	}
	if m.Polling.FailOnError != nil {
		s.FailOnError = *m.Polling.FailOnError
	}
	s.BuildSystem = m.Build.System
	s.BuildProject = m.Build.Project
	s.BuildNumber = m.Build.Number
	s.Report = m.Output.Report
	s.Records = m.Output.Records
	s.MetricsTextfile = m.Output.MetricsTextfile
	return s
}

// Apply merges command-line overrides into s. Text fields go through
// ParseIDList, ParseScore and ParseOptionalNonNegative; the first bad field
// is reported as a *FieldError.
func (s *Settings) Apply(o Overrides) error {
	if strings.TrimSpace(o.TestIDs) != "" {
		ids, err := ParseIDList(o.TestIDs, true)
		if err != nil {
			return &FieldError{Field: "test-ids", Err: err}
		}
		s.TestIDs = ids
	}
	if strings.TrimSpace(o.Score) != "" {
		v, err := ParseScore(o.Score)
		if err != nil {
			return &FieldError{Field: "score", Err: err}
		}
		s.ScoreFloor = v
	}
	if strings.TrimSpace(o.MaxCriticalDefects) != "" {
		v, err := ParseOptionalNonNegative(o.MaxCriticalDefects)
		if err != nil {
			return &FieldError{Field: "critical", Err: err}
		}
		s.MaxCriticalDefects = v
	}
	if strings.TrimSpace(o.DefectIDs) != "" {
		ids, err := ParseIDList(o.DefectIDs, false)
		if err != nil {
			return &FieldError{Field: "defect-ids", Err: err}
		}
		s.WatchedDefectIDs = ids
	}
	if o.BudgetDefects != nil {
		s.IncludeBudgetDefects = *o.BudgetDefects
	}
	if o.TimeoutSeconds != nil {
		s.PollTimeout = time.Duration(*o.TimeoutSeconds) * time.Second
	}
	if o.FailOnError != nil {
		s.FailOnError = *o.FailOnError
	}
	if o.FailOnResults != nil {
		s.FailOnResults = *o.FailOnResults
	}
	if o.BuildSystem != "" {
		s.BuildSystem = o.BuildSystem
	}
	if o.BuildProject != "" {
		s.BuildProject = o.BuildProject
	}
	if o.BuildNumber != nil {
		s.BuildNumber = *o.BuildNumber
	}
	if o.Report != "" {
		s.Report = o.Report
	}
	if o.Records != "" {
		s.Records = o.Records
	}
	if o.MetricsTextfile != "" {
		s.MetricsTextfile = o.MetricsTextfile
	}
	return nil
}

// FieldError reports an invalid override.
type FieldError struct {
	Field string
	Err   error
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

// Unwrap returns the parse error.
func (e *FieldError) Unwrap() error {
	return e.Err
}

var settingsValidator = validator.New()

// Validate checks field ranges. Errors name each offending field.
func (s *Settings) Validate() error {
	err := settingsValidator.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := make(ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, ValidationError{Path: stripPrefix(fe.Namespace()), Message: describe(fe)})
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required but was not found"
	case "min":
		if fe.Kind().String() == "slice" {
			return "must have at least " + fe.Param() + " value(s)"
		}
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gte":
		return "must be 0 or larger"
	default:
		return fmt.Sprintf("has invalid value %v: %s", fe.Value(), fe.Tag())
	}
}

func stripPrefix(s string) string {
	if idx := strings.Index(s, "."); idx != -1 {
		return s[idx+1:]
	}
	return s
}

// ThresholdConfig validates s and builds the gate configuration.
func (s *Settings) ThresholdConfig() (*gate.ThresholdConfig, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return gate.NewThresholdConfig(gate.Options{
		TestIDs:              s.TestIDs,
		ScoreFloor:           s.ScoreFloor,
		MaxCriticalDefects:   s.MaxCriticalDefects,
		WatchedDefectIDs:     s.WatchedDefectIDs,
		IncludeBudgetDefects: s.IncludeBudgetDefects,
		PollTimeout:          s.PollTimeout,
		FailOnError:          s.FailOnError,
		FailOnResults:        s.FailOnResults,
		Build: gate.BuildIdentity{
			System:  s.BuildSystem,
			Project: s.BuildProject,
			Number:  s.BuildNumber,
		},
	})
}

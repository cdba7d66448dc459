// Package gateconfig provides loading and validation of perfgate gate manifests.
//
// A gate manifest is a YAML or JSON file naming the performance tests a
// build runs and the thresholds their results must meet.
//
// Manifests are validated against an embedded JSON Schema before use. The
// schema enforces strict typing and disallows unknown properties.
//
// Example manifest (YAML):
//
//	version: "1.0"
//	tests: [101, 102]
//	build:
//	  system: Jenkins
//	  project: web
//	  number: 42
//	thresholds:
//	  performance_score: 80
//	  max_critical_defects: 2
//	  defect_ids: [1001, 1002]
//	polling:
//	  timeout_seconds: 300
//	  fail_on_error: true
//	output:
//	  report: s3://ci-artifacts/perfgate/report.json
package gateconfig

// Manifest represents a validated gate manifest.
type Manifest struct {
	// Schema is an optional JSON Schema reference for editor support.
	Schema string `json:"$schema,omitempty" yaml:"$schema,omitempty"`

	// Version is the manifest schema version. Must be "1.0".
	Version string `json:"version" yaml:"version"`

	// Tests lists the performance test IDs to run. At least one is required.
	Tests []int `json:"tests" yaml:"tests"`

	// Build identifies the CI build for tagging (optional).
	Build BuildConfig `json:"build,omitempty" yaml:"build,omitempty"`

	// Thresholds configures pass/fail criteria (optional).
	Thresholds ThresholdsConfig `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`

	// Polling configures waiting for results (optional).
	Polling PollingConfig `json:"polling,omitempty" yaml:"polling,omitempty"`

	// Output configures run artifacts (optional).
	Output OutputConfig `json:"output,omitempty" yaml:"output,omitempty"`
}

// BuildConfig identifies the CI build a gate run belongs to.
type BuildConfig struct {
	// System names the CI system, e.g. "Jenkins". Defaults to "CI".
	System string `json:"system,omitempty" yaml:"system,omitempty"`

	// Project is the CI project or job name.
	Project string `json:"project,omitempty" yaml:"project,omitempty"`

	// Number is the build number.
	Number int `json:"number,omitempty" yaml:"number,omitempty"`
}

// ThresholdsConfig configures the criteria each completed snapshot must meet.
type ThresholdsConfig struct {
	// FailOnResults enables evaluation. Nil means DefaultFailOnResults.
	FailOnResults *bool `json:"fail_on_results,omitempty" yaml:"fail_on_results,omitempty"`

	// PerformanceScore is the minimum passing score (1-100).
	PerformanceScore *int `json:"performance_score,omitempty" yaml:"performance_score,omitempty"`

	// MaxCriticalDefects is the largest allowed critical defect count.
	MaxCriticalDefects *int `json:"max_critical_defects,omitempty" yaml:"max_critical_defects,omitempty"`

	// DefectIDs fail a snapshot when any of them is found.
	DefectIDs []int `json:"defect_ids,omitempty" yaml:"defect_ids,omitempty"`

	// IncludeBudgetDefects adds the performance budget defects to DefectIDs.
	IncludeBudgetDefects bool `json:"include_budget_defects,omitempty" yaml:"include_budget_defects,omitempty"`
}

// PollingConfig configures waiting for snapshot completion.
type PollingConfig struct {
	// TimeoutSeconds bounds the wait. Nil means DefaultTimeoutSeconds.
	TimeoutSeconds *int `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`

	// FailOnError fails the build on infrastructure errors. Nil means
	// DefaultFailOnError.
	FailOnError *bool `json:"fail_on_error,omitempty" yaml:"fail_on_error,omitempty"`
}

// OutputConfig configures run artifacts.
type OutputConfig struct {
	// Report is the summary destination: a file path, file: URI or s3:// URI.
	Report string `json:"report,omitempty" yaml:"report,omitempty"`

	// Records is a path for JSONL run records. "stdout" writes to stdout.
	Records string `json:"records,omitempty" yaml:"records,omitempty"`

	// MetricsTextfile is a path for a Prometheus textfile export.
	MetricsTextfile string `json:"metrics_textfile,omitempty" yaml:"metrics_textfile,omitempty"`
}

// Default values for optional configuration fields.
const (
	// DefaultVersion is the current manifest schema version.
	DefaultVersion = "1.0"

	// DefaultTimeoutSeconds is the default polling timeout.
	DefaultTimeoutSeconds = 300

	// DefaultFailOnError is the default infrastructure error policy.
	DefaultFailOnError = true

	// DefaultFailOnResults is the default for threshold evaluation.
	DefaultFailOnResults = true
)

// ApplyDefaults fills in default values for optional fields.
func (m *Manifest) ApplyDefaults() {
	if m.Version == "" {
		m.Version = DefaultVersion
	}
	if m.Thresholds.FailOnResults == nil {
		v := DefaultFailOnResults
		m.Thresholds.FailOnResults = &v
	}
	if m.Polling.TimeoutSeconds == nil {
		v := DefaultTimeoutSeconds
		m.Polling.TimeoutSeconds = &v
	}
	if m.Polling.FailOnError == nil {
		v := DefaultFailOnError
		m.Polling.FailOnError = &v
	}
}

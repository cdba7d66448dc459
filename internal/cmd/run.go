package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/perfgate/internal/config"
	"github.com/3leaps/perfgate/internal/observability"
	"github.com/3leaps/perfgate/pkg/artifact"
	"github.com/3leaps/perfgate/pkg/gate"
	"github.com/3leaps/perfgate/pkg/gateconfig"
	"github.com/3leaps/perfgate/pkg/report"
)

// artifactTimeout bounds artifact uploads, which run even after the run
// context was cancelled.
const artifactTimeout = 60 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the performance gate",
	Long: `Start one snapshot per test, wait for them to finish, check the results
against the configured thresholds and tag them. Exits 1 when the gate fails.

Settings come from a gate manifest (--job) and/or flags; flags win.

Example:
  perfgate run --job gate.yaml
  perfgate run --test-ids 101,102 --score 80 --critical 2
  perfgate run --job gate.yaml --report s3://ci-artifacts/perfgate/42.json
  perfgate run --job gate.yaml --dry-run`,
	RunE: runGate,
}

var (
	runJobPath         string
	runTestIDs         string
	runScore           string
	runCritical        string
	runDefectIDs       string
	runBudgetDefects   bool
	runTimeout         int
	runFailOnError     bool
	runFailOnResults   bool
	runBuildSystem     string
	runBuildProject    string
	runBuildNumber     int
	runReport          string
	runRecords         string
	runMetricsTextfile string
	runDryRun          bool

	// runPollerOptions is appended to every run's poller options.
	runPollerOptions []gate.PollerOption
)

func init() {
	rootCmd.AddCommand(runCmd)

	f := runCmd.Flags()
	f.StringVarP(&runJobPath, "job", "j", "", "Path to gate manifest (YAML or JSON)")
	f.StringVar(&runTestIDs, "test-ids", "", "Comma-separated test IDs to run")
	f.StringVar(&runScore, "score", "", "Minimum performance score (1-100)")
	f.StringVar(&runCritical, "critical", "", "Maximum number of critical defects")
	f.StringVar(&runDefectIDs, "defect-ids", "", "Comma-separated defect IDs that fail the build when found")
	f.BoolVar(&runBudgetDefects, "budget-defects", false, "Also fail on performance budget defects")
	f.IntVar(&runTimeout, "timeout", gateconfig.DefaultTimeoutSeconds, "Seconds to wait for snapshots")
	f.BoolVar(&runFailOnError, "fail-on-error", gateconfig.DefaultFailOnError, "Fail the build when the service or a snapshot errors")
	f.BoolVar(&runFailOnResults, "fail-on-results", gateconfig.DefaultFailOnResults, "Fail the build on threshold violations")
	f.StringVar(&runBuildSystem, "build-system", "", "CI system name used in tags (detected when unset)")
	f.StringVar(&runBuildProject, "build-project", "", "Project name used in tags (detected when unset)")
	f.IntVar(&runBuildNumber, "build-number", 0, "Build number used in tags (detected when unset)")
	f.StringVar(&runReport, "report", "", "Write the run summary to a path, file: URI or s3:// URI")
	f.StringVar(&runRecords, "records", "", "Write JSONL run records to a path, s3:// URI or - for stdout")
	f.StringVar(&runMetricsTextfile, "metrics-textfile", "", "Write Prometheus metrics to a textfile")
	f.BoolVar(&runDryRun, "dry-run", false, "Validate settings and show the plan without running")
}

func runGate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	settings, err := resolveSettings(cmd, runJobPath)
	if err != nil {
		return err
	}
	cfg, err := settings.ThresholdConfig()
	if err != nil {
		observability.CLILogger.Error("Invalid gate settings", zap.Error(err))
		return exitError(foundry.ExitInvalidArgument, "Invalid gate settings", err)
	}

	if runDryRun {
		printPlan(cmd.OutOrStdout(), settings, cfg)
		return nil
	}

	client, err := newAPIClient()
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid API configuration", err)
	}

	runID := report.NewRunID()
	logger := observability.CLILogger.With(zap.String("run_id", runID))
	metrics := gate.NewMetrics()

	logger.Info("Starting performance gate",
		zap.String("build", cfg.Build().Label()),
		zap.Ints("test_ids", cfg.TestIDs()))

	started := time.Now()
	runner := gate.NewRunner(client, cfg,
		gate.WithLogger(logger),
		gate.WithMetrics(metrics),
		gate.WithPollerOptions(runPollerOptions...))
	res := runner.Run(ctx)
	finished := time.Now()

	artifactErr := writeArtifacts(ctx, cmd.OutOrStdout(), settings, cfg, runID, res, started, finished, metrics)
	if artifactErr != nil {
		logger.Error("Failed to write run artifacts", zap.Error(artifactErr))
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), renderSummary(cfg, res))

	if !res.Passed {
		var cancelErr *gate.CancellationError
		switch {
		case errors.As(res.Err, &cancelErr):
			return exitError(foundry.ExitSignalInt, "Performance gate cancelled", res.Err)
		case res.Err != nil:
			return exitError(exitGateFailed, "Performance gate failed", res.Err)
		default:
			return exitError(exitGateFailed, "Performance gate failed", verdictError(res.Verdict))
		}
	}
	if artifactErr != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to write run artifacts", artifactErr)
	}
	return nil
}

// resolveSettings loads the manifest (if any), applies flag overrides and
// fills the build identity from the CI environment.
func resolveSettings(cmd *cobra.Command, jobPath string) (*gateconfig.Settings, error) {
	settings := gateconfig.DefaultSettings()
	if jobPath != "" {
		m, err := gateconfig.Load(jobPath)
		if err != nil {
			observability.CLILogger.Error("Failed to load manifest",
				zap.String("path", jobPath),
				zap.Error(err))
			if errors.Is(err, gateconfig.ErrManifestNotFound) {
				return nil, exitError(foundry.ExitFileNotFound, "Manifest not found", err)
			}
			return nil, exitError(foundry.ExitInvalidArgument, "Invalid manifest", err)
		}
		observability.CLILogger.Debug("Loaded manifest",
			zap.String("path", jobPath),
			zap.Ints("tests", m.Tests))
		settings = gateconfig.FromManifest(m)
	}

	if err := settings.Apply(overridesFromFlags(cmd)); err != nil {
		return nil, exitError(foundry.ExitInvalidArgument, "Invalid flag value", err)
	}
	detectBuild(settings, nil)
	return settings, nil
}

func overridesFromFlags(cmd *cobra.Command) gateconfig.Overrides {
	flags := cmd.Flags()
	o := gateconfig.Overrides{
		TestIDs:            runTestIDs,
		Score:              runScore,
		MaxCriticalDefects: runCritical,
		DefectIDs:          runDefectIDs,
		BuildSystem:        runBuildSystem,
		BuildProject:       runBuildProject,
		Report:             runReport,
		Records:            runRecords,
		MetricsTextfile:    runMetricsTextfile,
	}
	if flags.Changed("budget-defects") {
		v := runBudgetDefects
		o.BudgetDefects = &v
	}
	if flags.Changed("timeout") {
		v := runTimeout
		o.TimeoutSeconds = &v
	}
	if flags.Changed("fail-on-error") {
		v := runFailOnError
		o.FailOnError = &v
	}
	if flags.Changed("fail-on-results") {
		v := runFailOnResults
		o.FailOnResults = &v
	}
	if flags.Changed("build-number") {
		v := runBuildNumber
		o.BuildNumber = &v
	}
	return o
}

func verdictError(v *gate.BatchVerdict) error {
	if v == nil {
		return errors.New("no verdict")
	}
	return fmt.Errorf("%d of %d snapshot(s) failed thresholds", len(v.Failed()), len(v.Outcomes))
}

// writeArtifacts emits the configured records, report and metrics. Every
// destination is attempted; failures are aggregated.
func writeArtifacts(ctx context.Context, stdout io.Writer, s *gateconfig.Settings, cfg *gate.ThresholdConfig,
	runID string, res *gate.Result, started, finished time.Time, metrics *gate.Metrics) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), artifactTimeout)
	defer cancel()

	var result *multierror.Error

	if s.Records != "" {
		var buf bytes.Buffer
		toStdout := s.Records == "-" || s.Records == "stdout"
		var target io.Writer = &buf
		if toStdout {
			target = stdout
		}

		w := report.NewJSONLWriter(target, runID, cfg.Build().Label())
		err := report.Emit(ctx, w, res, finished.Sub(started))
		_ = w.Close()
		switch {
		case err != nil:
			result = multierror.Append(result, fmt.Errorf("records: %w", err))
		case !toStdout:
			if err := putArtifact(ctx, s.Records, buf.Bytes(), "application/x-ndjson"); err != nil {
				result = multierror.Append(result, fmt.Errorf("records: %w", err))
			}
		}
	}

	if s.Report != "" {
		data, err := report.NewSummary(runID, cfg, res, started, finished).JSON()
		if err == nil {
			err = putArtifact(ctx, s.Report, data, "application/json")
		}
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("report: %w", err))
		}
	}

	if s.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(s.MetricsTextfile); err != nil {
			result = multierror.Append(result, fmt.Errorf("metrics textfile: %w", err))
		}
	}

	return result.ErrorOrNil()
}

func putArtifact(ctx context.Context, dest string, data []byte, contentType string) error {
	var s3cfg artifact.S3Config
	if cfg := config.GetConfig(); cfg != nil {
		s3cfg = cfg.ArtifactS3()
	}
	s3cfg.ContentType = contentType

	sink, err := artifact.Open(ctx, dest, s3cfg)
	if err != nil {
		return err
	}
	if err := sink.Put(ctx, data); err != nil {
		return err
	}
	observability.CLILogger.Debug("Wrote artifact", zap.String("dest", sink.String()), zap.Int("bytes", len(data)))
	return nil
}

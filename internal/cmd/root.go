// Package cmd implements the perfgate command line.
package cmd

import (
	"context"
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/3leaps/perfgate/internal/config"
	"github.com/3leaps/perfgate/internal/observability"
	"github.com/3leaps/perfgate/pkg/perfapi"
)

var rootCmd = &cobra.Command{
	Use:   "perfgate",
	Short: "Gate CI builds on web performance snapshots",
	Long: `perfgate starts performance snapshots for a set of tests, waits for them
to finish, checks each result against configured thresholds and tags the
results. The process exits non-zero when the build should fail.

Configuration is read from flags, PERFGATE_* environment variables and
$XDG_CONFIG_HOME/perfgate/config.yaml, in that order of precedence.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initRuntime,
}

var (
	rootVerbose  bool
	rootAPIKey   string
	rootEndpoint string
	rootLogLevel string
)

var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "none",
	BuildDate: "unknown",
}

// SetVersionInfo records build metadata injected by the linker.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&rootVerbose, "verbose", "v", false, "Enable debug logging")
	pf.StringVar(&rootAPIKey, "api-key", "", "API key (default $PERFGATE_API_KEY)")
	pf.StringVar(&rootEndpoint, "endpoint", "", "API endpoint (default $PERFGATE_ENDPOINT or the production API)")
	pf.StringVar(&rootLogLevel, "log-level", "", "Log level: debug, info, warn, error")
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context) int {
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	_, _ = fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
	return ExitCode(err)
}

// initRuntime loads configuration and installs the CLI logger before any
// subcommand runs.
func initRuntime(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	overrides := map[string]any{}
	api := map[string]any{}
	if rootAPIKey != "" {
		api["key"] = rootAPIKey
	}
	if rootEndpoint != "" {
		api["endpoint"] = rootEndpoint
	}
	if len(api) > 0 {
		overrides["api"] = api
	}
	if rootLogLevel != "" {
		overrides["logging"] = map[string]any{"level": rootLogLevel}
	}

	cfg, err := config.Load(ctx, overrides)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}

	level, err := observability.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid log level", err)
	}
	if rootVerbose {
		level = zapcore.DebugLevel
	}
	observability.SetCLILogger(observability.NewCLILogger(zapcore.AddSync(cmd.ErrOrStderr()), "perfgate", level))
	return nil
}

// newAPIClient builds the API client from the loaded configuration.
func newAPIClient() (*perfapi.Client, error) {
	cfg := config.GetConfig()
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	apiCfg := cfg.PerfAPI()
	apiCfg.UserAgent = "perfgate/" + versionInfo.Version
	apiCfg.Logger = observability.CLILogger.Named("api")
	return perfapi.New(apiCfg)
}

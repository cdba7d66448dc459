package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/perfgate/internal/config"
	"github.com/3leaps/perfgate/internal/observability"
)

var (
	doctorAPI bool
	doctorS3  bool
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long: `Run diagnostic checks on the system and suggest fixes for common issues.

Examples:
  perfgate doctor          # Environment and configuration checks
  perfgate doctor --api    # Also contact the optimization API
  perfgate doctor --s3     # Also check AWS credentials for s3:// artifacts`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorAPI, "api", false, "Check API connectivity with the configured key")
	doctorCmd.Flags().BoolVar(&doctorS3, "s3", false, "Check AWS credentials for s3:// artifact destinations")
}

func runDoctor(cmd *cobra.Command, args []string) error {
	log := observability.CLILogger
	log.Info("=== perfgate doctor ===")
	log.Info("")
	log.Info("Running diagnostic checks...")
	log.Info("")

	allChecks := true
	checkNum := 1
	totalChecks := 6
	if doctorAPI {
		totalChecks++
	}
	if doctorS3 {
		totalChecks += 2
	}

	// Go version
	goVersion := runtime.Version()
	if goVersion >= "go1.23" {
		log.Info(fmt.Sprintf("[%d/%d] Checking Go version... ✅ %s", checkNum, totalChecks, goVersion),
			zap.String("go_version", goVersion))
	} else {
		log.Warn(fmt.Sprintf("[%d/%d] Checking Go version... ⚠️  %s (recommended: go1.23+)", checkNum, totalChecks, goVersion),
			zap.String("go_version", goVersion))
		allChecks = false
	}
	checkNum++

	// Crucible and gofulmen (embedded schemas, exit codes)
	version := crucible.GetVersion()
	if version.Crucible != "" {
		log.Info(fmt.Sprintf("[%d/%d] Checking Crucible access... ✅ v%s", checkNum, totalChecks, version.Crucible),
			zap.String("crucible_version", version.Crucible))
	} else {
		log.Error(fmt.Sprintf("[%d/%d] Checking Crucible access... ❌ Cannot access Crucible", checkNum, totalChecks))
		allChecks = false
	}
	checkNum++

	if version.Gofulmen != "" {
		log.Info(fmt.Sprintf("[%d/%d] Checking Gofulmen access... ✅ v%s", checkNum, totalChecks, version.Gofulmen),
			zap.String("gofulmen_version", version.Gofulmen))
	} else {
		log.Error(fmt.Sprintf("[%d/%d] Checking Gofulmen access... ❌ Cannot access Gofulmen", checkNum, totalChecks))
		allChecks = false
	}
	checkNum++

	// Config directory
	configDir := config.UserConfigDir()
	if configDir == "" {
		log.Error(fmt.Sprintf("[%d/%d] Checking config directory... ❌ Cannot find config directory", checkNum, totalChecks))
		allChecks = false
	} else if _, err := os.Stat(configDir); err != nil {
		log.Info(fmt.Sprintf("[%d/%d] Checking config directory... ✅ %s (not created, using env and flags)", checkNum, totalChecks, configDir),
			zap.String("config_dir", configDir))
	} else {
		log.Info(fmt.Sprintf("[%d/%d] Checking config directory... ✅ %s", checkNum, totalChecks, configDir),
			zap.String("config_dir", configDir))
	}
	checkNum++

	// Environment
	log.Info(fmt.Sprintf("[%d/%d] Checking environment... ✅ %s/%s", checkNum, totalChecks, runtime.GOOS, runtime.GOARCH),
		zap.String("os", runtime.GOOS),
		zap.String("arch", runtime.GOARCH))
	checkNum++

	// API key
	cfg := config.GetConfig()
	if cfg == nil || cfg.API.Key == "" {
		log.Error(fmt.Sprintf("[%d/%d] Checking API key... ❌ No API key configured", checkNum, totalChecks))
		printAPIKeyHelp()
		allChecks = false
	} else {
		log.Info(fmt.Sprintf("[%d/%d] Checking API key... ✅ Found key", checkNum, totalChecks),
			zap.String("api_key", maskAccessKey(cfg.API.Key)),
			zap.String("endpoint", cfg.API.Endpoint))
	}
	checkNum++

	if doctorAPI {
		allChecks = runAPICheck(cmd.Context(), checkNum, totalChecks) && allChecks
		checkNum++
	}

	if doctorS3 {
		allChecks = runS3Checks(cmd.Context(), checkNum, totalChecks) && allChecks
	}

	log.Info("")
	if allChecks {
		log.Info("✅ All checks passed! Your perfgate installation is healthy.")
	} else {
		log.Warn("⚠️  Some checks failed. Review the output above for details.")
	}
	log.Info("")
	log.Info("=== End Diagnostics ===")

	if !allChecks {
		return exitError(foundry.ExitExternalServiceUnavailable, "Diagnostic checks failed", nil)
	}
	return nil
}

// runAPICheck verifies that the service accepts the configured key.
func runAPICheck(ctx context.Context, checkNum, totalChecks int) bool {
	client, err := newAPIClient()
	if err != nil {
		observability.CLILogger.Error(fmt.Sprintf("[%d/%d] Checking API connectivity... ❌ Invalid API configuration", checkNum, totalChecks),
			zap.Error(err))
		return false
	}
	if err := client.CheckConnection(ctx); err != nil {
		observability.CLILogger.Error(fmt.Sprintf("[%d/%d] Checking API connectivity... ❌ %v", checkNum, totalChecks, err),
			zap.Error(err))
		return false
	}
	observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking API connectivity... ✅ Connected", checkNum, totalChecks))
	return true
}

// runS3Checks verifies that AWS credentials resolve for s3:// artifacts.
func runS3Checks(ctx context.Context, checkNum, totalChecks int) bool {
	observability.CLILogger.Info("")
	observability.CLILogger.Info("S3 Artifact Checks:")

	var opts []func(*awsconfig.LoadOptions) error
	if cfg := config.GetConfig(); cfg != nil {
		if s3 := cfg.Artifacts.S3; s3.Profile != "" {
			opts = append(opts, awsconfig.WithSharedConfigProfile(s3.Profile))
		}
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		observability.CLILogger.Error(fmt.Sprintf("[%d/%d] Checking AWS credentials... ❌ Cannot load AWS config", checkNum, totalChecks),
			zap.Error(err))
		printAWSCredentialsHelp()
		return false
	}

	creds, err := awsCfg.Credentials.Retrieve(ctx)
	if err != nil {
		observability.CLILogger.Error(fmt.Sprintf("[%d/%d] Checking AWS credentials... ❌ Cannot retrieve credentials", checkNum, totalChecks),
			zap.Error(err))
		printAWSCredentialsHelp()
		return false
	}

	observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking AWS credentials... ✅ Found credentials", checkNum, totalChecks),
		zap.String("access_key", maskAccessKey(creds.AccessKeyID)),
		zap.String("source", creds.Source))
	checkNum++

	source := creds.Source
	if source == "" {
		source = "unknown"
	}
	observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking credential source... ✅ %s", checkNum, totalChecks, source),
		zap.String("credential_source", source))
	return true
}

// maskAccessKey masks all but the last 4 characters of a key.
func maskAccessKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}

func printAPIKeyHelp() {
	observability.CLILogger.Info("")
	observability.CLILogger.Info("To configure the API key:")
	observability.CLILogger.Info("  1. Set the PERFGATE_API_KEY environment variable, or")
	observability.CLILogger.Info("  2. Pass --api-key, or")
	observability.CLILogger.Info("  3. Add api.key to $XDG_CONFIG_HOME/perfgate/config.yaml")
	observability.CLILogger.Info("")
}

// printAWSCredentialsHelp prints help for configuring AWS credentials.
func printAWSCredentialsHelp() {
	observability.CLILogger.Info("")
	observability.CLILogger.Info("To configure AWS credentials:")
	observability.CLILogger.Info("  1. Set AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY environment variables, or")
	observability.CLILogger.Info("  2. Run 'aws configure' to set up a profile, or")
	observability.CLILogger.Info("  3. Use IAM role when running on AWS infrastructure")
	observability.CLILogger.Info("")
	observability.CLILogger.Info("For S3-compatible storage (MinIO, Wasabi, etc.), also set:")
	observability.CLILogger.Info("  - PERFGATE_S3_ENDPOINT and PERFGATE_S3_FORCE_PATH_STYLE=true")
	observability.CLILogger.Info("")
}

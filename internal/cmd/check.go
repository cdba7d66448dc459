package cmd

import (
	"errors"
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/perfgate/internal/observability"
	"github.com/3leaps/perfgate/pkg/gate"
	"github.com/3leaps/perfgate/pkg/gateconfig"
	"github.com/3leaps/perfgate/pkg/perfapi"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the API key and test IDs",
	Long: `Check that the service accepts the configured API key and that every
test ID exists. Nothing is started.

Example:
  perfgate check --test-ids 101,102
  perfgate check --job gate.yaml`,
	RunE: runCheck,
}

var (
	checkJobPath string
	checkTestIDs string
)

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVarP(&checkJobPath, "job", "j", "", "Read test IDs from a gate manifest")
	checkCmd.Flags().StringVar(&checkTestIDs, "test-ids", "", "Comma-separated test IDs to check")
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var ids []int
	if checkJobPath != "" {
		m, err := gateconfig.Load(checkJobPath)
		if err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid manifest", err)
		}
		ids = m.Tests
	}
	if checkTestIDs != "" || checkJobPath == "" {
		parsed, err := gateconfig.ParseIDList(checkTestIDs, true)
		if err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid --test-ids value", err)
		}
		ids = parsed
	}

	client, err := newAPIClient()
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid API configuration", err)
	}

	if err := gate.TestConnection(ctx, client, ids); err != nil {
		var missing *gate.MissingTestsError
		switch {
		case errors.As(err, &missing):
			observability.CLILogger.Error(err.Error(), zap.Ints("missing_test_ids", missing.TestIDs))
			return exitError(foundry.ExitInvalidArgument, "Unknown test IDs", err)
		case perfapi.IsUnauthorized(err):
			observability.CLILogger.Error("API key rejected", zap.Error(err))
			return exitError(foundry.ExitInvalidArgument, "Invalid API key", err)
		default:
			observability.CLILogger.Error("Connection check failed", zap.Error(err))
			return exitError(foundry.ExitExternalServiceUnavailable, "Cannot reach the optimization API", err)
		}
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Connection successful. %d test(s) found: %s\n",
		len(ids), gateconfig.FormatIDList(ids))
	return nil
}

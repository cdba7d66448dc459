package cmd

import (
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/3leaps/perfgate/pkg/gateconfig"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a gate manifest",
	Long: `Validate a gate manifest against the schema and the threshold rules,
then print the resulting plan.

Example:
  perfgate validate --job gate.yaml`,
	RunE: runValidate,
}

var validateJobPath string

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateJobPath, "job", "j", "", "Path to gate manifest (required)")
	_ = validateCmd.MarkFlagRequired("job")
}

func runValidate(cmd *cobra.Command, args []string) error {
	m, err := gateconfig.Load(validateJobPath)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid manifest", err)
	}

	settings := gateconfig.FromManifest(m)
	cfg, err := settings.ThresholdConfig()
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid gate settings", err)
	}

	printPlan(cmd.OutOrStdout(), settings, cfg)
	return nil
}

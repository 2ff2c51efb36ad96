package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/yolodolo42/icosale/internal/setup"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Run the setup wizard",
	Long: `Run the interactive setup wizard to configure icosale.

This command guides you through:
  - Entering the sale and USDT contract addresses
  - Choosing a local keystore or a remote wallet
  - Creating or importing a keystore account

Answers are written to the config file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !setup.IsInteractive() {
			setup.PrintEnvInstructions(cmd.ErrOrStderr())
			return fmt.Errorf("setup requires an interactive terminal")
		}

		result, err := runSetup(true)
		if err != nil {
			return err
		}
		if result == nil || result.Cancelled {
			return nil
		}

		fmt.Fprintln(cmd.OutOrStdout(), "\nSetup complete! Run 'icosale' to open the dashboard.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(force bool) (*setup.Result, error) {
	dir, err := dataDir()
	if err != nil {
		return nil, err
	}
	result, err := setup.RunWizard(viper.GetViper(), dir, force)
	if err != nil {
		return nil, fmt.Errorf("setup failed: %w", err)
	}
	return result, nil
}

// ensureSetup runs the wizard when the sale contracts are not configured.
// It reports false when the user backed out.
func ensureSetup(cmd *cobra.Command) (bool, error) {
	dir, err := dataDir()
	if err != nil {
		return false, err
	}
	if !setup.NeedsSetup(viper.GetViper(), dir) {
		return true, nil
	}

	// Check if we're in an interactive terminal
	if !setup.IsInteractive() {
		setup.PrintEnvInstructions(cmd.ErrOrStderr())
		return false, fmt.Errorf("setup required: run icosale setup or set the contract addresses")
	}

	result, err := runSetup(false)
	if err != nil {
		return false, err
	}
	return result != nil && !result.Cancelled, nil
}

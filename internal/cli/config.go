package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/eodsim/config"
)

func newConfigCmd(rc *RootConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Generate or validate configuration files",
		Long: `Manage backtest configuration files.

Examples:
  eodsim config init -o backtest.yaml
  eodsim config validate --config backtest.yaml`,
	}

	var output string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if err := cfg.SaveToFile(output); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Created default configuration: %s\n", output)
			fmt.Fprintln(out, "\nEdit the file and run with:")
			fmt.Fprintf(out, "  eodsim backtest --config %s\n", output)
			return nil
		},
	}
	initCmd.Flags().StringVarP(&output, "output", "o", "backtest.yaml", "output config file path")

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if rc.ConfigPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.LoadFromFile(rc.ConfigPath)
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Configuration valid: %s\n", rc.ConfigPath)
			fmt.Fprintf(out, "  Account: %.2f\n", cfg.Account.InitialDeposit)
			fmt.Fprintf(out, "  Strategy: %s [%s]\n", cfg.Strategy.Name, strings.Join(cfg.Strategy.Symbols, " "))
			fmt.Fprintf(out, "  Data: %s\n", cfg.Data.Dir)
			journalType := cfg.Journal.Type
			if journalType == "" {
				journalType = "none"
			}
			fmt.Fprintf(out, "  Journal: %s\n", journalType)
			return nil
		},
	}

	cmd.AddCommand(initCmd, validateCmd)
	return cmd
}

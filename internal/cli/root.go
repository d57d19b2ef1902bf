package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/eodsim/internal/logging"
)

// Version is set at build time with -ldflags "-X ...cli.Version=...".
var Version = "dev"

// RootConfig holds the persistent flags shared by every subcommand.
type RootConfig struct {
	ConfigPath string
	LogLevel   string
	LogDev     bool
}

// logger builds the zap logger; an explicit --log-level wins over the file.
func (rc *RootConfig) logger(cmd *cobra.Command, fileLevel string, fileDev bool) (*zap.Logger, error) {
	level, dev := fileLevel, fileDev
	if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
		level = rc.LogLevel
	}
	if f := cmd.Flags().Lookup("log-dev"); f != nil && f.Changed {
		dev = rc.LogDev
	}
	return logging.New(level, dev)
}

func NewRootCmd() *cobra.Command {
	rc := &RootConfig{}

	cmd := &cobra.Command{
		Use:           "eodsim",
		Short:         "End-of-day backtesting and accounting",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&rc.ConfigPath, "config", "", "Path to config file (optional)")
	cmd.PersistentFlags().StringVar(&rc.LogLevel, "log-level", "info", "Log level: debug|info|warn|error")
	cmd.PersistentFlags().BoolVar(&rc.LogDev, "log-dev", false, "Human readable development logging")

	cmd.AddCommand(
		newBacktestCmd(rc),
		newConfigCmd(rc),
		newJournalCmd(),
	)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "eodsim (%s)\n", Version)
		},
	})

	return cmd
}

// Execute runs the root command; an interrupt cancels a running backtest
// between ticks.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

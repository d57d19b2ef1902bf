package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/eodsim/journal"
)

func newJournalCmd() *cobra.Command {
	var dbPath, runID string

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Print org-mode reports from a SQLite journal",
		Long: `Query a SQLite journal written by "eodsim backtest".

Examples:
  eodsim journal --db ./eodsim.sqlite --run 01J... run
  eodsim journal --db ./eodsim.sqlite --run 01J... trades
  eodsim journal --db ./eodsim.sqlite --run 01J... trade 01J...`,
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "./eodsim.sqlite", "path to SQLite journal DB")
	cmd.PersistentFlags().StringVar(&runID, "run", "", "run id (required)")
	_ = cmd.MarkPersistentFlagRequired("run")

	open := func() (*journal.SQLite, error) {
		j, err := journal.NewSQLite(dbPath, runID)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		return j, nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run summary followed by its trades",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := open()
			if err != nil {
				return err
			}
			defer j.Close()

			run, err := j.GetRun(runID)
			if err != nil {
				return err
			}
			trades, err := j.ListTrades()
			if err != nil {
				return fmt.Errorf("query trades: %w", err)
			}
			return journal.WriteRunOrg(cmd.OutOrStdout(), run, trades)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "trades",
		Short: "All closed trades of the run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := open()
			if err != nil {
				return err
			}
			defer j.Close()

			recs, err := j.ListTrades()
			if err != nil {
				return fmt.Errorf("query trades: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradesOrg(recs))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "trade <trade_id>",
		Short: "A single trade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := open()
			if err != nil {
				return err
			}
			defer j.Close()

			rec, err := j.GetTrade(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradeOrg(rec))
			return nil
		},
	})

	return cmd
}

package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/eodsim/backtest"
	"github.com/rustyeddy/eodsim/config"
	"github.com/rustyeddy/eodsim/id"
	"github.com/rustyeddy/eodsim/journal"
	"github.com/rustyeddy/eodsim/market"
	"github.com/rustyeddy/eodsim/metrics"
	"github.com/rustyeddy/eodsim/strategies"
)

type backtestFlags struct {
	data     string
	pattern  string
	strategy string
	symbols  string
	capital  float64
	orgPath  string
}

func newBacktestCmd(rc *RootConfig) *cobra.Command {
	var f backtestFlags

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run a strategy over a directory of EOD CSV files",
		Long: `Run a registered strategy over per-symbol EOD CSV files.

Settings come from --config (or the defaults) and are overridden by flags.

Examples:
  eodsim backtest --data ./data --strategy buy-and-hold --symbols AAPL,MSFT
  eodsim backtest --config backtest.yaml --org report.org`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadBacktestConfig(cmd, rc, f)
			if err != nil {
				return err
			}
			log, err := rc.logger(cmd, cfg.Log.Level, cfg.Log.Development)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			return runBacktest(cmd, cfg, f.orgPath, log)
		},
	}

	cmd.Flags().StringVar(&f.data, "data", "", "Directory of per-symbol CSV files")
	cmd.Flags().StringVar(&f.pattern, "pattern", "", "Glob of CSV files under --data (default *.csv)")
	cmd.Flags().StringVar(&f.strategy, "strategy", "", "Strategy name: "+strings.Join(strategies.Names(), "|"))
	cmd.Flags().StringVar(&f.symbols, "symbols", "", "Comma separated symbols")
	cmd.Flags().Float64Var(&f.capital, "capital", 0, "Initial deposit")
	cmd.Flags().StringVar(&f.orgPath, "org", "", "Write an org-mode run report to this file")
	return cmd
}

func loadBacktestConfig(cmd *cobra.Command, rc *RootConfig, f backtestFlags) (*config.Config, error) {
	cfg := config.Default()
	if rc.ConfigPath != "" {
		var err error
		if cfg, err = config.LoadFromFile(rc.ConfigPath); err != nil {
			return nil, err
		}
	}

	if f.data != "" {
		cfg.Data.Dir = f.data
	}
	if f.pattern != "" {
		cfg.Data.Pattern = f.pattern
	}
	if f.strategy != "" {
		cfg.Strategy.Name = f.strategy
	}
	if f.symbols != "" {
		cfg.Strategy.Symbols = splitSymbols(f.symbols)
	}
	if cmd.Flags().Changed("capital") {
		cfg.Account.InitialDeposit = f.capital
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func runBacktest(cmd *cobra.Command, cfg *config.Config, orgPath string, log *zap.Logger) (err error) {
	data, err := market.LoadCSVDir(cfg.Data.Dir, cfg.Data.Pattern)
	if err != nil {
		return fmt.Errorf("load data: %w", err)
	}
	log.Info("data loaded",
		zap.String("dir", cfg.Data.Dir),
		zap.Strings("symbols", data.Symbols()),
		zap.Int("dates", data.Len()))

	strat, err := strategies.New(cfg.Strategy.Name, cfg.StrategyParams())
	if err != nil {
		return err
	}

	ids := id.Default()
	if cfg.Run.Seed != 0 {
		ids = id.NewSeeded(cfg.Run.Seed, data.Date(0))
	}
	runID := cfg.Run.ID
	if runID == "" {
		runID = ids.New()
	}

	j, err := openJournal(cfg.Journal, runID)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := j.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close journal: %w", cerr)
		}
	}()

	dataset := cfg.Data.Name
	if dataset == "" {
		dataset = filepath.Base(filepath.Clean(cfg.Data.Dir))
	}
	opts := []backtest.Option{
		backtest.WithInitialCapital(decimal.NewFromFloat(cfg.Account.InitialDeposit)),
		backtest.WithLogger(log),
		backtest.WithJournal(j),
		backtest.WithLiquidateAtEnd(cfg.Run.LiquidateAtEnd),
		backtest.WithRunID(runID),
		backtest.WithIDs(ids),
		backtest.WithRiskPolicy(cfg.Risk),
		backtest.WithDatasetName(dataset),
	}
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		opts = append(opts, backtest.WithMetrics(m))
	}

	sess, err := backtest.NewSession(data, strat, opts...)
	if err != nil {
		return err
	}
	res, runErr := sess.Run(cmd.Context())
	backtest.PrintResult(cmd.OutOrStdout(), res)

	if orgPath != "" {
		trades := make([]journal.TradeRecord, 0, len(sess.Trader().ClosedTrades()))
		for _, t := range sess.Trader().ClosedTrades() {
			trades = append(trades, journal.FromTrade(t))
		}
		if err := writeFile(orgPath, func(f *os.File) error {
			return journal.WriteRunOrg(f, res.Record(), trades)
		}); err != nil {
			return err
		}
	}
	if m != nil && cfg.Metrics.Path != "" {
		if err := writeFile(cfg.Metrics.Path, func(f *os.File) error { return m.WriteText(f) }); err != nil {
			return err
		}
	}
	return runErr
}

func openJournal(cfg config.JournalConfig, runID string) (journal.Journal, error) {
	switch cfg.Type {
	case "csv":
		return journal.NewCSV(cfg.Path)
	case "sqlite":
		return journal.NewSQLite(cfg.Path, runID)
	default:
		return journal.Nop{}, nil
	}
}

func writeFile(path string, fn func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func splitSymbols(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.ToUpper(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

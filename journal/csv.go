package journal

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	OrdersFile = "orders.csv"
	CashFile   = "cash.csv"
	EquityFile = "equity.csv"
	TradesFile = "trades.csv"
	RunsFile   = "runs.csv"
)

var (
	orderHeader  = []string{"order_id", "side", "symbol", "quantity", "status", "fill_price", "reason", "position_id", "submitted_at", "completed_at"}
	cashHeader   = []string{"seq", "kind", "outcome", "reason", "amount", "previous_balance", "new_balance"}
	equityHeader = []string{"time", "cash", "holdings", "portfolio_value"}
	tradeHeader  = []string{"trade_id", "legs", "open_time", "close_time", "initial_value", "exit_value", "pnl", "failed_legs"}
	runHeader    = []string{"run_id", "created", "strategy", "dataset", "start", "end", "start_value", "end_value", "net_pnl", "return_pct", "max_drawdown_pct", "trades", "wins", "losses"}
)

type csvFile struct {
	f *os.File
	w *csv.Writer
}

func createCSV(path string, header []string) (*csvFile, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	c := &csvFile{f: f, w: csv.NewWriter(f)}
	if err := c.write(header); err != nil {
		_ = f.Close()
		return nil, err
	}
	return c, nil
}

func (c *csvFile) write(row []string) error {
	if err := c.w.Write(row); err != nil {
		return err
	}
	c.w.Flush()
	return c.w.Error()
}

func (c *csvFile) close() error {
	c.w.Flush()
	return errors.Join(c.w.Error(), c.f.Close())
}

// CSVJournal writes one file per record kind into a directory.
type CSVJournal struct {
	orders, cash, equity, trades, runs *csvFile
}

func NewCSV(dir string) (*CSVJournal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("journal dir: %w", err)
	}
	j := &CSVJournal{}
	files := []struct {
		dst    **csvFile
		name   string
		header []string
	}{
		{&j.orders, OrdersFile, orderHeader},
		{&j.cash, CashFile, cashHeader},
		{&j.equity, EquityFile, equityHeader},
		{&j.trades, TradesFile, tradeHeader},
		{&j.runs, RunsFile, runHeader},
	}
	for _, spec := range files {
		c, err := createCSV(filepath.Join(dir, spec.name), spec.header)
		if err != nil {
			_ = j.Close()
			return nil, fmt.Errorf("journal %s: %w", spec.name, err)
		}
		*spec.dst = c
	}
	return j, nil
}

func (j *CSVJournal) RecordOrder(o OrderRecord) error {
	return j.orders.write([]string{
		o.OrderID,
		o.Side,
		o.Symbol,
		strconv.Itoa(o.Quantity),
		o.Status,
		f(o.FillPrice),
		o.Reason,
		o.PositionID,
		ts(o.SubmittedAt),
		ts(o.CompletedAt),
	})
}

func (j *CSVJournal) RecordCash(c CashRecord) error {
	return j.cash.write([]string{
		strconv.Itoa(c.Seq),
		c.Kind,
		c.Outcome,
		c.Reason,
		c.Amount.String(),
		c.PreviousBalance.String(),
		c.NewBalance.String(),
	})
}

func (j *CSVJournal) RecordEquity(e EquitySnapshot) error {
	return j.equity.write([]string{
		ts(e.Time),
		e.Cash.String(),
		e.Holdings.String(),
		e.PortfolioValue.String(),
	})
}

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	return j.trades.write([]string{
		t.TradeID,
		t.Legs,
		ts(t.OpenTime),
		ts(t.CloseTime),
		t.InitialValue.String(),
		t.ExitValue.String(),
		t.PnL.String(),
		strconv.Itoa(t.FailedLegs),
	})
}

func (j *CSVJournal) RecordRun(r RunRecord) error {
	return j.runs.write([]string{
		r.RunID,
		ts(r.Created),
		r.Strategy,
		r.Dataset,
		r.Start.Format(time.DateOnly),
		r.End.Format(time.DateOnly),
		r.StartValue.String(),
		r.EndValue.String(),
		r.NetPnL.String(),
		f(r.ReturnPct),
		f(r.MaxDrawdownPct),
		strconv.Itoa(r.Trades),
		strconv.Itoa(r.Wins),
		strconv.Itoa(r.Losses),
	})
}

func (j *CSVJournal) Close() error {
	var errs []error
	for _, c := range []*csvFile{j.orders, j.cash, j.equity, j.trades, j.runs} {
		if c != nil {
			errs = append(errs, c.close())
		}
	}
	return errors.Join(errs...)
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

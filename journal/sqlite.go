package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite writes every record of one run, tagged with its run id, into a
// database that can hold many runs.
type SQLite struct {
	db    *sql.DB
	runID string
}

func NewSQLite(path, runID string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{db: db, runID: runID}, nil
}

func (j *SQLite) RunID() string { return j.runID }

func (j *SQLite) RecordOrder(o OrderRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO orders
		(run_id, order_id, side, symbol, quantity, status, fill_price, reason, position_id, submitted_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.runID, o.OrderID, o.Side, o.Symbol, o.Quantity, o.Status,
		o.FillPrice, o.Reason, o.PositionID, o.SubmittedAt, o.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("record order %s: %w", o.OrderID, err)
	}
	return nil
}

func (j *SQLite) RecordCash(c CashRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO cash
		(run_id, seq, kind, outcome, reason, amount, previous_balance, new_balance)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		j.runID, c.Seq, c.Kind, c.Outcome, c.Reason, c.Amount, c.PreviousBalance, c.NewBalance,
	)
	if err != nil {
		return fmt.Errorf("record cash %d: %w", c.Seq, err)
	}
	return nil
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity
		(run_id, time, cash, holdings, portfolio_value)
		VALUES (?, ?, ?, ?, ?)`,
		j.runID, e.Time, e.Cash, e.Holdings, e.PortfolioValue,
	)
	if err != nil {
		return fmt.Errorf("record equity: %w", err)
	}
	return nil
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(run_id, trade_id, legs, open_time, close_time, initial_value, exit_value, pnl, failed_legs)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.runID, t.TradeID, t.Legs, t.OpenTime, t.CloseTime,
		t.InitialValue, t.ExitValue, t.PnL, t.FailedLegs,
	)
	if err != nil {
		return fmt.Errorf("record trade %s: %w", t.TradeID, err)
	}
	return nil
}

// RecordRun upserts the summary so a run can be written before and after
// it finishes.
func (j *SQLite) RecordRun(r RunRecord) error {
	if r.RunID == "" {
		r.RunID = j.runID
	}
	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO runs
		(run_id, created, strategy, dataset, start_date, end_date, start_value, end_value,
		 net_pnl, return_pct, max_drawdown_pct, trades, wins, losses)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Created, r.Strategy, r.Dataset, r.Start, r.End, r.StartValue, r.EndValue,
		r.NetPnL, r.ReturnPct, r.MaxDrawdownPct, r.Trades, r.Wins, r.Losses,
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", r.RunID, err)
	}
	return nil
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

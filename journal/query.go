package journal

import (
	"database/sql"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

// GetRun loads a run summary by id.
func (j *SQLite) GetRun(runID string) (RunRecord, error) {
	var r RunRecord
	err := j.db.QueryRow(`
		SELECT run_id, created, strategy, dataset, start_date, end_date, start_value, end_value,
		       net_pnl, return_pct, max_drawdown_pct, trades, wins, losses
		FROM runs
		WHERE run_id = ?`, runID).Scan(
		&r.RunID, &r.Created, &r.Strategy, &r.Dataset, &r.Start, &r.End,
		&r.StartValue, &r.EndValue, &r.NetPnL, &r.ReturnPct, &r.MaxDrawdownPct,
		&r.Trades, &r.Wins, &r.Losses,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("run %q: %w", runID, ErrNotFound)
	}
	if err != nil {
		return RunRecord{}, err
	}
	return r, nil
}

// GetTrade returns a single trade of this run.
func (j *SQLite) GetTrade(tradeID string) (TradeRecord, error) {
	var t TradeRecord
	err := j.db.QueryRow(`
		SELECT trade_id, legs, open_time, close_time, initial_value, exit_value, pnl, failed_legs
		FROM trades
		WHERE run_id = ? AND trade_id = ?`, j.runID, tradeID).Scan(
		&t.TradeID, &t.Legs, &t.OpenTime, &t.CloseTime,
		&t.InitialValue, &t.ExitValue, &t.PnL, &t.FailedLegs,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return TradeRecord{}, fmt.Errorf("trade %q: %w", tradeID, ErrNotFound)
	}
	if err != nil {
		return TradeRecord{}, err
	}
	return t, nil
}

// ListTrades returns the run's trades by close time.
func (j *SQLite) ListTrades() ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT trade_id, legs, open_time, close_time, initial_value, exit_value, pnl, failed_legs
		FROM trades
		WHERE run_id = ?
		ORDER BY close_time ASC, trade_id ASC`, j.runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var t TradeRecord
		if err := rows.Scan(
			&t.TradeID, &t.Legs, &t.OpenTime, &t.CloseTime,
			&t.InitialValue, &t.ExitValue, &t.PnL, &t.FailedLegs,
		); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListEquity returns the run's equity curve in time order.
func (j *SQLite) ListEquity() ([]EquitySnapshot, error) {
	rows, err := j.db.Query(`
		SELECT time, cash, holdings, portfolio_value
		FROM equity
		WHERE run_id = ?
		ORDER BY time ASC`, j.runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquitySnapshot
	for rows.Next() {
		var e EquitySnapshot
		if err := rows.Scan(&e.Time, &e.Cash, &e.Holdings, &e.PortfolioValue); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListOrders returns the run's orders in submission order.
func (j *SQLite) ListOrders() ([]OrderRecord, error) {
	rows, err := j.db.Query(`
		SELECT order_id, side, symbol, quantity, status, fill_price, reason, position_id, submitted_at, completed_at
		FROM orders
		WHERE run_id = ?
		ORDER BY rowid ASC`, j.runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderRecord
	for rows.Next() {
		var o OrderRecord
		if err := rows.Scan(
			&o.OrderID, &o.Side, &o.Symbol, &o.Quantity, &o.Status,
			&o.FillPrice, &o.Reason, &o.PositionID, &o.SubmittedAt, &o.CompletedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ListCash returns the run's ledger entries by sequence.
func (j *SQLite) ListCash() ([]CashRecord, error) {
	rows, err := j.db.Query(`
		SELECT seq, kind, outcome, reason, amount, previous_balance, new_balance
		FROM cash
		WHERE run_id = ?
		ORDER BY seq ASC`, j.runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CashRecord
	for rows.Next() {
		var c CashRecord
		if err := rows.Scan(&c.Seq, &c.Kind, &c.Outcome, &c.Reason, &c.Amount, &c.PreviousBalance, &c.NewBalance); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

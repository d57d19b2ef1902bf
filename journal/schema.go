package journal

const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	created DATETIME NOT NULL,
	strategy TEXT NOT NULL,
	dataset TEXT NOT NULL,
	start_date DATETIME NOT NULL,
	end_date DATETIME NOT NULL,
	start_value TEXT NOT NULL,
	end_value TEXT NOT NULL,
	net_pnl TEXT NOT NULL,
	return_pct REAL NOT NULL,
	max_drawdown_pct REAL NOT NULL,
	trades INTEGER NOT NULL,
	wins INTEGER NOT NULL,
	losses INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS orders (
	run_id TEXT NOT NULL,
	order_id TEXT NOT NULL,
	side TEXT NOT NULL,
	symbol TEXT NOT NULL,
	quantity INTEGER NOT NULL,
	status TEXT NOT NULL,
	fill_price REAL NOT NULL,
	reason TEXT NOT NULL,
	position_id TEXT NOT NULL,
	submitted_at DATETIME NOT NULL,
	completed_at DATETIME NOT NULL,
	PRIMARY KEY (run_id, order_id)
);

CREATE TABLE IF NOT EXISTS cash (
	run_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	kind TEXT NOT NULL,
	outcome TEXT NOT NULL,
	reason TEXT NOT NULL,
	amount TEXT NOT NULL,
	previous_balance TEXT NOT NULL,
	new_balance TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS equity (
	run_id TEXT NOT NULL,
	time DATETIME NOT NULL,
	cash TEXT NOT NULL,
	holdings TEXT NOT NULL,
	portfolio_value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	run_id TEXT NOT NULL,
	trade_id TEXT NOT NULL,
	legs TEXT NOT NULL,
	open_time DATETIME NOT NULL,
	close_time DATETIME NOT NULL,
	initial_value TEXT NOT NULL,
	exit_value TEXT NOT NULL,
	pnl TEXT NOT NULL,
	failed_legs INTEGER NOT NULL,
	PRIMARY KEY (run_id, trade_id)
);

CREATE INDEX IF NOT EXISTS idx_equity_run_time ON equity(run_id, time);
CREATE INDEX IF NOT EXISTS idx_trades_close ON trades(run_id, close_time);
`

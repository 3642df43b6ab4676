package journal

const Schema = `
CREATE TABLE IF NOT EXISTS position_events (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	position_id TEXT NOT NULL,
	instrument TEXT NOT NULL,
	strategy TEXT NOT NULL,
	status TEXT NOT NULL,
	event TEXT NOT NULL,
	notional REAL NOT NULL,
	entry_price REAL NOT NULL,
	entry_time DATETIME NOT NULL,
	exit_price REAL NOT NULL,
	exit_time DATETIME NOT NULL,
	exit_reason TEXT NOT NULL,
	realized_pnl TEXT NOT NULL,
	intent_id TEXT NOT NULL,
	tx_id TEXT NOT NULL,
	stuck INTEGER NOT NULL,
	recorded_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_position ON position_events(position_id);

CREATE TABLE IF NOT EXISTS trades (
	position_id TEXT PRIMARY KEY,
	instrument TEXT NOT NULL,
	strategy TEXT NOT NULL,
	notional REAL NOT NULL,
	entry_price REAL NOT NULL,
	exit_price REAL NOT NULL,
	open_time DATETIME NOT NULL,
	close_time DATETIME NOT NULL,
	realized_pnl TEXT NOT NULL,
	reason TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_close_time ON trades(close_time);
`

package journal

const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	created DATETIME NOT NULL,
	strategy TEXT NOT NULL,
	markets TEXT NOT NULL,
	base_currency TEXT NOT NULL,
	start_date DATETIME NOT NULL,
	end_date DATETIME NOT NULL,
	start_equity REAL NOT NULL,
	end_equity REAL NOT NULL,
	net_pl REAL NOT NULL,
	return_pct REAL NOT NULL,
	max_dd_pct REAL NOT NULL,
	trades INTEGER NOT NULL,
	wins INTEGER NOT NULL,
	losses INTEGER NOT NULL,
	win_rate REAL NOT NULL,
	config TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
	run_id TEXT NOT NULL,
	id TEXT NOT NULL,
	type TEXT NOT NULL,
	date DATETIME NOT NULL,
	side TEXT NOT NULL,
	amount REAL NOT NULL,
	currency TEXT NOT NULL,
	reference TEXT NOT NULL,
	PRIMARY KEY (run_id, id)
);

CREATE TABLE IF NOT EXISTS positions (
	run_id TEXT NOT NULL,
	id TEXT NOT NULL,
	market TEXT NOT NULL,
	contract TEXT NOT NULL,
	currency TEXT NOT NULL,
	direction TEXT NOT NULL,
	quantity INTEGER NOT NULL,
	forecast REAL NOT NULL,
	entry_date DATETIME NOT NULL,
	entry_price REAL NOT NULL,
	closed_date DATETIME,
	realized_pl REAL NOT NULL,
	PRIMARY KEY (run_id, id)
);

CREATE TABLE IF NOT EXISTS fills (
	run_id TEXT NOT NULL,
	order_id TEXT NOT NULL,
	position_id TEXT NOT NULL,
	market TEXT NOT NULL,
	contract TEXT NOT NULL,
	signal TEXT NOT NULL,
	type TEXT NOT NULL,
	status TEXT NOT NULL,
	date DATETIME NOT NULL,
	price REAL NOT NULL,
	quantity INTEGER NOT NULL,
	margin REAL NOT NULL,
	commission REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS margins (
	run_id TEXT NOT NULL,
	position_id TEXT NOT NULL,
	date DATETIME NOT NULL,
	margin REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS equity (
	run_id TEXT NOT NULL,
	date DATETIME NOT NULL,
	equity REAL NOT NULL,
	available_funds REAL NOT NULL,
	margin_loans REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS studies (
	run_id TEXT NOT NULL,
	market TEXT NOT NULL,
	study TEXT NOT NULL,
	date DATETIME NOT NULL,
	value REAL NOT NULL,
	value2 REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(run_id, date);
CREATE INDEX IF NOT EXISTS idx_equity_date ON equity(run_id, date);
CREATE INDEX IF NOT EXISTS idx_studies_market ON studies(run_id, market, study, date);
`

package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// DB wraps the database connection
type DB struct {
	conn *sql.DB
	path string
}

// New creates a new database connection
func New(dbPath string) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database connection
	// Use WAL mode for better concurrency
	conn, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Configure connection pool
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)

	return &DB{
		conn: conn,
		path: dbPath,
	}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying sql.DB connection
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// schema holds the relational tables the core depends on, expressed as
// idempotent DDL so Migrate can run on every process start.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	email TEXT NOT NULL UNIQUE,
	broker_api_key TEXT,
	broker_api_secret TEXT,
	total_capital REAL NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS agents (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL REFERENCES users(id),
	name TEXT NOT NULL,
	persona TEXT,
	status TEXT NOT NULL DEFAULT 'active',
	strategy_type TEXT NOT NULL,
	strategy_params TEXT NOT NULL DEFAULT '{}',
	risk_params TEXT NOT NULL DEFAULT '{}',
	allocated_capital REAL NOT NULL DEFAULT 0,
	cash_balance REAL NOT NULL DEFAULT 0,
	horizon_days INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	end_date DATETIME
);
CREATE INDEX IF NOT EXISTS idx_agents_user ON agents(user_id);

CREATE TABLE IF NOT EXISTS positions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	agent_id INTEGER NOT NULL REFERENCES agents(id),
	ticker TEXT NOT NULL,
	side TEXT NOT NULL DEFAULT 'long',
	shares REAL NOT NULL,
	entry_price REAL NOT NULL,
	entry_date DATETIME NOT NULL,
	entry_rationale TEXT,
	current_price REAL NOT NULL DEFAULT 0,
	stop_loss_price REAL,
	target_price REAL,
	max_holding_days INTEGER,
	status TEXT NOT NULL DEFAULT 'open',
	exit_price REAL,
	exit_date DATETIME,
	exit_rationale TEXT,
	realized_pl REAL,
	realized_pl_pct REAL,
	entry_order_id TEXT,
	exit_order_id TEXT,
	bracket_stop_order_id TEXT
);
CREATE INDEX IF NOT EXISTS idx_positions_agent ON positions(agent_id);
CREATE INDEX IF NOT EXISTS idx_positions_agent_status ON positions(agent_id, status);

CREATE TABLE IF NOT EXISTS agent_activity (
	id TEXT PRIMARY KEY,
	agent_id INTEGER NOT NULL REFERENCES agents(id),
	type TEXT NOT NULL,
	details TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_activity_agent_type ON agent_activity(agent_id, type, created_at);

CREATE TABLE IF NOT EXISTS stocks (
	symbol TEXT PRIMARY KEY,
	sector TEXT,
	price REAL NOT NULL DEFAULT 0,
	pe REAL, pb REAL, roe REAL, profit_margin REAL, debt_to_equity REAL,
	dividend_yield REAL, dividend_growth_5yr REAL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS price_history (
	symbol TEXT NOT NULL REFERENCES stocks(symbol),
	trade_date DATE NOT NULL,
	close REAL NOT NULL,
	PRIMARY KEY (symbol, trade_date)
);
CREATE INDEX IF NOT EXISTS idx_price_history_symbol_date ON price_history(symbol, trade_date);

CREATE TABLE IF NOT EXISTS sentiment_history (
	symbol TEXT NOT NULL REFERENCES stocks(symbol),
	trade_date DATE NOT NULL,
	news_score REAL,
	social_score REAL,
	combined_score REAL,
	velocity REAL,
	PRIMARY KEY (symbol, trade_date)
);
CREATE INDEX IF NOT EXISTS idx_sentiment_history_symbol_date ON sentiment_history(symbol, trade_date);

CREATE TABLE IF NOT EXISTS macro_indicators (
	indicator_name TEXT PRIMARY KEY,
	value REAL NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS insider_signals (
	symbol TEXT PRIMARY KEY REFERENCES stocks(symbol),
	buy_count INTEGER NOT NULL DEFAULT 0,
	sell_count INTEGER NOT NULL DEFAULT 0,
	net_sentiment REAL NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS short_interest (
	symbol TEXT PRIMARY KEY REFERENCES stocks(symbol),
	short_pct_float REAL,
	days_to_cover REAL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS macro_risk_overlay_state (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	scale_factor REAL NOT NULL,
	composite REAL NOT NULL,
	regime TEXT NOT NULL,
	signal_values TEXT NOT NULL DEFAULT '{}',
	warnings TEXT NOT NULL DEFAULT '[]',
	computed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_macro_overlay_computed_at ON macro_risk_overlay_state(computed_at);
`

// Migrate runs database migrations, creating every table the core depends on
// if it does not already exist. Safe to call on every process start.
func (db *DB) Migrate() error {
	if _, err := db.conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Begin starts a new transaction
func (db *DB) Begin() (*sql.Tx, error) {
	return db.conn.Begin()
}

// Exec executes a query without returning rows
func (db *DB) Exec(query string, args ...interface{}) (sql.Result, error) {
	return db.conn.Exec(query, args...)
}

// Query executes a query that returns rows
func (db *DB) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return db.conn.Query(query, args...)
}

// QueryRow executes a query that returns at most one row
func (db *DB) QueryRow(query string, args ...interface{}) *sql.Row {
	return db.conn.QueryRow(query, args...)
}

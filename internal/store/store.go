// Package store provides durable persistence for the execution cache, daily
// OHLCV closes, and the portfolio equity history the Equity Curve Builder
// replays. Schema evolves through numbered, idempotent migrations tracked in
// schema_version, the way eve-flipper's internal/db does it.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"trader-core/pkg/core"
)

// Store wraps a SQLite connection opened in WAL mode.
type Store struct {
	sql *sql.DB
}

// Open opens (or creates) the database at path and runs any pending
// migrations.
func Open(path string) (*Store, error) {
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("store: ping db: %w", err)
	}
	s := &Store{sql: sqlDB}
	if err := s.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

// Shutdown closes the underlying database connection.
func (s *Store) Shutdown() error {
	return s.sql.Close()
}

func (s *Store) migrate() error {
	version := 0
	s.sql.QueryRow(`SELECT version FROM schema_version ORDER BY version DESC LIMIT 1`).Scan(&version)

	if version < 1 {
		if _, err := s.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS execution_cache (
				id            INTEGER PRIMARY KEY AUTOINCREMENT,
				ticker        TEXT NOT NULL,
				strategy_id   TEXT NOT NULL,
				side          TEXT NOT NULL,
				price         TEXT NOT NULL,
				quantity      TEXT NOT NULL,
				fee           TEXT NOT NULL,
				realized_pnl  TEXT NOT NULL,
				executed_at   TEXT NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_execution_cache_ticker ON execution_cache(ticker);
			CREATE INDEX IF NOT EXISTS idx_execution_cache_executed_at ON execution_cache(executed_at);

			CREATE TABLE IF NOT EXISTS execution_cache_meta (
				key   TEXT PRIMARY KEY,
				value TEXT NOT NULL
			);

			CREATE TABLE IF NOT EXISTS ohlcv (
				ticker     TEXT NOT NULL,
				timeframe  TEXT NOT NULL,
				open_time  TEXT NOT NULL,
				open       TEXT NOT NULL,
				high       TEXT NOT NULL,
				low        TEXT NOT NULL,
				close      TEXT NOT NULL,
				volume     TEXT NOT NULL,
				close_time TEXT NOT NULL,
				PRIMARY KEY (ticker, timeframe, open_time)
			);

			CREATE TABLE IF NOT EXISTS portfolio_equity_history (
				timestamp          TEXT PRIMARY KEY,
				equity             TEXT NOT NULL,
				drawdown_pct       TEXT NOT NULL,
				return_pct         TEXT NOT NULL,
				period_return_pct  TEXT NOT NULL
			);

			INSERT OR IGNORE INTO schema_version (version) VALUES (1);
		`); err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
	}

	if version < 2 {
		// credential_id/order_id round out the row's natural identity so a
		// re-run of a sync over an overlapping date range upserts instead of
		// duplicating; single-account deployments leave credential_id empty.
		if _, err := s.sql.Exec(`
			ALTER TABLE execution_cache ADD COLUMN credential_id TEXT NOT NULL DEFAULT '';
			ALTER TABLE execution_cache ADD COLUMN order_id TEXT NOT NULL DEFAULT '';
			CREATE UNIQUE INDEX IF NOT EXISTS idx_execution_cache_identity
				ON execution_cache(credential_id, order_id, executed_at);

			INSERT OR IGNORE INTO schema_version (version) VALUES (2);
		`); err != nil {
			return fmt.Errorf("migration v2: %w", err)
		}
	}

	return nil
}

// AppendExecution upserts one execution-cache row, keyed on
// (credential_id, order_id, executed_at) so re-running a sync over an
// overlapping date range updates the existing row instead of duplicating it.
func (s *Store) AppendExecution(row core.ExecutionCacheRow) error {
	_, err := s.sql.Exec(
		`INSERT INTO execution_cache (credential_id, order_id, ticker, strategy_id, side, price, quantity, fee, realized_pnl, executed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(credential_id, order_id, executed_at) DO UPDATE SET
			ticker=excluded.ticker, strategy_id=excluded.strategy_id, side=excluded.side,
			price=excluded.price, quantity=excluded.quantity, fee=excluded.fee,
			realized_pnl=excluded.realized_pnl`,
		row.CredentialID, row.OrderID, row.Ticker.String(), row.StrategyID, string(row.Side),
		row.Price.String(), row.Quantity.String(), row.Fee.String(), row.RealizedPnL.String(),
		row.ExecutedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("store: append execution: %w", err)
	}
	return nil
}

// Executions returns every execution-cache row in chronological order.
func (s *Store) Executions() ([]core.ExecutionCacheRow, error) {
	rows, err := s.sql.Query(`SELECT credential_id, order_id, ticker, strategy_id, side, price, quantity, fee, realized_pnl, executed_at FROM execution_cache ORDER BY executed_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: query executions: %w", err)
	}
	defer rows.Close()

	var out []core.ExecutionCacheRow
	for rows.Next() {
		var credentialID, orderID, tickerStr, side, price, qty, fee, pnl, executedAt string
		if err := rows.Scan(&credentialID, &orderID, &tickerStr, &side, &price, &qty, &fee, &pnl, &executedAt); err != nil {
			return nil, fmt.Errorf("store: scan execution: %w", err)
		}
		at, err := time.Parse(time.RFC3339Nano, executedAt)
		if err != nil {
			return nil, fmt.Errorf("store: parse executed_at: %w", err)
		}
		out = append(out, core.ExecutionCacheRow{
			CredentialID: credentialID,
			OrderID:      orderID,
			Ticker:       core.ParseTicker(tickerStr),
			Side:         core.Side(side),
			Price:        mustDecimal(price),
			Quantity:     mustDecimal(qty),
			Fee:          mustDecimal(fee),
			RealizedPnL:  mustDecimal(pnl),
			ExecutedAt:   at,
		})
	}
	return out, rows.Err()
}

// SaveClose upserts a single OHLCV row.
func (s *Store) SaveClose(c core.Candle) error {
	_, err := s.sql.Exec(
		`INSERT INTO ohlcv (ticker, timeframe, open_time, open, high, low, close, volume, close_time)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(ticker, timeframe, open_time) DO UPDATE SET
			open=excluded.open, high=excluded.high, low=excluded.low,
			close=excluded.close, volume=excluded.volume, close_time=excluded.close_time`,
		c.Ticker.String(), string(c.Timeframe), c.OpenTime.UTC().Format(time.RFC3339Nano),
		c.Open.String(), c.High.String(), c.Low.String(), c.Close.String(), c.Volume.String(),
		c.CloseTime.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("store: save close: %w", err)
	}
	return nil
}

// Close finds the daily close for ticker on day, walking back through
// stored bars is the builder's job (see equitycurve.ClosePriceSource); this
// looks up exactly one calendar day's D1 close. Satisfies
// equitycurve.ClosePriceSource.
func (s *Store) Close(ticker core.Ticker, day time.Time) (core.Decimal, bool) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	var closeStr string
	err := s.sql.QueryRow(
		`SELECT close FROM ohlcv WHERE ticker = ? AND timeframe = ? AND open_time >= ? AND open_time < ? ORDER BY open_time DESC LIMIT 1`,
		ticker.String(), string(core.D1), start.Format(time.RFC3339Nano), end.Format(time.RFC3339Nano),
	).Scan(&closeStr)
	if err != nil {
		return core.Zero, false
	}
	return mustDecimal(closeStr), true
}

// SaveEquityPoint upserts one point of the portfolio equity history.
func (s *Store) SaveEquityPoint(p core.EquityPoint) error {
	_, err := s.sql.Exec(
		`INSERT INTO portfolio_equity_history (timestamp, equity, drawdown_pct, return_pct, period_return_pct)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(timestamp) DO UPDATE SET
			equity=excluded.equity, drawdown_pct=excluded.drawdown_pct,
			return_pct=excluded.return_pct, period_return_pct=excluded.period_return_pct`,
		p.Timestamp.UTC().Format(time.RFC3339Nano), p.Equity.String(),
		p.DrawdownPct.String(), p.ReturnPct.String(), p.PeriodReturnPct.String(),
	)
	if err != nil {
		return fmt.Errorf("store: save equity point: %w", err)
	}
	return nil
}

// Meta reads a single execution_cache_meta value (e.g. the last-synced
// cursor), ok is false if the key has never been set.
func (s *Store) Meta(key string) (string, bool) {
	var value string
	err := s.sql.QueryRow(`SELECT value FROM execution_cache_meta WHERE key = ?`, key).Scan(&value)
	if err != nil {
		return "", false
	}
	return value, true
}

// SetMeta upserts a single execution_cache_meta value.
func (s *Store) SetMeta(key, value string) error {
	_, err := s.sql.Exec(
		`INSERT INTO execution_cache_meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("store: set meta: %w", err)
	}
	return nil
}

func mustDecimal(s string) core.Decimal {
	d, err := core.ParseDecimal(s)
	if err != nil {
		return core.Zero
	}
	return d
}

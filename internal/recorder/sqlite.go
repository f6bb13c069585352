package recorder

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"EconDash/internal/model"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists the audit trail to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets the dashboard read the audit trail while a refresh writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS accumulation_runs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			series_name TEXT NOT NULL,
			series_key  TEXT,
			range_start TEXT,
			range_end   TEXT,
			fetched     INTEGER,
			total_rows  INTEGER,
			status      TEXT,
			error       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_accumulation_ts ON accumulation_runs(timestamp)`,

		`CREATE TABLE IF NOT EXISTS index_quotes (
			id                   INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp            INTEGER NOT NULL,
			symbol               TEXT NOT NULL,
			name                 TEXT,
			country              TEXT,
			close                REAL,
			daily_change         REAL,
			daily_percent_change REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_quotes_symbol_ts ON index_quotes(symbol, timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordAccumulation(evt *AccumulationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := evt.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := r.db.Exec(`INSERT INTO accumulation_runs
		(timestamp, series_name, series_key, range_start, range_end, fetched, total_rows, status, error)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		ts.Unix(), evt.SeriesName, evt.SeriesKey, evt.RangeStart, evt.RangeEnd,
		evt.Fetched, evt.TotalRows, evt.Status, evt.Error,
	)
	return err
}

func (r *SQLiteRecorder) RecordIndexQuotes(quotes []model.IndexQuote) error {
	if len(quotes) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO index_quotes
		(timestamp, symbol, name, country, close, daily_change, daily_percent_change)
		VALUES (?,?,?,?,?,?,?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, q := range quotes {
		if _, err := stmt.Exec(now, q.Symbol, q.Name, q.Country,
			nullFloat(q.Close), nullFloat(q.DailyChange), nullFloat(q.DailyPercentChange)); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert %s: %w", q.Symbol, err)
		}
	}
	return tx.Commit()
}

// RecentAccumulations returns the latest runs, newest first.
func (r *SQLiteRecorder) RecentAccumulations(limit int) ([]AccumulationEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT timestamp, series_name, series_key, range_start, range_end,
		fetched, total_rows, status, error
		FROM accumulation_runs ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []AccumulationEvent
	for rows.Next() {
		var (
			evt AccumulationEvent
			ts  int64
		)
		if err := rows.Scan(&ts, &evt.SeriesName, &evt.SeriesKey, &evt.RangeStart, &evt.RangeEnd,
			&evt.Fetched, &evt.TotalRows, &evt.Status, &evt.Error); err != nil {
			return nil, err
		}
		evt.Timestamp = time.Unix(ts, 0)
		events = append(events, evt)
	}
	return events, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}

func nullFloat(d decimal.NullDecimal) sql.NullFloat64 {
	if !d.Valid {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: d.Decimal.InexactFloat64(), Valid: true}
}

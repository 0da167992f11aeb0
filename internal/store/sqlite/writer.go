// Package sqlite archives fetched bars and journals backtest trades and sent
// alerts in a WAL-mode SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/appigoo/stock-trend-monitor/internal/model"
)

const defaultBatchSize = 500

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/monitor.db"
}

// Writer is a single-connection SQLite writer with transaction batching.
type Writer struct {
	db *sql.DB

	// OnCommit is called with the duration of each committed bar batch.
	OnCommit func(d time.Duration)
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New creates a new SQLite Writer, initializes the database with WAL mode and schema.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Set connection pool for single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Writer{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bars (
			ticker   TEXT    NOT NULL,
			bar_size TEXT    NOT NULL,
			ts       INTEGER NOT NULL,
			open     REAL    NOT NULL,
			high     REAL    NOT NULL,
			low      REAL    NOT NULL,
			close    REAL    NOT NULL,
			volume   INTEGER NOT NULL,
			PRIMARY KEY (ticker, bar_size, ts)
		);

		CREATE TABLE IF NOT EXISTS trades (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id     TEXT    NOT NULL,
			ticker     TEXT    NOT NULL,
			side       TEXT    NOT NULL,
			price      REAL    NOT NULL,
			shares     INTEGER NOT NULL,
			cash       REAL    NOT NULL,
			equity     REAL    NOT NULL,
			ts         INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id);
		CREATE INDEX IF NOT EXISTS idx_trades_ticker ON trades(ticker, ts);

		CREATE TABLE IF NOT EXISTS alerts (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			cycle_id  TEXT    NOT NULL,
			ticker    TEXT    NOT NULL,
			message   TEXT    NOT NULL,
			delivered INTEGER NOT NULL,
			error     TEXT,
			sent_at   INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_alerts_ticker ON alerts(ticker, sent_at);
	`)
	return err
}

// WriteBars upserts the bars of s in batched transactions. Re-fetched bars
// replace the archived row with the same (ticker, bar_size, ts).
func (w *Writer) WriteBars(ctx context.Context, s model.Series) error {
	start := time.Now()
	for lo := 0; lo < len(s.Bars); lo += defaultBatchSize {
		hi := lo + defaultBatchSize
		if hi > len(s.Bars) {
			hi = len(s.Bars)
		}
		if err := w.insertBatch(ctx, s.Ticker, s.Interval, s.Bars[lo:hi]); err != nil {
			return fmt.Errorf("sqlite insert bars %s: %w", s.Ticker, err)
		}
	}
	log.Printf("[sqlite] archived %d %s bars for %s in %v", len(s.Bars), s.Interval, s.Ticker, time.Since(start))
	return nil
}

// insertBatch inserts a batch of bars in a single transaction.
func (w *Writer) insertBatch(ctx context.Context, ticker, interval string, bars []model.Bar) error {
	start := time.Now()
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO bars (ticker, bar_size, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		_, err := stmt.ExecContext(ctx, ticker, interval, b.TS.Unix(), b.Open, b.High, b.Low, b.Close, b.Volume)
		if err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	if w.OnCommit != nil {
		w.OnCommit(time.Since(start))
	}
	return nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}

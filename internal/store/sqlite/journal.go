package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/appigoo/stock-trend-monitor/internal/backtest"
)

// TradeRecord is a row of the trades journal.
type TradeRecord struct {
	ID     int64     `json:"id"`
	RunID  string    `json:"run_id"`
	Ticker string    `json:"ticker"`
	Side   string    `json:"side"`
	Price  float64   `json:"price"`
	Shares int64     `json:"shares"`
	Cash   float64   `json:"cash"`
	Equity float64   `json:"equity"`
	TS     time.Time `json:"ts"`
}

// AlertRecord is a row of the alerts journal.
type AlertRecord struct {
	ID        int64     `json:"id"`
	CycleID   string    `json:"cycle_id"`
	Ticker    string    `json:"ticker"`
	Message   string    `json:"message"`
	Delivered bool      `json:"delivered"`
	Error     string    `json:"error,omitempty"`
	SentAt    time.Time `json:"sent_at"`
}

// RecordTrades journals the ledger of one backtest run in one transaction.
func (w *Writer) RecordTrades(ctx context.Context, runID, ticker string, trades []backtest.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades (run_id, ticker, side, price, shares, cash, equity, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, t := range trades {
		if _, err := stmt.ExecContext(ctx, runID, ticker, string(t.Side), t.Price, t.Shares, t.Cash, t.Equity, t.TS.Unix()); err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite insert trade: %w", err)
		}
	}
	return tx.Commit()
}

// RecordAlert journals an alert delivery attempt.
func (w *Writer) RecordAlert(ctx context.Context, rec AlertRecord) error {
	delivered := 0
	if rec.Delivered {
		delivered = 1
	}
	_, err := w.db.ExecContext(ctx,
		`INSERT INTO alerts (cycle_id, ticker, message, delivered, error, sent_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.CycleID, rec.Ticker, rec.Message, delivered, rec.Error, rec.SentAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("sqlite insert alert: %w", err)
	}
	return nil
}

// GetTrades returns the last limit journaled trades of ticker, newest first.
// An empty ticker matches every ticker.
func (w *Writer) GetTrades(ctx context.Context, ticker string, limit int) ([]TradeRecord, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT id, run_id, ticker, side, price, shares, cash, equity, ts
		FROM trades
		WHERE ? = '' OR ticker = ?
		ORDER BY id DESC LIMIT ?`, ticker, ticker, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var t TradeRecord
		var ts int64
		if err := rows.Scan(&t.ID, &t.RunID, &t.Ticker, &t.Side, &t.Price, &t.Shares, &t.Cash, &t.Equity, &ts); err != nil {
			return nil, fmt.Errorf("sqlite scan trade: %w", err)
		}
		t.TS = time.Unix(ts, 0).UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetAlerts returns the last limit journaled alerts, newest first.
func (w *Writer) GetAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT id, cycle_id, ticker, message, delivered, COALESCE(error, ''), sent_at
		FROM alerts ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AlertRecord
	for rows.Next() {
		var a AlertRecord
		var delivered int
		var ts int64
		if err := rows.Scan(&a.ID, &a.CycleID, &a.Ticker, &a.Message, &delivered, &a.Error, &ts); err != nil {
			return nil, fmt.Errorf("sqlite scan alert: %w", err)
		}
		a.Delivered = delivered == 1
		a.SentAt = time.Unix(ts, 0).UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

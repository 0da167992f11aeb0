package model

import (
	"context"
	"time"
)

// ── Storage Port Interfaces ──
// These interfaces decouple the monitor from concrete storage implementations
// (Redis, SQLite, in-memory). Each implementation satisfies one or more of them.

// BarWriter archives fetched bars.
type BarWriter interface {
	// WriteBars upserts the bars of a series keyed by (ticker, interval, ts).
	WriteBars(ctx context.Context, s Series) error

	// Close releases underlying resources.
	Close() error
}

// BarReader reads archived bars for offline replay.
type BarReader interface {
	// ReadBars returns archived bars for a ticker and interval in ascending
	// time order, restricted to bars after the given time (zero = all).
	ReadBars(ctx context.Context, ticker, interval string, after time.Time) (Series, error)

	// Close releases underlying resources.
	Close() error
}

// AlertStateStore holds the per-ticker timestamp of the last alert sent.
// It is the only state that survives between refresh cycles.
type AlertStateStore interface {
	// LastAlert returns the last alert time for ticker; ok is false if none.
	LastAlert(ctx context.Context, ticker string) (t time.Time, ok bool, err error)

	// SetLastAlert records t as the last alert time for ticker.
	SetLastAlert(ctx context.Context, ticker string, t time.Time) error
}

package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/appigoo/stock-trend-monitor/internal/backtest"
	"github.com/appigoo/stock-trend-monitor/internal/model"
)

func openTemp(t *testing.T) (*Writer, *Reader) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "monitor.db")
	w, err := New(WriterConfig{DBPath: path})
	if err != nil {
		t.Fatalf("open writer: %v", err)
	}
	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	t.Cleanup(func() {
		r.Close()
		w.Close()
	})
	return w, r
}

func series(start time.Time, closes ...float64) model.Series {
	s := model.Series{Ticker: "TSLA", Interval: "1d"}
	for i, c := range closes {
		s.Bars = append(s.Bars, model.Bar{TS: start.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: int64(1000 + i)})
	}
	return s
}

func TestBarsRoundTrip(t *testing.T) {
	w, r := openTemp(t)
	ctx := context.Background()
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	commits := 0
	w.OnCommit = func(time.Duration) { commits++ }

	if err := w.WriteBars(ctx, series(start, 100, 101, 102)); err != nil {
		t.Fatal(err)
	}
	// Overlapping refetch replaces the last bar and appends one.
	if err := w.WriteBars(ctx, series(start.AddDate(0, 0, 2), 103, 104)); err != nil {
		t.Fatal(err)
	}

	if commits != 2 {
		t.Errorf("commits = %d, want 2", commits)
	}

	got, err := r.ReadBars(ctx, "TSLA", "1d", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if got.Len() != 4 {
		t.Fatalf("bars = %d, want 4", got.Len())
	}
	if got.Bars[2].Close != 103 || got.Bars[3].Close != 104 {
		t.Errorf("closes = %v", got.Closes())
	}
	if !got.Bars[0].TS.Equal(start) {
		t.Errorf("first ts = %v", got.Bars[0].TS)
	}

	after, err := r.ReadBars(ctx, "TSLA", "1d", start.AddDate(0, 0, 1))
	if err != nil || after.Len() != 2 {
		t.Errorf("after filter: %d bars, %v", after.Len(), err)
	}

	other, _ := r.ReadBars(ctx, "TSLA", "15m", time.Time{})
	if other.Len() != 0 {
		t.Errorf("interval not isolated: %d bars", other.Len())
	}
}

func TestJournal(t *testing.T) {
	w, _ := openTemp(t)
	ctx := context.Background()
	ts := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)

	trades := []backtest.Trade{
		{TS: ts, Side: backtest.Buy, Price: 105, Shares: 10, Cash: 98950, Equity: 100000},
		{TS: ts.AddDate(0, 0, 1), Side: backtest.Sell, Price: 95, Shares: 10, Cash: 99900, Equity: 99900},
	}
	if err := w.RecordTrades(ctx, "run-1", "TSLA", trades); err != nil {
		t.Fatal(err)
	}
	got, err := w.GetTrades(ctx, "TSLA", 10)
	if err != nil || len(got) != 2 {
		t.Fatalf("trades = %v, %v", got, err)
	}
	if got[0].Side != "Sell" || got[0].Cash != 99900 || got[0].RunID != "run-1" {
		t.Errorf("newest trade = %+v", got[0])
	}
	if none, _ := w.GetTrades(ctx, "NVDA", 10); len(none) != 0 {
		t.Errorf("ticker filter leaked %d rows", len(none))
	}

	if err := w.RecordAlert(ctx, AlertRecord{CycleID: "c1", Ticker: "TSLA", Message: "m", Delivered: false, Error: "smtp down", SentAt: ts}); err != nil {
		t.Fatal(err)
	}
	alerts, err := w.GetAlerts(ctx, 5)
	if err != nil || len(alerts) != 1 {
		t.Fatalf("alerts = %v, %v", alerts, err)
	}
	if alerts[0].Delivered || alerts[0].Error != "smtp down" || !alerts[0].SentAt.Equal(ts) {
		t.Errorf("alert = %+v", alerts[0])
	}
}

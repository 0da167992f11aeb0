package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/appigoo/stock-trend-monitor/internal/indicator"
	"github.com/appigoo/stock-trend-monitor/internal/model"
)

func assertClose(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f", name, got, want)
	}
}

type ohlcv struct {
	o, h, l, c float64
	v          int64
}

func compute(t *testing.T, rows []ohlcv) *indicator.Result {
	t.Helper()
	start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	s := model.Series{Ticker: "TEST", Interval: "1d"}
	for i, r := range rows {
		s.Bars = append(s.Bars, model.Bar{
			TS:   start.AddDate(0, 0, i),
			Open: r.o, High: r.h, Low: r.l, Close: r.c, Volume: r.v,
		})
	}
	res, err := indicator.Compute(s, indicator.DefaultConfig())
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	return res
}

var roundTrip = []ohlcv{
	{100, 101, 99, 100, 1000},
	{101, 106, 100, 105, 2000},
	{104, 104, 94, 95, 3000},
}

func TestRun_BuyThenSell(t *testing.T) {
	out, err := Run(compute(t, roundTrip), DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	if len(out.Trades) != 2 {
		t.Fatalf("trades = %d, want 2", len(out.Trades))
	}
	buy, sell := out.Trades[0], out.Trades[1]
	if buy.Side != Buy || buy.Price != 105 || buy.Shares != 10 {
		t.Errorf("buy = %+v", buy)
	}
	assertClose(t, "cash after buy", buy.Cash, 98950, 1e-9)
	assertClose(t, "equity after buy", buy.Equity, 100000, 1e-9)
	if sell.Side != Sell || sell.Price != 95 || sell.Shares != 10 {
		t.Errorf("sell = %+v", sell)
	}

	assertClose(t, "final cash", out.FinalCash, 99900, 1e-9)
	if out.Position != 0 {
		t.Errorf("position = %d, want 0", out.Position)
	}

	r := out.Report
	assertClose(t, "total return", r.TotalReturnPct, -0.1, 1e-9)
	if r.RoundTrips != 1 || r.TradeCount != 2 {
		t.Errorf("round trips=%d trades=%d", r.RoundTrips, r.TradeCount)
	}
	assertClose(t, "win rate", r.WinRatePct, 0, 1e-9)
	assertClose(t, "avg profit", r.AvgProfit, -100, 1e-9)

	if len(out.Equity) != 3 {
		t.Fatalf("equity points = %d, want one per bar", len(out.Equity))
	}
	assertClose(t, "equity[0]", out.Equity[0].Equity, 100000, 1e-9)
	assertClose(t, "equity[2]", out.Equity[2].Equity, 99900, 1e-9)

	if len(out.Markers) != 2 || out.Markers[0].Index != 1 || out.Markers[1].Index != 2 {
		t.Errorf("markers = %+v", out.Markers)
	}
}

func TestRun_NoQualifyingBars(t *testing.T) {
	rows := make([]ohlcv, 30)
	for i := range rows {
		rows[i] = ohlcv{100, 101, 99, 100, 1000}
	}
	out, err := Run(compute(t, rows), DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Trades) != 0 {
		t.Errorf("expected empty ledger, got %d trades", len(out.Trades))
	}
	assertClose(t, "final cash", out.FinalCash, 100000, 0)
	if out.Report != (Report{FinalCash: 100000}) {
		t.Errorf("report = %+v, want zero metrics", out.Report)
	}
}

func TestRun_InsufficientCashStaysFlat(t *testing.T) {
	cfg := Config{InitialCash: 1000, LotSize: 10}
	out, err := Run(compute(t, roundTrip), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Trades) != 0 {
		t.Errorf("bought without cash: %+v", out.Trades)
	}
	assertClose(t, "final cash", out.FinalCash, 1000, 0)
}

func TestRun_OpenPositionIsUnrealized(t *testing.T) {
	rows := []ohlcv{
		{100, 101, 99, 100, 1000},
		{101, 106, 100, 105, 2000},
		{105, 107, 104, 108, 1000},
	}
	out, err := Run(compute(t, rows), DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Trades) != 1 || out.Position != 10 {
		t.Fatalf("trades=%d position=%d", len(out.Trades), out.Position)
	}
	assertClose(t, "final cash", out.FinalCash, 98950, 1e-9)
	assertClose(t, "final equity", out.FinalEquity, 98950+1080, 1e-9)
	if out.Report.RoundTrips != 0 || out.Report.TotalReturnPct != 0 {
		t.Errorf("open trade must not count as a round-trip: %+v", out.Report)
	}
}

func TestRun_RejectsBadInput(t *testing.T) {
	if _, err := Run(nil, DefaultConfig()); err == nil {
		t.Error("expected error for nil result")
	}
	if _, err := Run(compute(t, roundTrip), Config{InitialCash: 1000}); err == nil {
		t.Error("expected error for zero lot")
	}
}

func TestSummarize_WinsAndLosses(t *testing.T) {
	trades := []Trade{
		{Side: Buy, Price: 100, Shares: 10},
		{Side: Sell, Price: 110, Shares: 10},
		{Side: Buy, Price: 120, Shares: 10},
		{Side: Sell, Price: 115, Shares: 10},
		{Side: Buy, Price: 90, Shares: 10},
	}
	r := Summarize(trades, 100000, 99960, 100860)
	if r.RoundTrips != 2 || r.TradeCount != 5 {
		t.Errorf("round trips=%d trades=%d", r.RoundTrips, r.TradeCount)
	}
	assertClose(t, "win rate", r.WinRatePct, 50, 1e-9)
	assertClose(t, "avg profit", r.AvgProfit, 25, 1e-9)
	assertClose(t, "total return", r.TotalReturnPct, 0.86, 1e-9)
}

// Package backtest replays a bar series through a fixed-lot long-only rule
// and reports the resulting trade ledger, equity curve and summary metrics.
//
// The simulator holds at most one position. It enters with a fixed lot on a
// bullish price-structure bar (higher high, higher low, higher close) backed
// by above-average volume and a positive MACD, and liquidates on the mirror
// bearish condition. Cash is tracked in decimal to keep the ledger exact.
package backtest

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/appigoo/stock-trend-monitor/internal/indicator"
)

// Side is a trade direction.
type Side string

const (
	Buy  Side = "Buy"
	Sell Side = "Sell"
)

// Config controls the simulation.
type Config struct {
	InitialCash float64
	LotSize     int64
}

// DefaultConfig returns 100000 starting cash and a 10-share lot.
func DefaultConfig() Config {
	return Config{InitialCash: 100000, LotSize: 10}
}

// Trade is one ledger entry.
type Trade struct {
	TS     time.Time `json:"ts"`
	Side   Side      `json:"side"`
	Price  float64   `json:"price"`
	Shares int64     `json:"shares"`
	Cash   float64   `json:"cash"`   // balance after the trade
	Equity float64   `json:"equity"` // cash + position value after the trade
}

// EquityPoint is the account value at one bar.
type EquityPoint struct {
	TS     time.Time `json:"ts"`
	Equity float64   `json:"equity"`
}

// Marker flags a bar where a trade happened, for charting.
type Marker struct {
	Index int       `json:"index"`
	TS    time.Time `json:"ts"`
	Side  Side      `json:"side"`
	Price float64   `json:"price"`
}

// Result is the full simulation output.
type Result struct {
	InitialCash float64       `json:"initial_cash"`
	FinalCash   float64       `json:"final_cash"`
	Position    int64         `json:"position"`
	FinalEquity float64       `json:"final_equity"`
	Trades      []Trade       `json:"trades"`
	Equity      []EquityPoint `json:"equity"`
	Markers     []Marker      `json:"markers"`
	Report      Report        `json:"report"`
}

// Run simulates the series. It never fails on valid indicator output; a nil
// result or a non-positive lot is rejected.
func Run(res *indicator.Result, cfg Config) (*Result, error) {
	if res == nil || res.Len() < 2 {
		return nil, indicator.ErrInsufficientData
	}
	if cfg.LotSize <= 0 {
		return nil, fmt.Errorf("backtest: lot size must be positive, got %d", cfg.LotSize)
	}

	cash := decimal.NewFromFloat(cfg.InitialCash)
	var pos int64

	out := &Result{
		InitialCash: cfg.InitialCash,
		Equity:      make([]EquityPoint, 0, res.Len()),
	}

	equityAt := func(close decimal.Decimal) decimal.Decimal {
		return cash.Add(close.Mul(decimal.NewFromInt(pos)))
	}

	first := res.Bar(0)
	out.Equity = append(out.Equity, EquityPoint{TS: first.TS, Equity: toFloat(equityAt(decimal.NewFromFloat(first.Close)))})

	for i := 1; i < res.Len(); i++ {
		cur, prev := res.Bar(i), res.Bar(i-1)
		f := res.Fields[i]
		price := decimal.NewFromFloat(cur.Close)

		highVolume := indicator.GT(indicator.Some(float64(cur.Volume)), f.VolumeAvg)
		up := cur.High > prev.High && cur.Low > prev.Low && cur.Close > prev.Close
		down := cur.High < prev.High && cur.Low < prev.Low && cur.Close < prev.Close

		var side Side
		var shares int64
		switch {
		case pos == 0 && up && highVolume && indicator.GT(f.MACD, zero):
			cost := price.Mul(decimal.NewFromInt(cfg.LotSize))
			if cash.LessThan(cost) {
				break
			}
			cash = cash.Sub(cost)
			pos = cfg.LotSize
			side, shares = Buy, cfg.LotSize
		case pos > 0 && down && highVolume && indicator.LT(f.MACD, zero):
			cash = cash.Add(price.Mul(decimal.NewFromInt(pos)))
			side, shares = Sell, pos
			pos = 0
		}

		eq := toFloat(equityAt(price))
		if side != "" {
			out.Trades = append(out.Trades, Trade{
				TS:     cur.TS,
				Side:   side,
				Price:  cur.Close,
				Shares: shares,
				Cash:   toFloat(cash),
				Equity: eq,
			})
			out.Markers = append(out.Markers, Marker{Index: i, TS: cur.TS, Side: side, Price: cur.Close})
		}
		out.Equity = append(out.Equity, EquityPoint{TS: cur.TS, Equity: eq})
	}

	out.FinalCash = toFloat(cash)
	out.Position = pos
	out.FinalEquity = out.Equity[len(out.Equity)-1].Equity
	out.Report = Summarize(out.Trades, cfg.InitialCash, out.FinalCash, out.FinalEquity)
	return out, nil
}

var zero = indicator.Some(0)

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

package backtest

import (
	"math"

	"github.com/shopspring/decimal"
)

// Report summarises a simulation.
type Report struct {
	TotalReturnPct float64 `json:"total_return_pct"`
	RoundTrips     int     `json:"round_trips"`
	TradeCount     int     `json:"trade_count"`
	WinRatePct     float64 `json:"win_rate_pct"`
	AvgProfit      float64 `json:"avg_profit"`
	FinalCash      float64 `json:"final_cash"`
}

// RoundTrip pairs an entry with its exit.
type RoundTrip struct {
	Entry  Trade   `json:"entry"`
	Exit   Trade   `json:"exit"`
	Profit float64 `json:"profit"`
}

// RoundTrips pairs consecutive Buy/Sell trades. A trailing open Buy is not
// a round-trip.
func RoundTrips(trades []Trade) []RoundTrip {
	var out []RoundTrip
	for k := 0; k+1 < len(trades); k += 2 {
		entry, exit := trades[k], trades[k+1]
		if entry.Side != Buy || exit.Side != Sell {
			continue
		}
		profit := decimal.NewFromFloat(exit.Price).
			Sub(decimal.NewFromFloat(entry.Price)).
			Mul(decimal.NewFromInt(entry.Shares))
		out = append(out, RoundTrip{Entry: entry, Exit: exit, Profit: toFloat(profit)})
	}
	return out
}

// Summarize computes the report metrics. Every metric is 0 when no
// round-trip completed; final cash is always reported.
func Summarize(trades []Trade, initialCash, finalCash, finalEquity float64) Report {
	r := Report{
		TradeCount: len(trades),
		FinalCash:  finalCash,
	}
	rts := RoundTrips(trades)
	if len(rts) == 0 || initialCash == 0 {
		return r
	}

	r.RoundTrips = len(rts)
	r.TotalReturnPct = round2((finalEquity - initialCash) / initialCash * 100)

	wins := 0
	total := decimal.Zero
	for _, rt := range rts {
		if rt.Exit.Price > rt.Entry.Price {
			wins++
		}
		total = total.Add(decimal.NewFromFloat(rt.Profit))
	}
	r.WinRatePct = round2(float64(wins) / float64(len(rts)) * 100)
	r.AvgProfit = round2(toFloat(total.Div(decimal.NewFromInt(int64(len(rts))))))
	return r
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Package export serialises the per-bar analysis table and the backtest
// trade ledger as CSV, JSON or Parquet.
package export

import (
	"strings"

	"github.com/appigoo/stock-trend-monitor/internal/indicator"
	"github.com/appigoo/stock-trend-monitor/internal/signal"
)

// Row is one bar of the analysis table. Indicator columns are nil while the
// indicator warms up (null in Parquet, an empty cell in CSV).
type Row struct {
	Timestamp       int64    `json:"t" parquet:"t"` // Unix timestamp in milliseconds
	Open            float64  `json:"o" parquet:"o"`
	High            float64  `json:"h" parquet:"h"`
	Low             float64  `json:"l" parquet:"l"`
	Close           float64  `json:"c" parquet:"c"`
	Volume          int64    `json:"v" parquet:"v"`
	PriceChangePct  *float64 `json:"price_change_pct" parquet:"price_change_pct"`
	VolumeChangePct *float64 `json:"volume_change_pct" parquet:"volume_change_pct"`
	PriceChangeAvg  *float64 `json:"price_change_avg" parquet:"price_change_avg"`
	VolumeChangeAvg *float64 `json:"volume_change_avg" parquet:"volume_change_avg"`
	VolumeAvg       *float64 `json:"volume_avg" parquet:"volume_avg"`
	MACD            *float64 `json:"macd" parquet:"macd"`
	Signal          *float64 `json:"signal" parquet:"signal"`
	Histogram       *float64 `json:"histogram" parquet:"histogram"`
	EMA5            *float64 `json:"ema5" parquet:"ema5"`
	EMA10           *float64 `json:"ema10" parquet:"ema10"`
	RSI             *float64 `json:"rsi" parquet:"rsi"`
	SMA50           *float64 `json:"sma50" parquet:"sma50"`
	SMA200          *float64 `json:"sma200" parquet:"sma200"`
	ADX             *float64 `json:"adx" parquet:"adx"`
	CCI             *float64 `json:"cci" parquet:"cci"`
	ROC             *float64 `json:"roc" parquet:"roc"`
	StochK          *float64 `json:"stoch_k" parquet:"stoch_k"`
	StochD          *float64 `json:"stoch_d" parquet:"stoch_d"`
	ContinuousUp    int32    `json:"continuous_up" parquet:"continuous_up"`
	ContinuousDown  int32    `json:"continuous_down" parquet:"continuous_down"`
	Tags            string   `json:"tags" parquet:"tags"` // "; "-joined tag names
}

// TagSeparator joins tag names in the Tags column.
const TagSeparator = "; "

// Rows flattens an indicator result and its per-bar tags into table rows.
// tags may be shorter than the series; missing entries export as no tags.
func Rows(res *indicator.Result, tags []signal.Set) []Row {
	if res == nil {
		return nil
	}
	out := make([]Row, res.Len())
	for i := range out {
		b, f := res.Bar(i), res.Fields[i]
		r := Row{
			Timestamp:       b.TS.UnixMilli(),
			Open:            b.Open,
			High:            b.High,
			Low:             b.Low,
			Close:           b.Close,
			Volume:          b.Volume,
			PriceChangePct:  f.PriceChangePct.Ptr(),
			VolumeChangePct: f.VolumeChangePct.Ptr(),
			PriceChangeAvg:  f.PriceChangeAvg.Ptr(),
			VolumeChangeAvg: f.VolumeChangeAvg.Ptr(),
			VolumeAvg:       f.VolumeAvg.Ptr(),
			MACD:            f.MACD.Ptr(),
			Signal:          f.Signal.Ptr(),
			Histogram:       f.Histogram.Ptr(),
			EMA5:            f.EMAFast.Ptr(),
			EMA10:           f.EMASlow.Ptr(),
			RSI:             f.RSI.Ptr(),
			SMA50:           f.SMAShort.Ptr(),
			SMA200:          f.SMALong.Ptr(),
			ADX:             f.ADX.Ptr(),
			CCI:             f.CCI.Ptr(),
			ROC:             f.ROC.Ptr(),
			StochK:          f.StochK.Ptr(),
			StochD:          f.StochD.Ptr(),
			ContinuousUp:    int32(f.ContinuousUp),
			ContinuousDown:  int32(f.ContinuousDown),
		}
		if i < len(tags) {
			r.Tags = strings.Join(tags[i].Strings(), TagSeparator)
		}
		out[i] = r
	}
	return out
}

package signal

import (
	"math"

	"github.com/appigoo/stock-trend-monitor/internal/indicator"
)

// Config holds the classifier thresholds. All percentages are in percent.
type Config struct {
	// PriceThreshold / VolumeThreshold gate the Volume-Price deviation rule.
	PriceThreshold  float64
	VolumeThreshold float64
	GapThreshold    float64

	ContinuousUp   int
	ContinuousDown int

	PivotPriceChange  float64
	PivotVolumeChange float64

	// VolumeSurgePct is the volume-change % the Price-Trend (Volume%) tags
	// require.
	VolumeSurgePct float64

	// KeyPivotMinTags: Key-Pivot fires when more tags than this fired.
	KeyPivotMinTags int

	// RunawayWindow is the trailing close-mean window of the runaway-gap test.
	RunawayWindow int
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		PriceThreshold:    80,
		VolumeThreshold:   200,
		GapThreshold:      1,
		ContinuousUp:      3,
		ContinuousDown:    3,
		PivotPriceChange:  5,
		PivotVolumeChange: 100,
		VolumeSurgePct:    15,
		KeyPivotMinTags:   8,
		RunawayWindow:     5,
	}
}

// Classify returns the tag set of every bar. Bar 0 always has an empty set.
func Classify(res *indicator.Result, cfg Config) []Set {
	out := make([]Set, res.Len())
	for i := range out {
		out[i] = ClassifyBar(res, i, cfg)
	}
	return out
}

// Latest returns the tag set of the most recent bar. It is the same rule
// evaluation Classify performs, applied to the last index.
func Latest(res *indicator.Result, cfg Config) Set {
	if res == nil || res.Len() == 0 {
		return nil
	}
	return ClassifyBar(res, res.Len()-1, cfg)
}

// ClassifyBar evaluates the whole catalogue against bar i and bar i-1 (and
// bar i+1 for the exhaustion-gap test, when it exists). Rules depending on
// an absent indicator value evaluate false.
func ClassifyBar(res *indicator.Result, i int, cfg Config) Set {
	if i <= 0 || i >= res.Len() {
		return Set{}
	}
	cur, prev := res.Bar(i), res.Bar(i-1)
	f, pf := res.Fields[i], res.Fields[i-1]

	var tags Set
	fire := func(cond bool, t Tag) {
		if cond {
			tags = append(tags, t)
		}
	}

	// Volume-Price: change % deviating from its rolling average.
	priceDev, okP := deviation(f.PriceChangePct, f.PriceChangeAvg)
	volDev, okV := deviation(f.VolumeChangePct, f.VolumeChangeAvg)
	fire(okP && okV &&
		math.Abs(priceDev) >= cfg.PriceThreshold &&
		math.Abs(volDev) >= cfg.VolumeThreshold, VolumePrice)

	fire(cur.Low > prev.High, LowAboveHigh)
	fire(cur.High < prev.Low, HighBelowLow)

	fire(indicator.LE(pf.MACD, zero) && indicator.GT(f.MACD, zero), MACDBuy)
	fire(indicator.GT(pf.MACD, zero) && indicator.LE(f.MACD, zero), MACDSell)

	volumeUp := cur.Volume > prev.Volume
	fire(indicator.LE(pf.EMAFast, pf.EMASlow) && indicator.GT(f.EMAFast, f.EMASlow) && volumeUp, EMABuy)
	fire(indicator.GE(pf.EMAFast, pf.EMASlow) && indicator.LT(f.EMAFast, f.EMASlow) && volumeUp, EMASell)

	trendUp := cur.High > prev.High && cur.Low > prev.Low && cur.Close > prev.Close
	trendDown := cur.High < prev.High && cur.Low < prev.Low && cur.Close < prev.Close
	highVolume := aboveAverageVolume(cur.Volume, f.VolumeAvg)
	volumeSurge := indicator.GT(f.VolumeChangePct, indicator.Some(cfg.VolumeSurgePct))
	fire(trendUp, PriceTrendBuy)
	fire(trendDown, PriceTrendSell)
	fire(trendUp && highVolume, PriceTrendBuyVolume)
	fire(trendDown && highVolume, PriceTrendSellVolume)
	fire(trendUp && volumeSurge, PriceTrendBuyVolumePct)
	fire(trendDown && volumeSurge, PriceTrendSellVolumePct)

	if gap, ok := classifyGap(res, i, cfg); ok {
		tags = append(tags, gap)
	}

	fire(f.ContinuousUp >= cfg.ContinuousUp, ContinuousUpBuy)
	fire(f.ContinuousDown >= cfg.ContinuousDown, ContinuousDownSell)

	closeV := indicator.Some(cur.Close)
	fire(indicator.GT(closeV, f.SMAShort), SMA50UpTrend)
	fire(indicator.LT(closeV, f.SMAShort), SMA50DownTrend)
	fire(indicator.GT(closeV, f.SMALong) && indicator.GT(f.SMAShort, f.SMALong), SMA50200UpTrend)
	fire(indicator.LT(closeV, f.SMALong) && indicator.LT(f.SMAShort, f.SMALong), SMA50200DownTrend)

	fire(cur.Close > cur.Open && cur.Open > prev.Close, NewBuy)
	fire(cur.Close < cur.Open && cur.Open < prev.Close, NewSell)

	fire(f.PriceChangePct.Valid && f.VolumeChangePct.Valid &&
		math.Abs(f.PriceChangePct.Float) > cfg.PivotPriceChange &&
		math.Abs(f.VolumeChangePct.Float) > cfg.PivotVolumeChange, NewPivot)

	fire(len(tags) > cfg.KeyPivotMinTags, KeyPivot)

	if tags == nil {
		return Set{}
	}
	return tags
}

var zero = indicator.Some(0)

// deviation returns (metric - avg)/avg*100. ok is false when either side
// is absent or the average is zero.
func deviation(metric, avg indicator.Value) (float64, bool) {
	if !metric.Valid || !avg.Valid || avg.Float == 0 {
		return 0, false
	}
	return (metric.Float - avg.Float) / avg.Float * 100, true
}

func aboveAverageVolume(vol int64, avg indicator.Value) bool {
	return indicator.GT(indicator.Some(float64(vol)), avg)
}

package indicator

import (
	"errors"

	"github.com/appigoo/stock-trend-monitor/internal/model"
)

// ErrInsufficientData is returned when a series has fewer than two bars.
var ErrInsufficientData = errors.New("indicator: insufficient data (need at least 2 bars)")

// Config specifies indicator periods.
type Config struct {
	MACDFast   int
	MACDSlow   int
	MACDSignal int
	EMAFast    int
	EMASlow    int
	RSIPeriod  int
	SMAShort   int
	SMALong    int

	// VolumeWindow is the trailing window of the volume average. It averages
	// over the bars available until the window fills.
	VolumeWindow int
	// ChangeWindow is the window of the price/volume change-% averages.
	ChangeWindow int

	Aux AuxConfig
}

// DefaultConfig returns the standard periods: MACD(12,26,9), EMA 5/10,
// RSI 14, SMA 50/200 and 5-bar volume / change averages.
func DefaultConfig() Config {
	return Config{
		MACDFast:     12,
		MACDSlow:     26,
		MACDSignal:   9,
		EMAFast:      5,
		EMASlow:      10,
		RSIPeriod:    14,
		SMAShort:     50,
		SMALong:      200,
		VolumeWindow: 5,
		ChangeWindow: 5,
		Aux:          DefaultAuxConfig(),
	}
}

// Fields holds every derived value for one bar. Fields never mutate the
// underlying Bar.
type Fields struct {
	PriceChangePct  Value `json:"price_change_pct"`
	VolumeChangePct Value `json:"volume_change_pct"`
	PriceChangeAvg  Value `json:"price_change_avg"`
	VolumeChangeAvg Value `json:"volume_change_avg"`
	VolumeAvg       Value `json:"volume_avg"`
	MACD            Value `json:"macd"`
	Signal          Value `json:"signal"`
	Histogram       Value `json:"histogram"`
	EMAFast         Value `json:"ema_fast"`
	EMASlow         Value `json:"ema_slow"`
	RSI             Value `json:"rsi"`
	SMAShort        Value `json:"sma_short"`
	SMALong         Value `json:"sma_long"`
	ContinuousUp    int   `json:"continuous_up"`
	ContinuousDown  int   `json:"continuous_down"`
	ADX             Value `json:"adx"`
	CCI             Value `json:"cci"`
	ROC             Value `json:"roc"`
	StochK          Value `json:"stoch_k"`
	StochD          Value `json:"stoch_d"`
}

// Result pairs a series with its per-bar Fields (aligned 1:1 by index).
type Result struct {
	Series model.Series
	Fields []Fields
}

// Len returns the number of bars.
func (r *Result) Len() int { return len(r.Series.Bars) }

// Bar returns bar i.
func (r *Result) Bar(i int) model.Bar { return r.Series.Bars[i] }

// Compute derives all indicator fields for the series. It is a pure function
// of its input: computing the same series twice yields identical Fields.
func Compute(s model.Series, cfg Config) (*Result, error) {
	n := len(s.Bars)
	if n < 2 {
		return nil, ErrInsufficientData
	}

	macd := NewMACD(cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
	emaFast := NewEMA(cfg.EMAFast)
	emaSlow := NewEMA(cfg.EMASlow)
	rsi := NewRSI(cfg.RSIPeriod)
	smaShort := NewSMA(cfg.SMAShort)
	smaLong := NewSMA(cfg.SMALong)
	volAvg := NewRollingMean(cfg.VolumeWindow, 1)
	priceChgAvg := NewSMA(cfg.ChangeWindow)
	volChgAvg := NewSMA(cfg.ChangeWindow)

	fields := make([]Fields, n)
	for i, b := range s.Bars {
		f := &fields[i]

		macd.Update(b.Close)
		emaFast.Update(b.Close)
		emaSlow.Update(b.Close)
		rsi.Update(b.Close)
		smaShort.Update(b.Close)
		smaLong.Update(b.Close)
		volAvg.Update(float64(b.Volume))

		f.MACD = read(macd)
		f.Signal = Some(macd.Signal())
		f.Histogram = Some(macd.Histogram())
		f.EMAFast = read(emaFast)
		f.EMASlow = read(emaSlow)
		f.RSI = read(rsi)
		f.SMAShort = read(smaShort)
		f.SMALong = read(smaLong)
		f.VolumeAvg = read(volAvg)

		if i == 0 {
			continue
		}
		prev := s.Bars[i-1]

		f.PriceChangePct = pctChange(prev.Close, b.Close)
		f.VolumeChangePct = pctChange(float64(prev.Volume), float64(b.Volume))
		f.PriceChangeAvg = feedChange(priceChgAvg, f.PriceChangePct)
		f.VolumeChangeAvg = feedChange(volChgAvg, f.VolumeChangePct)

		switch {
		case b.Close > prev.Close:
			f.ContinuousUp = fields[i-1].ContinuousUp + 1
		case b.Close < prev.Close:
			f.ContinuousDown = fields[i-1].ContinuousDown + 1
		}
	}

	computeAux(s, cfg.Aux, fields)

	return &Result{Series: s, Fields: fields}, nil
}

// pctChange returns (cur-prev)/prev*100, absent when prev is zero.
func pctChange(prev, cur float64) Value {
	if prev == 0 {
		return None
	}
	return Some((cur - prev) / prev * 100)
}

// feedChange pushes a change reading into its rolling average. An absent
// reading breaks the window, so the average restarts its warm-up.
func feedChange(avg *SMA, v Value) Value {
	if !v.Valid {
		avg.Reset()
		return None
	}
	avg.Update(v.Float)
	return read(avg)
}

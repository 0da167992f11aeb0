package indicator

import (
	talib "github.com/markcheno/go-talib"

	"github.com/appigoo/stock-trend-monitor/internal/model"
)

// AuxConfig specifies the display-only indicators computed with TA-Lib.
// None of them feed the signal rules.
type AuxConfig struct {
	ADXPeriod  int
	CCIPeriod  int
	ROCPeriod  int
	StochFastK int
	StochSlowK int
	StochSlowD int
}

// DefaultAuxConfig returns ADX(14), CCI(20), ROC(12), Stochastic(14,3,3).
func DefaultAuxConfig() AuxConfig {
	return AuxConfig{
		ADXPeriod:  14,
		CCIPeriod:  20,
		ROCPeriod:  12,
		StochFastK: 14,
		StochSlowK: 3,
		StochSlowD: 3,
	}
}

// computeAux fills the auxiliary fields. TA-Lib zero-fills its lookback
// region, so each output is only marked valid past that lookback, and a
// function is skipped entirely when the series is too short for it.
func computeAux(s model.Series, cfg AuxConfig, fields []Fields) {
	n := len(s.Bars)
	highs, lows, closes := s.Highs(), s.Lows(), s.Closes()

	if p := cfg.ADXPeriod; p > 1 {
		lookback := 2*p - 1
		if n > lookback {
			fill(fields, talib.Adx(highs, lows, closes, p), lookback, func(f *Fields, v Value) { f.ADX = v })
		}
	}
	if p := cfg.CCIPeriod; p > 1 {
		lookback := p - 1
		if n > lookback {
			fill(fields, talib.Cci(highs, lows, closes, p), lookback, func(f *Fields, v Value) { f.CCI = v })
		}
	}
	if p := cfg.ROCPeriod; p > 0 {
		lookback := p
		if n > lookback {
			fill(fields, talib.Roc(closes, p), lookback, func(f *Fields, v Value) { f.ROC = v })
		}
	}
	if cfg.StochFastK > 0 && cfg.StochSlowK > 0 && cfg.StochSlowD > 0 {
		lookback := (cfg.StochFastK - 1) + (cfg.StochSlowK - 1) + (cfg.StochSlowD - 1)
		if n > lookback {
			k, d := talib.Stoch(highs, lows, closes, cfg.StochFastK, cfg.StochSlowK, talib.SMA, cfg.StochSlowD, talib.SMA)
			fill(fields, k, lookback, func(f *Fields, v Value) { f.StochK = v })
			fill(fields, d, lookback, func(f *Fields, v Value) { f.StochD = v })
		}
	}
}

func fill(fields []Fields, out []float64, lookback int, set func(*Fields, Value)) {
	for i := lookback; i < len(out) && i < len(fields); i++ {
		set(&fields[i], Some(out[i]))
	}
}

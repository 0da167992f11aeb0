package model

import "time"

// Bar is one OHLCV observation for a single ticker.
// Bars are immutable once handed out by a provider.
type Bar struct {
	TS     time.Time `json:"ts"` // bar start time (UTC)
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Series is a chronologically ordered, append-only run of bars for one
// ticker at one interval. Index 0 is the oldest bar.
type Series struct {
	Ticker   string `json:"ticker"`
	Interval string `json:"interval"`
	Bars     []Bar  `json:"bars"`
}

// Len returns the number of bars.
func (s Series) Len() int { return len(s.Bars) }

// Last returns the most recent bar. ok is false for an empty series.
func (s Series) Last() (Bar, bool) {
	if len(s.Bars) == 0 {
		return Bar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// Closes returns the close column.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Highs returns the high column.
func (s Series) Highs() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.High
	}
	return out
}

// Lows returns the low column.
func (s Series) Lows() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Low
	}
	return out
}

// Append adds bars that are strictly newer than the current last bar and
// returns the number accepted. Out-of-order or duplicate bars are dropped,
// which keeps timestamps unique and ascending.
func (s *Series) Append(bars ...Bar) int {
	added := 0
	for _, b := range bars {
		if n := len(s.Bars); n > 0 && !b.TS.After(s.Bars[n-1].TS) {
			continue
		}
		s.Bars = append(s.Bars, b)
		added++
	}
	return added
}

// Package signal classifies each bar of an indicator result into a set of
// named boolean facts (tags).
//
// The Tag enumeration is the single authoritative catalogue: the classifier
// fires tags from it and the success-rate evaluator buckets by it, so the
// bullish/bearish partition lives in exactly one place (Tag.Direction).
package signal

import (
	"encoding/json"
	"fmt"
)

// Tag is one entry of the closed signal catalogue.
type Tag int

// Catalogue order is the display order of a bar's tag set.
const (
	VolumePrice Tag = iota
	LowAboveHigh
	HighBelowLow
	MACDBuy
	MACDSell
	EMABuy
	EMASell
	PriceTrendBuy
	PriceTrendSell
	PriceTrendBuyVolume
	PriceTrendSellVolume
	PriceTrendBuyVolumePct
	PriceTrendSellVolumePct
	UpGapCommon
	UpGapBreakaway
	UpGapRunaway
	UpGapExhaustion
	DownGapCommon
	DownGapBreakaway
	DownGapRunaway
	DownGapExhaustion
	ContinuousUpBuy
	ContinuousDownSell
	SMA50UpTrend
	SMA50DownTrend
	SMA50200UpTrend
	SMA50200DownTrend
	NewBuy
	NewSell
	NewPivot
	KeyPivot

	numTags
)

var tagNames = [numTags]string{
	VolumePrice:             "Volume-Price",
	LowAboveHigh:            "Low>High",
	HighBelowLow:            "High<Low",
	MACDBuy:                 "MACD-Buy",
	MACDSell:                "MACD-Sell",
	EMABuy:                  "EMA-Buy",
	EMASell:                 "EMA-Sell",
	PriceTrendBuy:           "Price-Trend-Buy",
	PriceTrendSell:          "Price-Trend-Sell",
	PriceTrendBuyVolume:     "Price-Trend-Buy (Volume)",
	PriceTrendSellVolume:    "Price-Trend-Sell (Volume)",
	PriceTrendBuyVolumePct:  "Price-Trend-Buy (Volume%)",
	PriceTrendSellVolumePct: "Price-Trend-Sell (Volume%)",
	UpGapCommon:             "Common-Up-Gap",
	UpGapBreakaway:          "Breakaway-Up-Gap",
	UpGapRunaway:            "Runaway-Up-Gap",
	UpGapExhaustion:         "Exhaustion-Up-Gap",
	DownGapCommon:           "Common-Down-Gap",
	DownGapBreakaway:        "Breakaway-Down-Gap",
	DownGapRunaway:          "Runaway-Down-Gap",
	DownGapExhaustion:       "Exhaustion-Down-Gap",
	ContinuousUpBuy:         "Continuous-Up-Buy",
	ContinuousDownSell:      "Continuous-Down-Sell",
	SMA50UpTrend:            "SMA50-Up-Trend",
	SMA50DownTrend:          "SMA50-Down-Trend",
	SMA50200UpTrend:         "SMA50-200-Up-Trend",
	SMA50200DownTrend:       "SMA50-200-Down-Trend",
	NewBuy:                  "New-Buy",
	NewSell:                 "New-Sell",
	NewPivot:                "New-Pivot",
	KeyPivot:                "Key-Pivot",
}

// Direction is the move a tag predicts for the next bar's close.
type Direction int

const (
	Neutral Direction = iota
	Bullish
	Bearish
)

func (d Direction) String() string {
	switch d {
	case Bullish:
		return "bullish"
	case Bearish:
		return "bearish"
	default:
		return "neutral"
	}
}

// MarshalJSON encodes the direction by name.
func (d Direction) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

// UnmarshalJSON decodes a direction by name.
func (d *Direction) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "bullish":
		*d = Bullish
	case "bearish":
		*d = Bearish
	case "neutral":
		*d = Neutral
	default:
		return fmt.Errorf("signal: unknown direction %q", s)
	}
	return nil
}

// Direction returns the tag's side of the bullish/bearish partition.
// Exhaustion gaps predict a reversal, so they sit opposite their gap side.
func (t Tag) Direction() Direction {
	switch t {
	case LowAboveHigh, MACDBuy, EMABuy,
		PriceTrendBuy, PriceTrendBuyVolume, PriceTrendBuyVolumePct,
		UpGapCommon, UpGapBreakaway, UpGapRunaway, DownGapExhaustion,
		ContinuousUpBuy, SMA50UpTrend, SMA50200UpTrend, NewBuy:
		return Bullish
	case HighBelowLow, MACDSell, EMASell,
		PriceTrendSell, PriceTrendSellVolume, PriceTrendSellVolumePct,
		DownGapCommon, DownGapBreakaway, DownGapRunaway, UpGapExhaustion,
		ContinuousDownSell, SMA50DownTrend, SMA50200DownTrend, NewSell:
		return Bearish
	default:
		return Neutral
	}
}

func (t Tag) String() string {
	if t < 0 || t >= numTags {
		return fmt.Sprintf("Tag(%d)", int(t))
	}
	return tagNames[t]
}

// MarshalJSON encodes the tag by display name.
func (t Tag) MarshalJSON() ([]byte, error) { return json.Marshal(t.String()) }

// UnmarshalJSON decodes a tag from its display name.
func (t *Tag) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	tag, ok := ParseTag(s)
	if !ok {
		return fmt.Errorf("signal: unknown tag %q", s)
	}
	*t = tag
	return nil
}

// ParseTag looks a tag up by display name.
func ParseTag(s string) (Tag, bool) {
	for i, name := range tagNames {
		if name == s {
			return Tag(i), true
		}
	}
	return 0, false
}

// All returns the full catalogue in display order.
func All() []Tag {
	out := make([]Tag, numTags)
	for i := range out {
		out[i] = Tag(i)
	}
	return out
}

// Set is the ordered tag set of one bar.
type Set []Tag

// Has reports whether the set contains t.
func (s Set) Has(t Tag) bool {
	for _, x := range s {
		if x == t {
			return true
		}
	}
	return false
}

// Strings returns the display names in set order.
func (s Set) Strings() []string {
	out := make([]string, len(s))
	for i, t := range s {
		out[i] = t.String()
	}
	return out
}

package signal

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/appigoo/stock-trend-monitor/internal/indicator"
	"github.com/appigoo/stock-trend-monitor/internal/model"
)

type ohlcv struct {
	o, h, l, c float64
	v          int64
}

func compute(t *testing.T, rows []ohlcv) *indicator.Result {
	t.Helper()
	start := time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC)
	s := model.Series{Ticker: "TEST", Interval: "15m"}
	for i, r := range rows {
		s.Bars = append(s.Bars, model.Bar{
			TS:   start.Add(time.Duration(i) * 15 * time.Minute),
			Open: r.o, High: r.h, Low: r.l, Close: r.c, Volume: r.v,
		})
	}
	res, err := indicator.Compute(s, indicator.DefaultConfig())
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	return res
}

// threeBar is the up-then-down sequence: close 100 → 105 → 95 with rising volume.
var threeBar = []ohlcv{
	{100, 101, 99, 100, 1000},
	{101, 106, 100, 105, 2000},
	{104, 104, 94, 95, 3000},
}

func TestClassify_UpThenDown(t *testing.T) {
	res := compute(t, threeBar)
	sets := Classify(res, DefaultConfig())

	if len(sets[0]) != 0 {
		t.Errorf("bar 0 must carry no tags, got %v", sets[0].Strings())
	}

	wantUp := Set{MACDBuy, EMABuy, PriceTrendBuy, PriceTrendBuyVolume, PriceTrendBuyVolumePct, NewBuy}
	if !reflect.DeepEqual(sets[1], wantUp) {
		t.Errorf("bar 1: got %v, want %v", sets[1].Strings(), wantUp.Strings())
	}

	wantDown := Set{MACDSell, EMASell, PriceTrendSell, PriceTrendSellVolume, PriceTrendSellVolumePct, NewSell}
	if !reflect.DeepEqual(sets[2], wantDown) {
		t.Errorf("bar 2: got %v, want %v", sets[2].Strings(), wantDown.Strings())
	}
}

func TestLatest_MatchesHistory(t *testing.T) {
	res := compute(t, threeBar)
	cfg := DefaultConfig()
	all := Classify(res, cfg)
	if !reflect.DeepEqual(Latest(res, cfg), all[len(all)-1]) {
		t.Error("latest-bar evaluation diverges from the history evaluation")
	}
}

func TestClassify_Idempotent(t *testing.T) {
	res := compute(t, threeBar)
	a := Classify(res, DefaultConfig())
	b := Classify(res, DefaultConfig())
	if !reflect.DeepEqual(a, b) {
		t.Error("Classify is not deterministic")
	}
}

func TestGap_LowVolumeIsCommon(t *testing.T) {
	// open 110 vs previous close 100 → gap 10% > 1%, but volume 500 sits
	// below the trailing average (1000+1000+500)/3.
	res := compute(t, []ohlcv{
		{100, 101, 99, 100, 1000},
		{100, 101, 99, 100, 1000},
		{110, 115, 109, 112, 500},
	})
	gap, ok := GapPct(res, 2)
	if !ok || math.Abs(gap-10) > 1e-9 {
		t.Fatalf("gap = %v (ok=%v), want 10", gap, ok)
	}
	tags := ClassifyBar(res, 2, DefaultConfig())
	if !tags.Has(UpGapCommon) {
		t.Errorf("expected %s, got %v", UpGapCommon, tags.Strings())
	}
	for _, g := range []Tag{UpGapBreakaway, UpGapRunaway, UpGapExhaustion} {
		if tags.Has(g) {
			t.Errorf("unexpected %s", g)
		}
	}
}

func TestGap_HighVolumeBreakaway(t *testing.T) {
	res := compute(t, []ohlcv{
		{100, 101, 99, 100, 1000},
		{100, 101, 99, 100, 1000},
		{110, 115, 109, 112, 5000},
	})
	if tags := ClassifyBar(res, 2, DefaultConfig()); !tags.Has(UpGapBreakaway) {
		t.Errorf("expected %s, got %v", UpGapBreakaway, tags.Strings())
	}
}

func TestGap_ExhaustionUsesNextBar(t *testing.T) {
	res := compute(t, []ohlcv{
		{100, 101, 99, 100, 1000},
		{100, 101, 99, 100, 1000},
		{110, 115, 109, 112, 5000},
		{111, 112, 104, 105, 4000},
	})
	if tags := ClassifyBar(res, 2, DefaultConfig()); !tags.Has(UpGapExhaustion) {
		t.Errorf("expected %s, got %v", UpGapExhaustion, tags.Strings())
	}
}

func TestGap_DownRunaway(t *testing.T) {
	// Falling closes keep the 5-bar trailing mean dropping; bar 6 gaps down
	// on heavy volume and bar 7 keeps falling (no reversal).
	res := compute(t, []ohlcv{
		{120, 121, 119, 120, 1000},
		{119, 120, 118, 119, 1000},
		{118, 119, 117, 118, 1000},
		{117, 118, 116, 117, 1000},
		{116, 117, 115, 116, 1000},
		{115, 116, 114, 115, 1000},
		{110, 111, 108, 109, 6000},
		{108, 109, 105, 106, 6000},
	})
	if tags := ClassifyBar(res, 6, DefaultConfig()); !tags.Has(DownGapRunaway) {
		t.Errorf("expected %s, got %v", DownGapRunaway, tags.Strings())
	}
}

func TestClassify_AbsentIndicatorsNeverFire(t *testing.T) {
	res := compute(t, threeBar)
	for i, set := range Classify(res, DefaultConfig()) {
		for _, tag := range []Tag{SMA50UpTrend, SMA50DownTrend, SMA50200UpTrend, SMA50200DownTrend, VolumePrice} {
			if set.Has(tag) {
				t.Errorf("bar %d: %s fired without its indicator", i, tag)
			}
		}
	}
}

func TestClassify_ContinuousAndKeyPivot(t *testing.T) {
	rows := []ohlcv{{100, 101, 99, 100, 1000}}
	for i := 1; i <= 4; i++ {
		c := 100 + float64(i)*2
		rows = append(rows, ohlcv{c - 1, c + 1, c - 1.5, c, 1000 + int64(i)*500})
	}
	res := compute(t, rows)

	cfg := DefaultConfig()
	if tags := ClassifyBar(res, 3, cfg); !tags.Has(ContinuousUpBuy) {
		t.Errorf("bar 3: expected %s after 3 higher closes, got %v", ContinuousUpBuy, tags.Strings())
	}
	if tags := ClassifyBar(res, 2, cfg); tags.Has(ContinuousUpBuy) {
		t.Errorf("bar 2: %s fired after only 2 higher closes", ContinuousUpBuy)
	}

	cfg.KeyPivotMinTags = 2
	tags := ClassifyBar(res, 4, cfg)
	if !tags.Has(KeyPivot) || tags[len(tags)-1] != KeyPivot {
		t.Errorf("expected trailing %s, got %v", KeyPivot, tags.Strings())
	}
}

func TestClassify_NewPivot(t *testing.T) {
	res := compute(t, []ohlcv{
		{100, 101, 99, 100, 1000},
		{100, 111, 99, 110, 3000},
	})
	if tags := ClassifyBar(res, 1, DefaultConfig()); !tags.Has(NewPivot) {
		t.Errorf("expected %s (10%% price, 200%% volume), got %v", NewPivot, tags.Strings())
	}
}

func TestTagCatalogue(t *testing.T) {
	for _, tag := range All() {
		name := tag.String()
		back, ok := ParseTag(name)
		if !ok || back != tag {
			t.Errorf("tag %d (%q) does not parse back", tag, name)
		}
	}
	if UpGapExhaustion.Direction() != Bearish || DownGapExhaustion.Direction() != Bullish {
		t.Error("exhaustion gaps must predict a reversal")
	}
	if VolumePrice.Direction() != Neutral || KeyPivot.Direction() != Neutral {
		t.Error("magnitude-only tags must be neutral")
	}
}

func TestClassify_LowAboveHighAndHighBelowLow(t *testing.T) {
	res := compute(t, []ohlcv{
		{100, 101, 99, 100, 1000},
		{103, 105, 102, 104, 1000}, // low 102 > previous high 101
		{98, 99, 96, 97, 1000},     // high 99 < previous low 102
	})
	cfg := DefaultConfig()

	up := ClassifyBar(res, 1, cfg)
	if !up.Has(LowAboveHigh) || up.Has(HighBelowLow) {
		t.Errorf("bar 1: %v", up.Strings())
	}
	down := ClassifyBar(res, 2, cfg)
	if !down.Has(HighBelowLow) || down.Has(LowAboveHigh) {
		t.Errorf("bar 2: %v", down.Strings())
	}
}

func TestClassify_VolumePrice(t *testing.T) {
	// Closes rise ~1% a bar on flat volume, then bar 5 jumps 10% on 5x
	// volume. At bar 5 the 5-change averages are
	//   price  (1 + 0.990 + 0.980 + 0.971 + 10) / 5 ≈ 2.79  → deviation ≈ 259%
	//   volume (0 + 0 + 0 + 0 + 400) / 5 = 80               → deviation = 400%
	// which clear the 80% / 200% thresholds.
	rows := []ohlcv{
		{100, 100.5, 99.5, 100, 1000},
		{100, 101.5, 99.5, 101, 1000},
		{101, 102.5, 100.5, 102, 1000},
		{102, 103.5, 101.5, 103, 1000},
		{103, 104.5, 102.5, 104, 1000},
		{104, 115, 103.5, 114.4, 5000},
	}
	res := compute(t, rows)
	cfg := DefaultConfig()

	if tags := ClassifyBar(res, 4, cfg); tags.Has(VolumePrice) {
		t.Error("bar 4: fired before the change averages are defined")
	}
	if tags := ClassifyBar(res, 5, cfg); !tags.Has(VolumePrice) {
		t.Errorf("bar 5: expected %s, got %v", VolumePrice, tags.Strings())
	}

	cfg.VolumeThreshold = 500
	if tags := ClassifyBar(res, 5, cfg); tags.Has(VolumePrice) {
		t.Error("fired with volume deviation below threshold")
	}
}

// trend builds n bars whose close moves by step per bar from first.
func trend(first, step float64, n int) []ohlcv {
	rows := make([]ohlcv, n)
	for i := range rows {
		c := first + step*float64(i)
		rows[i] = ohlcv{c, c + 0.5, c - 0.5, c, 1000}
	}
	return rows
}

func TestClassify_SMA50Trend(t *testing.T) {
	cfg := DefaultConfig()

	// close 159 vs SMA50 of closes 110..159 = 134.5
	up := compute(t, trend(100, 1, 60))
	tags := ClassifyBar(up, 59, cfg)
	if !tags.Has(SMA50UpTrend) || tags.Has(SMA50DownTrend) {
		t.Errorf("rising: %v", tags.Strings())
	}
	if tags.Has(SMA50200UpTrend) {
		t.Error("SMA50-200 fired without 200 bars")
	}
	if ClassifyBar(up, 48, cfg).Has(SMA50UpTrend) {
		t.Error("SMA50 fired during warm-up")
	}

	down := compute(t, trend(200, -1, 60))
	if tags := ClassifyBar(down, 59, cfg); !tags.Has(SMA50DownTrend) || tags.Has(SMA50UpTrend) {
		t.Errorf("falling: %v", tags.Strings())
	}
}

func TestClassify_SMA50200Trend(t *testing.T) {
	cfg := DefaultConfig()

	// Bar 209: close 309, SMA50 284.5, SMA200 209.5.
	up := compute(t, trend(100, 1, 210))
	if tags := ClassifyBar(up, 209, cfg); !tags.Has(SMA50200UpTrend) || tags.Has(SMA50200DownTrend) {
		t.Errorf("rising: %v", tags.Strings())
	}
	if ClassifyBar(up, 198, cfg).Has(SMA50200UpTrend) {
		t.Error("fired before SMA200 is defined")
	}
	if !ClassifyBar(up, 199, cfg).Has(SMA50200UpTrend) {
		t.Error("bar 199 has a full SMA200 window")
	}

	// Bar 209: close 191, SMA50 215.5, SMA200 290.5.
	down := compute(t, trend(400, -1, 210))
	if tags := ClassifyBar(down, 209, cfg); !tags.Has(SMA50200DownTrend) || tags.Has(SMA50200UpTrend) {
		t.Errorf("falling: %v", tags.Strings())
	}
}

func TestGap_UpRunaway(t *testing.T) {
	// Bar 6 gaps up 4.8% on volume 6000 vs average 2000; the 5-bar close
	// mean rises from 103 to 105 and bar 7 keeps climbing.
	res := compute(t, []ohlcv{
		{100, 101, 99, 100, 1000},
		{101, 102, 100, 101, 1000},
		{102, 103, 101, 102, 1000},
		{103, 104, 102, 103, 1000},
		{104, 105, 103, 104, 1000},
		{105, 106, 104, 105, 1000},
		{110, 112, 109, 111, 6000},
		{112, 115, 111, 114, 6000},
	})
	if tags := ClassifyBar(res, 6, DefaultConfig()); !tags.Has(UpGapRunaway) {
		t.Errorf("expected %s, got %v", UpGapRunaway, tags.Strings())
	}
}

func TestGap_DownBreakaway(t *testing.T) {
	// open 90 vs close 100 → -10%; volume 5000 over average 2333; low 85
	// undercuts the previous low 99.
	res := compute(t, []ohlcv{
		{100, 101, 99, 100, 1000},
		{100, 101, 99, 100, 1000},
		{90, 91, 85, 88, 5000},
	})
	if tags := ClassifyBar(res, 2, DefaultConfig()); !tags.Has(DownGapBreakaway) {
		t.Errorf("expected %s, got %v", DownGapBreakaway, tags.Strings())
	}
}

func TestGap_DownExhaustion(t *testing.T) {
	// Same gap, but bar 3 closes back above the gap bar's close.
	res := compute(t, []ohlcv{
		{100, 101, 99, 100, 1000},
		{100, 101, 99, 100, 1000},
		{90, 91, 85, 88, 5000},
		{89, 96, 88, 95, 4000},
	})
	tags := ClassifyBar(res, 2, DefaultConfig())
	if !tags.Has(DownGapExhaustion) || tags.Has(DownGapBreakaway) {
		t.Errorf("expected only %s, got %v", DownGapExhaustion, tags.Strings())
	}
}

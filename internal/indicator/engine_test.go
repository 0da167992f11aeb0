package indicator

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/appigoo/stock-trend-monitor/internal/model"
)

func makeSeries(closes []float64, volumes []int64) model.Series {
	start := time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC)
	s := model.Series{Ticker: "TEST", Interval: "15m"}
	for i, c := range closes {
		vol := int64(1000)
		if volumes != nil {
			vol = volumes[i]
		}
		s.Bars = append(s.Bars, model.Bar{
			TS:     start.Add(time.Duration(i) * 15 * time.Minute),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: vol,
		})
	}
	return s
}

func TestCompute_InsufficientData(t *testing.T) {
	for _, n := range []int{0, 1} {
		closes := make([]float64, n)
		for i := range closes {
			closes[i] = 100
		}
		res, err := Compute(makeSeries(closes, nil), DefaultConfig())
		if !errors.Is(err, ErrInsufficientData) {
			t.Errorf("n=%d: expected ErrInsufficientData, got %v", n, err)
		}
		if res != nil {
			t.Errorf("n=%d: expected nil result", n)
		}
	}
}

func TestCompute_ChangeFields(t *testing.T) {
	res, err := Compute(makeSeries([]float64{100, 110, 99}, []int64{1000, 1500, 0}), DefaultConfig())
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	if res.Fields[0].PriceChangePct.Valid || res.Fields[0].VolumeChangePct.Valid {
		t.Error("bar 0 must have no change fields")
	}
	assertClose(t, "price change 1", res.Fields[1].PriceChangePct.Float, 10, 1e-9)
	assertClose(t, "volume change 1", res.Fields[1].VolumeChangePct.Float, 50, 1e-9)
	assertClose(t, "price change 2", res.Fields[2].PriceChangePct.Float, -10, 1e-9)
	assertClose(t, "volume change 2", res.Fields[2].VolumeChangePct.Float, -100, 1e-9)

	// 5-bar change averages are not ready with only 2 changes.
	if res.Fields[2].PriceChangeAvg.Valid {
		t.Error("price change average must be absent before 5 changes")
	}
}

func TestCompute_WarmupAbsence(t *testing.T) {
	closes := make([]float64, 210)
	for i := range closes {
		closes[i] = 100 + float64(i%7)
	}
	res, err := Compute(makeSeries(closes, nil), DefaultConfig())
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	for i, f := range res.Fields {
		if got, want := f.SMALong.Valid, i >= 199; got != want {
			t.Fatalf("bar %d: SMA200 valid=%v, want %v", i, got, want)
		}
		if got, want := f.SMAShort.Valid, i >= 49; got != want {
			t.Fatalf("bar %d: SMA50 valid=%v, want %v", i, got, want)
		}
		if got, want := f.RSI.Valid, i >= 14; got != want {
			t.Fatalf("bar %d: RSI valid=%v, want %v", i, got, want)
		}
		if got, want := f.PriceChangeAvg.Valid, i >= 5; got != want {
			t.Fatalf("bar %d: change avg valid=%v, want %v", i, got, want)
		}
		if !f.MACD.Valid || !f.EMAFast.Valid || !f.EMASlow.Valid || !f.VolumeAvg.Valid {
			t.Fatalf("bar %d: EMA-based fields must be defined from bar 0", i)
		}
	}
	if !res.Fields[209].ADX.Valid || !res.Fields[209].CCI.Valid || !res.Fields[209].StochK.Valid {
		t.Error("auxiliary indicators should be defined on a long series")
	}
	if res.Fields[0].ADX.Valid || res.Fields[0].ROC.Valid {
		t.Error("auxiliary indicators must be absent inside their lookback")
	}
}

func TestCompute_ContinuousRuns(t *testing.T) {
	closes := []float64{10, 11, 12, 12, 13, 12, 11, 10, 11}
	res, err := Compute(makeSeries(closes, nil), DefaultConfig())
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	wantUp := []int{0, 1, 2, 0, 1, 0, 0, 0, 1}
	wantDown := []int{0, 0, 0, 0, 0, 1, 2, 3, 0}
	for i, f := range res.Fields {
		if f.ContinuousUp != wantUp[i] || f.ContinuousDown != wantDown[i] {
			t.Errorf("bar %d: up=%d down=%d, want up=%d down=%d",
				i, f.ContinuousUp, f.ContinuousDown, wantUp[i], wantDown[i])
		}
		if f.ContinuousUp > 0 && !(closes[i] > closes[i-1]) {
			t.Errorf("bar %d: up run without a higher close", i)
		}
	}
}

func TestCompute_Idempotent(t *testing.T) {
	closes := make([]float64, 60)
	vols := make([]int64, 60)
	for i := range closes {
		closes[i] = 100 + float64((i*37)%11) - float64(i%3)
		vols[i] = int64(1000 + (i*53)%400)
	}
	s := makeSeries(closes, vols)

	a, err := Compute(s, DefaultConfig())
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	b, err := Compute(s, DefaultConfig())
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !reflect.DeepEqual(a.Fields, b.Fields) {
		t.Fatal("Compute is not deterministic for the same series")
	}
}

func TestValueComparisons_AbsentIsFalse(t *testing.T) {
	one := Some(1)
	if GT(one, None) || LT(None, one) || GE(None, None) || LE(one, None) {
		t.Error("comparisons involving an absent value must be false")
	}
	if !GT(Some(2), one) || !LE(one, one) {
		t.Error("comparisons of defined values are wrong")
	}
	if None.Ptr() != nil || *one.Ptr() != 1 {
		t.Error("Ptr mismatch")
	}
}

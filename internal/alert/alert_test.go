package alert

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/appigoo/stock-trend-monitor/internal/indicator"
	"github.com/appigoo/stock-trend-monitor/internal/signal"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestDecider(cfg Config) (*Decider, *fakeClock, *MemoryStore) {
	store := NewMemoryStore()
	clock := &fakeClock{t: time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC)}
	d := NewDecider(cfg, store)
	d.now = clock.now
	return d, clock, store
}

func TestTriggered(t *testing.T) {
	d, _, _ := newTestDecider(DefaultConfig())

	cases := []struct {
		name string
		in   Input
		want bool
	}{
		{"quiet", Input{PriceChangePct: indicator.Some(1), VolumeChangePct: indicator.Some(10)}, false},
		{"tag only", Input{Tags: signal.Set{signal.NewBuy}}, true},
		{"both thresholds", Input{PriceChangePct: indicator.Some(-85), VolumeChangePct: indicator.Some(250)}, true},
		{"price only", Input{PriceChangePct: indicator.Some(90), VolumeChangePct: indicator.Some(50)}, false},
		{"absent change", Input{PriceChangePct: indicator.None, VolumeChangePct: indicator.Some(500)}, false},
	}
	for _, tc := range cases {
		if got := d.Triggered(tc.in); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestDecide_Debounce(t *testing.T) {
	d, clock, store := newTestDecider(DefaultConfig())
	ctx := context.Background()
	in := Input{Ticker: "TSLA", PriceChangePct: indicator.Some(2.5), VolumeChangePct: indicator.Some(40),
		Tags: signal.Set{signal.MACDBuy, signal.NewBuy}}

	dec, err := d.Decide(ctx, in)
	if err != nil {
		t.Fatal(err)
	}
	if !dec.Send || dec.Message == "" {
		t.Fatalf("first alert must be sent: %+v", dec)
	}
	first := clock.t

	clock.t = first.Add(5 * time.Minute)
	dec, _ = d.Decide(ctx, in)
	if !dec.Triggered || dec.Send {
		t.Errorf("alert within the window must be suppressed: %+v", dec)
	}
	if last, _, _ := store.LastAlert(ctx, "TSLA"); !last.Equal(first) {
		t.Errorf("suppressed alert updated the timestamp to %v", last)
	}

	clock.t = first.Add(601 * time.Second)
	dec, _ = d.Decide(ctx, in)
	if !dec.Send {
		t.Error("alert after the window must be sent")
	}
}

func TestDecide_DebounceIsPerTicker(t *testing.T) {
	d, _, _ := newTestDecider(DefaultConfig())
	ctx := context.Background()
	tags := signal.Set{signal.KeyPivot}

	if dec, _ := d.Decide(ctx, Input{Ticker: "TSLA", Tags: tags}); !dec.Send {
		t.Fatal("TSLA not sent")
	}
	if dec, _ := d.Decide(ctx, Input{Ticker: "NVDA", Tags: tags}); !dec.Send {
		t.Error("NVDA debounced by TSLA's alert")
	}
}

func TestDecide_NoDebounce(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Debounce = 0
	d, _, _ := newTestDecider(cfg)
	in := Input{Ticker: "TSLA", Tags: signal.Set{signal.NewSell}}
	for i := 0; i < 3; i++ {
		if dec, _ := d.Decide(context.Background(), in); !dec.Send {
			t.Fatalf("call %d suppressed with debounce disabled", i)
		}
	}
}

type failingStore struct{}

func (failingStore) LastAlert(context.Context, string) (time.Time, bool, error) {
	return time.Time{}, false, errors.New("down")
}
func (failingStore) SetLastAlert(context.Context, string, time.Time) error { return errors.New("down") }

func TestDecide_StoreError(t *testing.T) {
	d := NewDecider(DefaultConfig(), failingStore{})
	dec, err := d.Decide(context.Background(), Input{Ticker: "TSLA", Tags: signal.Set{signal.NewBuy}})
	if err == nil || dec.Send {
		t.Errorf("expected error and no send, got %+v, %v", dec, err)
	}
}

func TestMessage(t *testing.T) {
	msg := Message(Input{
		Ticker:          "TSLA",
		PriceChangePct:  indicator.Some(1.234),
		VolumeChangePct: indicator.None,
		Tags:            signal.Set{signal.MACDBuy, signal.UpGapCommon},
	})
	for _, want := range []string{"TSLA", "+1.23%", "n/a", "MACD-Buy", "Common-Up-Gap"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}

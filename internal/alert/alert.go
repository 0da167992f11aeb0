// Package alert reduces the latest bar of a ticker to a notify / don't-notify
// decision and an alert message, with per-ticker debouncing.
//
// The only state carried across refresh cycles is the last-alert timestamp of
// each ticker. It lives in an explicit model.AlertStateStore (in memory or in
// Redis) passed to the Decider, and a memory store starts empty on every
// process start.
package alert

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/appigoo/stock-trend-monitor/internal/indicator"
	"github.com/appigoo/stock-trend-monitor/internal/model"
	"github.com/appigoo/stock-trend-monitor/internal/signal"
)

// Config holds the alert thresholds (percent) and the debounce window.
// A zero Debounce disables debouncing.
type Config struct {
	PriceThreshold  float64
	VolumeThreshold float64
	Debounce        time.Duration
}

// DefaultConfig returns 80% / 200% thresholds and a 10-minute debounce.
func DefaultConfig() Config {
	return Config{PriceThreshold: 80, VolumeThreshold: 200, Debounce: 600 * time.Second}
}

// Input is the latest-bar view of one ticker.
type Input struct {
	Ticker          string
	PriceChangePct  indicator.Value
	VolumeChangePct indicator.Value
	Tags            signal.Set
}

// Decision is the outcome for one ticker in one cycle.
type Decision struct {
	// Triggered is true when the alert condition holds.
	Triggered bool `json:"triggered"`
	// Send is true when the alert should be delivered (triggered and not
	// debounced). Message is set only when Send is true.
	Send    bool   `json:"send"`
	Message string `json:"message,omitempty"`
}

// Decider evaluates alert conditions against a StateStore.
type Decider struct {
	cfg   Config
	store model.AlertStateStore
	now   func() time.Time
}

// NewDecider creates a decider. A nil store gets a fresh MemoryStore.
func NewDecider(cfg Config, store model.AlertStateStore) *Decider {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Decider{cfg: cfg, store: store, now: time.Now}
}

// Triggered reports whether the input meets the alert condition: both change
// percentages beyond their thresholds, or any tag fired.
func (d *Decider) Triggered(in Input) bool {
	if len(in.Tags) > 0 {
		return true
	}
	return in.PriceChangePct.Valid && in.VolumeChangePct.Valid &&
		math.Abs(in.PriceChangePct.Float) > d.cfg.PriceThreshold &&
		math.Abs(in.VolumeChangePct.Float) > d.cfg.VolumeThreshold
}

// Decide evaluates the input and, when the alert is due, records the alert
// time for the ticker. A suppressed alert updates nothing.
func (d *Decider) Decide(ctx context.Context, in Input) (Decision, error) {
	if !d.Triggered(in) {
		return Decision{}, nil
	}
	dec := Decision{Triggered: true}

	now := d.now()
	if d.cfg.Debounce > 0 {
		last, ok, err := d.store.LastAlert(ctx, in.Ticker)
		if err != nil {
			return dec, fmt.Errorf("alert: read last alert for %s: %w", in.Ticker, err)
		}
		if ok && now.Sub(last) <= d.cfg.Debounce {
			return dec, nil
		}
	}

	if err := d.store.SetLastAlert(ctx, in.Ticker, now); err != nil {
		return dec, fmt.Errorf("alert: record alert for %s: %w", in.Ticker, err)
	}
	dec.Send = true
	dec.Message = Message(in)
	return dec, nil
}

// Message renders the alert text: ticker, the latest change percentages and
// the fired tag names.
func Message(in Input) string {
	var b strings.Builder
	b.WriteString(in.Ticker)
	b.WriteString(": price ")
	b.WriteString(formatPct(in.PriceChangePct))
	b.WriteString(", volume ")
	b.WriteString(formatPct(in.VolumeChangePct))
	if len(in.Tags) > 0 {
		b.WriteString("; signals: ")
		b.WriteString(strings.Join(in.Tags.Strings(), ", "))
	}
	return b.String()
}

func formatPct(v indicator.Value) string {
	if !v.Valid {
		return "n/a"
	}
	return fmt.Sprintf("%+.2f%%", v.Float)
}

// MemoryStore is an in-process AlertStateStore.
type MemoryStore struct {
	mu   sync.Mutex
	last map[string]time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{last: make(map[string]time.Time)}
}

func (m *MemoryStore) LastAlert(_ context.Context, ticker string) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.last[ticker]
	return t, ok, nil
}

func (m *MemoryStore) SetLastAlert(_ context.Context, ticker string, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last[ticker] = t
	return nil
}

// Package notification delivers alert messages to external channels
// (log, generic webhook, Telegram, SMTP email).
package notification

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert is a stock signal notification. Message is the one-line text form;
// the remaining fields carry the same facts for transports that render
// structure. Nil percentages are unavailable.
type Alert struct {
	Level   AlertLevel
	Ticker  string
	Title   string
	Message string

	Price           float64
	PriceChangePct  *float64
	VolumeChangePct *float64
	Signals         []string
	MarketStatus    string
	At              time.Time
}

// timestamp returns At, or now when unset.
func (a Alert) timestamp() time.Time {
	if a.At.IsZero() {
		return time.Now().UTC()
	}
	return a.At.UTC()
}

// formatPct renders a signed 2-decimal percentage or "n/a".
func formatPct(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%+.2f%%", *v)
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier logs alerts instead of delivering them.
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// Multi fans an alert out to several notifiers. Every notifier is tried;
// the joined error of the failures is returned.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package notification

import (
	"context"
	"log"
	"net/http"
	"time"
)

// WebhookNotifier POSTs alerts as JSON to a generic HTTP endpoint.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier creates a webhook notifier for url.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{url: url, client: newHTTPClient()}
}

// webhookPayload is the JSON body receivers get. Absent changes are null.
type webhookPayload struct {
	Level           AlertLevel `json:"level"`
	Ticker          string     `json:"ticker"`
	Title           string     `json:"title"`
	Message         string     `json:"message"`
	Price           float64    `json:"price,omitempty"`
	PriceChangePct  *float64   `json:"price_change_pct"`
	VolumeChangePct *float64   `json:"volume_change_pct"`
	Signals         []string   `json:"signals"`
	MarketStatus    string     `json:"market_status,omitempty"`
	TS              string     `json:"ts"`
}

func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	signals := alert.Signals
	if signals == nil {
		signals = []string{}
	}
	payload := webhookPayload{
		Level:           alert.Level,
		Ticker:          alert.Ticker,
		Title:           alert.Title,
		Message:         alert.Message,
		Price:           alert.Price,
		PriceChangePct:  alert.PriceChangePct,
		VolumeChangePct: alert.VolumeChangePct,
		Signals:         signals,
		MarketStatus:    alert.MarketStatus,
		TS:              alert.timestamp().Format(time.RFC3339Nano),
	}
	if err := postJSON(ctx, w.client, "webhook", w.url, payload); err != nil {
		return err
	}
	log.Printf("[webhook] sent %s alert (%d signals)", alert.Ticker, len(alert.Signals))
	return nil
}

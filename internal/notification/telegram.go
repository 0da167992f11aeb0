package notification

import (
	"context"
	"fmt"
	"html"
	"log"
	"net/http"
	"strings"
)

// TelegramNotifier sends alerts through the Telegram Bot API as HTML
// messages.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
}

// NewTelegramNotifier creates a Telegram notifier for a bot token and a
// target chat, group or channel ID.
func NewTelegramNotifier(botToken, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  "https://api.telegram.org",
		client:   newHTTPClient(),
	}
}

func (t *TelegramNotifier) Send(ctx context.Context, alert Alert) error {
	payload := map[string]any{
		"chat_id":                  t.chatID,
		"text":                     telegramText(alert),
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	if err := postJSON(ctx, t.client, "telegram", url, payload); err != nil {
		return err
	}
	log.Printf("[telegram] sent %s alert", alert.Ticker)
	return nil
}

// telegramText renders a signal card:
//
//	⚠️ <b>TSLA</b> signal alert
//	Price 105.00 (+5.00%)
//	Volume +100.00%
//	• MACD-Buy
//	<i>market open</i>
//
// Alerts without a ticker fall back to title and message.
func telegramText(a Alert) string {
	emoji := "ℹ️"
	switch a.Level {
	case AlertWarning:
		emoji = "⚠️"
	case AlertCritical:
		emoji = "🚨"
	}

	var b strings.Builder
	if a.Ticker == "" {
		fmt.Fprintf(&b, "%s <b>%s</b>\n%s", emoji, html.EscapeString(a.Title), html.EscapeString(a.Message))
		return b.String()
	}

	fmt.Fprintf(&b, "%s <b>%s</b> %s\n", emoji, html.EscapeString(a.Ticker), html.EscapeString(a.Title))
	if a.Price > 0 {
		fmt.Fprintf(&b, "Price %.2f (%s)\n", a.Price, formatPct(a.PriceChangePct))
	} else {
		fmt.Fprintf(&b, "Price %s\n", formatPct(a.PriceChangePct))
	}
	fmt.Fprintf(&b, "Volume %s\n", formatPct(a.VolumeChangePct))
	for _, s := range a.Signals {
		fmt.Fprintf(&b, "• %s\n", html.EscapeString(s))
	}
	if a.MarketStatus != "" {
		fmt.Fprintf(&b, "<i>market %s</i>\n", html.EscapeString(a.MarketStatus))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

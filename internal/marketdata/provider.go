// Package marketdata supplies OHLCV bar series to the monitor.
//
// Provider is the boundary to the outside world: YahooProvider fetches from
// Yahoo Finance, ArchiveProvider replays bars previously archived to SQLite,
// and Cache wraps any provider with an explicit TTL cache.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/appigoo/stock-trend-monitor/internal/model"
)

// ErrNoData is returned when a provider has no usable bars (fewer than two)
// for a ticker. Callers skip the ticker for the cycle.
var ErrNoData = errors.New("marketdata: no data")

// Provider fetches bars and reference prices.
type Provider interface {
	// FetchBars returns the bars of ticker over period (e.g. "5d", "1mo")
	// at interval (e.g. "15m", "1d"), oldest first.
	FetchBars(ctx context.Context, ticker, period, interval string) (model.Series, error)
	// PreviousClose returns the prior session's close. ok is false when the
	// provider does not know it.
	PreviousClose(ctx context.Context, ticker string) (price float64, ok bool, err error)
}

// checkSeries enforces the two-bar minimum shared by every provider.
func checkSeries(s model.Series) (model.Series, error) {
	if s.Len() < 2 {
		return s, fmt.Errorf("%w for %s (%d bars)", ErrNoData, s.Ticker, s.Len())
	}
	return s, nil
}

// ParsePeriod converts a lookback period into a start time relative to now.
// Accepted: Nd, Nwk, Nmo, Ny, ytd, max.
func ParsePeriod(period string, now time.Time) (time.Time, error) {
	switch period {
	case "ytd":
		return time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location()), nil
	case "max":
		return time.Unix(0, 0).UTC(), nil
	}

	var n int
	var unit string
	if _, err := fmt.Sscanf(period, "%d%s", &n, &unit); err != nil || n <= 0 {
		return time.Time{}, fmt.Errorf("marketdata: invalid period %q", period)
	}
	switch unit {
	case "d":
		return now.AddDate(0, 0, -n), nil
	case "wk":
		return now.AddDate(0, 0, -7*n), nil
	case "mo":
		return now.AddDate(0, -n, 0), nil
	case "y":
		return now.AddDate(-n, 0, 0), nil
	}
	return time.Time{}, fmt.Errorf("marketdata: invalid period unit %q", period)
}

// ValidInterval reports whether interval is a bar size Yahoo serves.
func ValidInterval(interval string) bool {
	switch interval {
	case "1m", "2m", "5m", "15m", "30m", "60m", "90m", "1h", "1d", "5d", "1wk", "1mo", "3mo":
		return true
	}
	return false
}

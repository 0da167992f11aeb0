package marketdata

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/quote"
	"github.com/shopspring/decimal"

	"github.com/appigoo/stock-trend-monitor/internal/model"
)

// YahooProvider fetches bars from the Yahoo Finance chart API.
type YahooProvider struct {
	now func() time.Time
}

// NewYahooProvider creates a Yahoo Finance provider.
func NewYahooProvider() *YahooProvider {
	return &YahooProvider{now: time.Now}
}

func (y *YahooProvider) FetchBars(ctx context.Context, ticker, period, interval string) (model.Series, error) {
	if err := ctx.Err(); err != nil {
		return model.Series{}, err
	}
	if !ValidInterval(interval) {
		return model.Series{}, fmt.Errorf("yahoo: unsupported interval %q", interval)
	}
	end := y.now()
	start, err := ParsePeriod(period, end)
	if err != nil {
		return model.Series{}, err
	}

	iter := chart.Get(&chart.Params{
		Symbol:   ticker,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.Interval(interval),
	})

	s := model.Series{Ticker: ticker, Interval: interval}
	dropped := 0
	for iter.Next() {
		b := iter.Bar()
		bar := model.Bar{
			TS:     time.Unix(int64(b.Timestamp), 0).UTC(),
			Open:   toFloat(b.Open),
			High:   toFloat(b.High),
			Low:    toFloat(b.Low),
			Close:  toFloat(b.Close),
			Volume: int64(b.Volume),
		}
		// Yahoo pads halted / pre-open slots with zero prices.
		if bar.Close <= 0 || bar.Open <= 0 {
			dropped++
			continue
		}
		if s.Append(bar) == 0 {
			dropped++
		}
	}
	if err := iter.Err(); err != nil {
		return model.Series{}, fmt.Errorf("yahoo: chart %s: %w", ticker, err)
	}
	if dropped > 0 {
		log.Printf("[yahoo] %s: dropped %d empty or out-of-order bars", ticker, dropped)
	}
	return checkSeries(s)
}

func (y *YahooProvider) PreviousClose(ctx context.Context, ticker string) (float64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	q, err := quote.Get(ticker)
	if err != nil {
		return 0, false, fmt.Errorf("yahoo: quote %s: %w", ticker, err)
	}
	if q == nil || q.RegularMarketPreviousClose <= 0 {
		return 0, false, nil
	}
	return q.RegularMarketPreviousClose, true, nil
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

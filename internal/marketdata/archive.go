package marketdata

import (
	"context"
	"time"

	"github.com/appigoo/stock-trend-monitor/internal/model"
)

// ArchiveProvider serves bars previously archived by the monitor, so a
// backtest can run without network access.
type ArchiveProvider struct {
	reader model.BarReader
	now    func() time.Time
}

// NewArchiveProvider creates a provider reading from r.
func NewArchiveProvider(r model.BarReader) *ArchiveProvider {
	return &ArchiveProvider{reader: r, now: time.Now}
}

func (a *ArchiveProvider) FetchBars(ctx context.Context, ticker, period, interval string) (model.Series, error) {
	after, err := ParsePeriod(period, a.now())
	if err != nil {
		return model.Series{}, err
	}
	s, err := a.reader.ReadBars(ctx, ticker, interval, after)
	if err != nil {
		return model.Series{}, err
	}
	return checkSeries(s)
}

// PreviousClose returns the close of the last archived daily bar before
// today, if any.
func (a *ArchiveProvider) PreviousClose(ctx context.Context, ticker string) (float64, bool, error) {
	now := a.now()
	s, err := a.reader.ReadBars(ctx, ticker, "1d", now.AddDate(0, 0, -10))
	if err != nil {
		return 0, false, err
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for i := s.Len() - 1; i >= 0; i-- {
		if s.Bars[i].TS.Before(today) {
			return s.Bars[i].Close, true, nil
		}
	}
	return 0, false, nil
}

// Package monitor runs the refresh cycle: for each configured ticker it
// fetches bars, derives indicators and tags, backtests the series, scores
// tag success rates, decides whether to alert and hands the resulting
// Report to the presentation sinks.
package monitor

import (
	"time"

	"github.com/appigoo/stock-trend-monitor/internal/alert"
	"github.com/appigoo/stock-trend-monitor/internal/backtest"
	"github.com/appigoo/stock-trend-monitor/internal/export"
	"github.com/appigoo/stock-trend-monitor/internal/indicator"
	"github.com/appigoo/stock-trend-monitor/internal/model"
	"github.com/appigoo/stock-trend-monitor/internal/signal"
	"github.com/appigoo/stock-trend-monitor/internal/successrate"
)

// Config holds the per-ticker analysis and cycle settings.
type Config struct {
	Period   string
	Interval string

	Indicator indicator.Config
	Signal    signal.Config
	Backtest  backtest.Config

	// HistoryRows is the number of recent bars in Report.History.
	HistoryRows int
	// RefreshInterval is the wait between cycles in Run.
	RefreshInterval time.Duration
	// MarketHoursOnly makes Run idle outside the regular US session.
	// The first cycle always runs.
	MarketHoursOnly bool
}

// DefaultConfig returns the stock analysis settings.
func DefaultConfig() Config {
	return Config{
		Period:          "5d",
		Interval:        "15m",
		Indicator:       indicator.DefaultConfig(),
		Signal:          signal.DefaultConfig(),
		Backtest:        backtest.DefaultConfig(),
		HistoryRows:     20,
		RefreshInterval: 5 * time.Minute,
	}
}

// Snapshot is the latest-bar summary of a ticker. Changes are against the
// previous bar; DayChange* are against the provider's previous close.
type Snapshot struct {
	AsOf            time.Time `json:"as_of"`
	Price           float64   `json:"price"`
	PriceChange     float64   `json:"price_change"`
	PriceChangePct  *float64  `json:"price_change_pct"`
	Volume          int64     `json:"volume"`
	VolumeChange    int64     `json:"volume_change"`
	VolumeChangePct *float64  `json:"volume_change_pct"`
	PreviousClose   *float64  `json:"previous_close,omitempty"`
	DayChange       *float64  `json:"day_change,omitempty"`
	DayChangePct    *float64  `json:"day_change_pct,omitempty"`
}

// Report is everything the presentation layer shows for one ticker in one
// cycle.
type Report struct {
	Ticker       string             `json:"ticker"`
	Interval     string             `json:"interval"`
	CycleID      string             `json:"cycle_id,omitempty"`
	GeneratedAt  time.Time          `json:"generated_at"`
	Snapshot     Snapshot           `json:"snapshot"`
	LatestTags   signal.Set         `json:"latest_tags"`
	History      []export.Row       `json:"history"`
	Backtest     *backtest.Result   `json:"backtest"`
	SuccessRates []successrate.Stat `json:"success_rates"`
	Alert        alert.Decision     `json:"alert"`
	MarketStatus string             `json:"market_status,omitempty"`

	result *indicator.Result
	rows   []export.Row
	table  *successrate.Table
}

// Rows returns the full bar table with derived fields and tags.
func (r *Report) Rows() []export.Row { return r.rows }

// Table returns the success-rate table keyed by tag.
func (r *Report) Table() *successrate.Table { return r.table }

// AlertInput returns the latest-bar view used for the alert decision.
func (r *Report) AlertInput() alert.Input {
	last := r.result.Fields[r.result.Len()-1]
	return alert.Input{
		Ticker:          r.Ticker,
		PriceChangePct:  last.PriceChangePct,
		VolumeChangePct: last.VolumeChangePct,
		Tags:            r.LatestTags,
	}
}

// Analyze runs the stateless part of the pipeline over one series. It is a
// pure function of its inputs; series with fewer than two bars yield
// indicator.ErrInsufficientData. prevClose is used only when hasPrev is set.
func Analyze(series model.Series, cfg Config, prevClose float64, hasPrev bool) (*Report, error) {
	res, err := indicator.Compute(series, cfg.Indicator)
	if err != nil {
		return nil, err
	}
	tags := signal.Classify(res, cfg.Signal)

	bt, err := backtest.Run(res, cfg.Backtest)
	if err != nil {
		return nil, err
	}
	table := successrate.Evaluate(series.Bars, tags)
	rows := export.Rows(res, tags)

	history := rows
	if cfg.HistoryRows > 0 && len(history) > cfg.HistoryRows {
		history = history[len(history)-cfg.HistoryRows:]
	}

	return &Report{
		Ticker:       series.Ticker,
		Interval:     series.Interval,
		Snapshot:     snapshot(res, prevClose, hasPrev),
		LatestTags:   signal.Latest(res, cfg.Signal),
		History:      history,
		Backtest:     bt,
		SuccessRates: table.Stats,
		result:       res,
		rows:         rows,
		table:        table,
	}, nil
}

func snapshot(res *indicator.Result, prevClose float64, hasPrev bool) Snapshot {
	n := res.Len()
	last, _ := res.Series.Last()
	prev := res.Bar(n - 2)
	f := res.Fields[n-1]

	s := Snapshot{
		AsOf:            last.TS,
		Price:           last.Close,
		PriceChange:     last.Close - prev.Close,
		PriceChangePct:  f.PriceChangePct.Ptr(),
		Volume:          last.Volume,
		VolumeChange:    last.Volume - prev.Volume,
		VolumeChangePct: f.VolumeChangePct.Ptr(),
	}
	if hasPrev && prevClose > 0 {
		pc := prevClose
		chg := last.Close - prevClose
		pct := chg / prevClose * 100
		s.PreviousClose, s.DayChange, s.DayChangePct = &pc, &chg, &pct
	}
	return s
}

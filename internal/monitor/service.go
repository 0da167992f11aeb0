package monitor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/appigoo/stock-trend-monitor/internal/alert"
	"github.com/appigoo/stock-trend-monitor/internal/indicator"
	"github.com/appigoo/stock-trend-monitor/internal/logger"
	"github.com/appigoo/stock-trend-monitor/internal/marketdata"
	"github.com/appigoo/stock-trend-monitor/internal/markethours"
	"github.com/appigoo/stock-trend-monitor/internal/metrics"
	"github.com/appigoo/stock-trend-monitor/internal/model"
	"github.com/appigoo/stock-trend-monitor/internal/notification"
	"github.com/appigoo/stock-trend-monitor/internal/store/sqlite"
)

// Skip reasons reported in metrics and Cycle.Skipped.
const (
	ReasonNoData     = "no_data"
	ReasonFetchError = "fetch_error"
)

// ResultStateError is the alert result recorded when the alert state store
// fails.
const ResultStateError = "state_error"

// Sink receives every report produced by a cycle.
type Sink interface {
	Publish(ctx context.Context, r *Report) error
}

// AlertJournal records delivered and failed alerts.
type AlertJournal interface {
	RecordAlert(ctx context.Context, rec sqlite.AlertRecord) error
}

// Deps are the collaborators of a Service. Only Provider is required.
type Deps struct {
	Provider marketdata.Provider
	Decider  *alert.Decider
	Notifier notification.Notifier
	Archive  model.BarWriter
	Journal  AlertJournal
	Sinks    []Sink
	Metrics  *metrics.Metrics
	Health   *metrics.HealthStatus
	Logger   *slog.Logger
}

// Skip describes a ticker left out of a cycle.
type Skip struct {
	Ticker string
	Reason string
	Err    error
}

// Cycle is the outcome of one refresh over the ticker list.
type Cycle struct {
	ID       string
	Started  time.Time
	Duration time.Duration
	Reports  []*Report
	Skipped  []Skip
}

// Service processes the configured tickers once per refresh interval.
// Tickers are processed sequentially in list order; a failure on one ticker
// never affects the others.
type Service struct {
	cfg     Config
	tickers []string
	deps    Deps
	log     *slog.Logger
	now     func() time.Time
	open    func(time.Time) bool
}

// NewService creates a Service. A nil Decider gets default thresholds with
// in-memory state and a nil Notifier logs alerts.
func NewService(cfg Config, tickers []string, deps Deps) (*Service, error) {
	if deps.Provider == nil {
		return nil, errors.New("monitor: provider is required")
	}
	if len(tickers) == 0 {
		return nil, errors.New("monitor: no tickers configured")
	}
	if deps.Decider == nil {
		deps.Decider = alert.NewDecider(alert.DefaultConfig(), nil)
	}
	if deps.Notifier == nil {
		deps.Notifier = notification.NewLogNotifier()
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		cfg:     cfg,
		tickers: append([]string(nil), tickers...),
		deps:    deps,
		log:     log.With("component", "monitor"),
		now:     time.Now,
		open:    markethours.IsMarketOpen,
	}, nil
}

// Run executes a cycle immediately and then once per refresh interval until
// ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	interval := s.cfg.RefreshInterval
	if interval <= 0 {
		interval = time.Minute
	}
	s.log.Info("monitor started",
		"tickers", s.tickers, "interval", s.cfg.Interval,
		"period", s.cfg.Period, "refresh", interval.String())

	if now := s.now(); s.cfg.MarketHoursOnly && !markethours.Covers(now) {
		s.log.Warn("holiday calendar does not cover this year, every weekday counts as a trading day",
			"year", now.Year())
	}

	s.RunCycle(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("monitor stopped")
			return nil
		case <-ticker.C:
			now := s.now()
			if s.cfg.MarketHoursOnly && !s.open(now) {
				s.log.Debug("market closed, cycle skipped", "status", markethours.StatusString(now))
				if h := s.deps.Health; h != nil {
					h.RecordIdle(now)
				}
				continue
			}
			s.RunCycle(ctx)
		}
	}
}

// RunCycle processes every ticker once.
func (s *Service) RunCycle(ctx context.Context) Cycle {
	c := Cycle{ID: logger.NewCycleID(), Started: s.now()}
	ctx = logger.WithCycleID(ctx, c.ID)

	for _, ticker := range s.tickers {
		if ctx.Err() != nil {
			break
		}
		rep, err := s.processTicker(ctx, ticker)
		if err != nil {
			reason := skipReason(err)
			c.Skipped = append(c.Skipped, Skip{Ticker: ticker, Reason: reason, Err: err})
			s.log.Warn("ticker skipped", logger.Attrs(ctx, "ticker", ticker, "reason", reason, "error", err)...)
			if m := s.deps.Metrics; m != nil {
				m.TickersSkipped.WithLabelValues(reason).Inc()
			}
			continue
		}
		rep.CycleID = c.ID
		c.Reports = append(c.Reports, rep)
		s.publish(ctx, rep)
	}

	c.Duration = s.now().Sub(c.Started)
	if m := s.deps.Metrics; m != nil {
		m.CyclesTotal.Inc()
		m.CycleDuration.Observe(c.Duration.Seconds())
	}
	if h := s.deps.Health; h != nil {
		h.RecordCycle(s.now(), len(s.tickers), len(c.Skipped))
	}
	s.log.Info("cycle complete", logger.Attrs(ctx,
		"reports", len(c.Reports), "skipped", len(c.Skipped),
		"duration", c.Duration.String())...)
	return c
}

func (s *Service) processTicker(ctx context.Context, ticker string) (*Report, error) {
	start := time.Now()
	series, err := s.deps.Provider.FetchBars(ctx, ticker, s.cfg.Period, s.cfg.Interval)
	if m := s.deps.Metrics; m != nil {
		m.FetchDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, err
	}
	if series.Ticker == "" {
		series.Ticker = ticker
	}
	if series.Interval == "" {
		series.Interval = s.cfg.Interval
	}

	if s.deps.Archive != nil {
		if err := s.deps.Archive.WriteBars(ctx, series); err != nil {
			s.log.Error("archive bars failed", logger.Attrs(ctx, "ticker", ticker, "error", err)...)
		}
	}

	prevClose, hasPrev, err := s.deps.Provider.PreviousClose(ctx, ticker)
	if err != nil {
		s.log.Warn("previous close unavailable", logger.Attrs(ctx, "ticker", ticker, "error", err)...)
		hasPrev = false
	}

	rep, err := Analyze(series, s.cfg, prevClose, hasPrev)
	if err != nil {
		return nil, err
	}
	rep.GeneratedAt = s.now()
	rep.MarketStatus = string(markethours.Phase(rep.GeneratedAt))

	dec, err := s.deps.Decider.Decide(ctx, rep.AlertInput())
	rep.Alert = dec
	if err != nil {
		s.countAlert(ResultStateError)
		s.log.Error("alert state error", logger.Attrs(ctx, "ticker", ticker, "error", err)...)
	} else {
		s.deliver(ctx, rep)
	}

	s.observe(rep)
	return rep, nil
}

// deliver sends a due alert and journals the outcome. Delivery failures are
// logged and never stop the cycle.
func (s *Service) deliver(ctx context.Context, rep *Report) {
	dec := rep.Alert
	if !dec.Triggered {
		return
	}
	if !dec.Send {
		s.countAlert("suppressed")
		s.log.Debug("alert debounced", logger.Attrs(ctx, "ticker", rep.Ticker)...)
		return
	}

	err := s.deps.Notifier.Send(ctx, notification.Alert{
		Level:           notification.AlertWarning,
		Ticker:          rep.Ticker,
		Title:           "Stock signal alert",
		Message:         dec.Message,
		Price:           rep.Snapshot.Price,
		PriceChangePct:  rep.Snapshot.PriceChangePct,
		VolumeChangePct: rep.Snapshot.VolumeChangePct,
		Signals:         rep.LatestTags.Strings(),
		MarketStatus:    rep.MarketStatus,
		At:              rep.GeneratedAt,
	})
	rec := sqlite.AlertRecord{
		CycleID:   logger.CycleID(ctx),
		Ticker:    rep.Ticker,
		Message:   dec.Message,
		Delivered: err == nil,
		SentAt:    s.now(),
	}
	if err != nil {
		rec.Error = err.Error()
		s.countAlert("failed")
		s.log.Error("alert delivery failed", logger.Attrs(ctx, "ticker", rep.Ticker, "error", err)...)
	} else {
		s.countAlert("sent")
		s.log.Info("alert sent", logger.Attrs(ctx, "ticker", rep.Ticker, "message", dec.Message)...)
	}

	if s.deps.Journal != nil {
		if jerr := s.deps.Journal.RecordAlert(ctx, rec); jerr != nil {
			s.log.Error("journal alert failed", logger.Attrs(ctx, "ticker", rep.Ticker, "error", jerr)...)
		}
	}
}

func (s *Service) publish(ctx context.Context, rep *Report) {
	for _, sink := range s.deps.Sinks {
		if err := sink.Publish(ctx, rep); err != nil {
			s.log.Warn("publish report failed", logger.Attrs(ctx, "ticker", rep.Ticker, "error", err)...)
		}
	}
}

func (s *Service) observe(rep *Report) {
	m := s.deps.Metrics
	if m == nil {
		return
	}
	m.TickersProcessed.WithLabelValues(rep.Ticker).Inc()
	m.LastClose.WithLabelValues(rep.Ticker).Set(rep.Snapshot.Price)
	for _, t := range rep.LatestTags {
		m.TagsFired.WithLabelValues(t.String()).Inc()
	}
	if bt := rep.Backtest; bt != nil {
		m.BacktestEquity.WithLabelValues(rep.Ticker).Set(bt.FinalEquity)
		m.BacktestReturn.WithLabelValues(rep.Ticker).Set(bt.Report.TotalReturnPct)
	}
}

func (s *Service) countAlert(result string) {
	if m := s.deps.Metrics; m != nil {
		m.AlertsTotal.WithLabelValues(result).Inc()
	}
}

// skipReason classifies a per-ticker failure. Empty or short series are
// "no data"; anything else from the provider is a fetch error.
func skipReason(err error) string {
	if errors.Is(err, marketdata.ErrNoData) || errors.Is(err, indicator.ErrInsufficientData) {
		return ReasonNoData
	}
	return ReasonFetchError
}

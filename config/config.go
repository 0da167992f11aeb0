// Package config loads monitor configuration from the environment.
//
// Values come from process environment variables, optionally seeded from a
// .env file in the working directory. The ticker list may be replaced by a
// YAML watchlist file.
package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/appigoo/stock-trend-monitor/internal/alert"
	"github.com/appigoo/stock-trend-monitor/internal/backtest"
	"github.com/appigoo/stock-trend-monitor/internal/indicator"
	"github.com/appigoo/stock-trend-monitor/internal/monitor"
	"github.com/appigoo/stock-trend-monitor/internal/signal"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Data
	Tickers       []string `envconfig:"TICKERS" default:"TSLA"`
	WatchlistFile string   `envconfig:"WATCHLIST_FILE"`
	Period        string   `envconfig:"PERIOD" default:"5d"`
	Interval      string   `envconfig:"INTERVAL" default:"15m"`

	// Classifier thresholds (percent)
	PriceThreshold       float64 `envconfig:"PRICE_THRESHOLD" default:"80"`
	VolumeThreshold      float64 `envconfig:"VOLUME_THRESHOLD" default:"200"`
	GapThreshold         float64 `envconfig:"GAP_THRESHOLD" default:"1"`
	ContinuousUp         int     `envconfig:"CONTINUOUS_UP" default:"3"`
	ContinuousDown       int     `envconfig:"CONTINUOUS_DOWN" default:"3"`
	PivotPriceThreshold  float64 `envconfig:"PIVOT_PRICE_THRESHOLD" default:"5"`
	PivotVolumeThreshold float64 `envconfig:"PIVOT_VOLUME_THRESHOLD" default:"100"`
	VolumeSurgePct       float64 `envconfig:"VOLUME_SURGE_PCT" default:"15"`
	KeyPivotMinTags      int     `envconfig:"KEY_PIVOT_MIN_TAGS" default:"8"`

	// Cycle
	RefreshInterval time.Duration `envconfig:"REFRESH_INTERVAL" default:"5m"`
	AlertDebounce   time.Duration `envconfig:"ALERT_DEBOUNCE" default:"600s"`
	HistoryRows     int           `envconfig:"HISTORY_ROWS" default:"20"`
	MarketHoursOnly bool          `envconfig:"MARKET_HOURS_ONLY" default:"false"`
	CacheTTL        time.Duration `envconfig:"CACHE_TTL" default:"0s"`

	// Backtest
	InitialCash float64 `envconfig:"INITIAL_CASH" default:"100000"`
	LotSize     int64   `envconfig:"LOT_SIZE" default:"10"`

	// Infrastructure
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`

	// ReportTTL is how long report:latest:<T> survives without a refresh.
	ReportTTL time.Duration `envconfig:"REPORT_TTL" default:"30m"`
	SQLitePath    string `envconfig:"SQLITE_PATH" default:"data/monitor.db"`
	HTTPAddr      string `envconfig:"HTTP_ADDR" default:":8080"`
	MetricsAddr   string `envconfig:"METRICS_ADDR" default:":9090"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`

	// Notification
	Notifier         string   `envconfig:"NOTIFIER" default:"log"`
	WebhookURL       string   `envconfig:"WEBHOOK_URL"`
	TelegramBotToken string   `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string   `envconfig:"TELEGRAM_CHAT_ID"`
	SMTPHost         string   `envconfig:"SMTP_HOST"`
	SMTPPort         int      `envconfig:"SMTP_PORT" default:"587"`
	SMTPUser         string   `envconfig:"SMTP_USER"`
	SMTPPassword     string   `envconfig:"SMTP_PASSWORD"`
	SMTPFrom         string   `envconfig:"SMTP_FROM"`
	SMTPTo           []string `envconfig:"SMTP_TO"`
}

// WatchEntry is one ticker of a watchlist file.
type WatchEntry struct {
	Symbol string `yaml:"symbol"`
	Name   string `yaml:"name,omitempty"`
}

type watchlistFile struct {
	Watchlist []WatchEntry `yaml:"watchlist"`
}

// Load reads configuration from the environment (after an optional .env
// file), applies the watchlist file if one is set, and clamps the result.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if cfg.WatchlistFile != "" {
		tickers, err := LoadWatchlist(cfg.WatchlistFile)
		if err != nil {
			return nil, err
		}
		if len(tickers) > 0 {
			cfg.Tickers = tickers
		}
	}

	cfg.Clamp()
	return &cfg, nil
}

// LoadWatchlist reads the ticker symbols of a YAML watchlist file, in file
// order, upper-cased and de-duplicated.
func LoadWatchlist(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read watchlist: %w", err)
	}
	var wf watchlistFile
	if err := yaml.Unmarshal(b, &wf); err != nil {
		return nil, fmt.Errorf("config: parse watchlist %s: %w", path, err)
	}
	syms := make([]string, 0, len(wf.Watchlist))
	for _, e := range wf.Watchlist {
		syms = append(syms, e.Symbol)
	}
	return normalizeTickers(syms), nil
}

// Clamp bounds numeric settings to usable ranges. It is the only validation
// applied to configuration.
func (c *Config) Clamp() {
	for _, p := range []*float64{
		&c.PriceThreshold, &c.VolumeThreshold, &c.GapThreshold,
		&c.PivotPriceThreshold, &c.PivotVolumeThreshold, &c.VolumeSurgePct,
		&c.InitialCash,
	} {
		if *p < 0 {
			*p = 0
		}
	}
	for _, p := range []*int{&c.ContinuousUp, &c.ContinuousDown} {
		if *p < 1 {
			*p = 1
		}
	}
	if c.KeyPivotMinTags < 0 {
		c.KeyPivotMinTags = 0
	}
	if c.LotSize < 1 {
		c.LotSize = 1
	}
	if c.HistoryRows < 1 {
		c.HistoryRows = 1
	}
	if c.AlertDebounce < 0 {
		c.AlertDebounce = 0
	}
	if c.CacheTTL < 0 {
		c.CacheTTL = 0
	}
	if c.RefreshInterval < time.Second {
		log.Printf("[config] refresh interval %v too short, using 1m", c.RefreshInterval)
		c.RefreshInterval = time.Minute
	}
	c.Tickers = normalizeTickers(c.Tickers)
	if len(c.Tickers) == 0 {
		c.Tickers = []string{"TSLA"}
	}
}

// SignalConfig returns the classifier thresholds.
func (c *Config) SignalConfig() signal.Config {
	sc := signal.DefaultConfig()
	sc.PriceThreshold = c.PriceThreshold
	sc.VolumeThreshold = c.VolumeThreshold
	sc.GapThreshold = c.GapThreshold
	sc.ContinuousUp = c.ContinuousUp
	sc.ContinuousDown = c.ContinuousDown
	sc.PivotPriceChange = c.PivotPriceThreshold
	sc.PivotVolumeChange = c.PivotVolumeThreshold
	sc.VolumeSurgePct = c.VolumeSurgePct
	sc.KeyPivotMinTags = c.KeyPivotMinTags
	return sc
}

// AlertConfig returns the alert thresholds and debounce window.
func (c *Config) AlertConfig() alert.Config {
	return alert.Config{
		PriceThreshold:  c.PriceThreshold,
		VolumeThreshold: c.VolumeThreshold,
		Debounce:        c.AlertDebounce,
	}
}

// BacktestConfig returns the simulator settings.
func (c *Config) BacktestConfig() backtest.Config {
	return backtest.Config{InitialCash: c.InitialCash, LotSize: c.LotSize}
}

// MonitorConfig returns the per-ticker analysis and cycle settings.
func (c *Config) MonitorConfig() monitor.Config {
	return monitor.Config{
		Period:          c.Period,
		Interval:        c.Interval,
		Indicator:       indicator.DefaultConfig(),
		Signal:          c.SignalConfig(),
		Backtest:        c.BacktestConfig(),
		HistoryRows:     c.HistoryRows,
		RefreshInterval: c.RefreshInterval,
		MarketHoursOnly: c.MarketHoursOnly,
	}
}

func normalizeTickers(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

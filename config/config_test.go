package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TICKERS", "")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(cfg.Tickers, []string{"TSLA"}) {
		t.Errorf("tickers = %v", cfg.Tickers)
	}
	if cfg.PriceThreshold != 80 || cfg.VolumeThreshold != 200 || cfg.GapThreshold != 1 {
		t.Errorf("thresholds = %v/%v/%v", cfg.PriceThreshold, cfg.VolumeThreshold, cfg.GapThreshold)
	}
	if cfg.AlertDebounce != 600*time.Second || cfg.LotSize != 10 || cfg.InitialCash != 100000 {
		t.Errorf("debounce=%v lot=%d cash=%v", cfg.AlertDebounce, cfg.LotSize, cfg.InitialCash)
	}
	if cfg.ReportTTL != 30*time.Minute {
		t.Errorf("report ttl = %v", cfg.ReportTTL)
	}
	if sc := cfg.SignalConfig(); sc.VolumeSurgePct != 15 || sc.KeyPivotMinTags != 8 || sc.RunawayWindow != 5 {
		t.Errorf("signal config = %+v", sc)
	}
	mc := cfg.MonitorConfig()
	if mc.Period != "5d" || mc.Interval != "15m" || mc.HistoryRows != 20 || mc.Backtest.LotSize != 10 {
		t.Errorf("monitor config = %+v", mc)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TICKERS", "nvda, tsla ,NVDA")
	t.Setenv("GAP_THRESHOLD", "2.5")
	t.Setenv("ALERT_DEBOUNCE", "0s")
	t.Setenv("MARKET_HOURS_ONLY", "true")
	t.Setenv("SMTP_TO", "a@example.com,b@example.com")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(cfg.Tickers, []string{"NVDA", "TSLA"}) {
		t.Errorf("tickers = %v", cfg.Tickers)
	}
	if cfg.GapThreshold != 2.5 || cfg.AlertConfig().Debounce != 0 || len(cfg.SMTPTo) != 2 || !cfg.MonitorConfig().MarketHoursOnly {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_BadValue(t *testing.T) {
	t.Setenv("LOT_SIZE", "ten")
	if _, err := Load(); err == nil {
		t.Error("expected parse error")
	}
}

func TestClamp(t *testing.T) {
	c := Config{
		PriceThreshold:  -5,
		ContinuousUp:    0,
		ContinuousDown:  -2,
		LotSize:         0,
		InitialCash:     -1,
		HistoryRows:     0,
		RefreshInterval: time.Minute,
		Tickers:         []string{" ", ""},
	}
	c.Clamp()
	if c.PriceThreshold != 0 || c.ContinuousUp != 1 || c.ContinuousDown != 1 || c.LotSize != 1 || c.InitialCash != 0 {
		t.Errorf("clamped = %+v", c)
	}
	if !reflect.DeepEqual(c.Tickers, []string{"TSLA"}) {
		t.Errorf("tickers = %v", c.Tickers)
	}
}

func TestLoadWatchlist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watchlist.yaml")
	body := "watchlist:\n  - symbol: aapl\n    name: Apple\n  - symbol: MSFT\n  - symbol: AAPL\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := LoadWatchlist(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"AAPL", "MSFT"}) {
		t.Errorf("watchlist = %v", got)
	}

	t.Setenv("WATCHLIST_FILE", path)
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(cfg.Tickers, []string{"AAPL", "MSFT"}) {
		t.Errorf("tickers from file = %v", cfg.Tickers)
	}
}

// cmd/monitor runs the stock signal monitor: every refresh interval it
// fetches bars for each configured ticker, classifies signals, backtests the
// series, sends debounced alerts and serves the latest reports over REST and
// WebSocket.
//
// Usage:
//
//	TICKERS=TSLA,NVDA INTERVAL=15m go run ./cmd/monitor
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/appigoo/stock-trend-monitor/config"
	"github.com/appigoo/stock-trend-monitor/internal/alert"
	"github.com/appigoo/stock-trend-monitor/internal/gateway"
	"github.com/appigoo/stock-trend-monitor/internal/logger"
	"github.com/appigoo/stock-trend-monitor/internal/marketdata"
	"github.com/appigoo/stock-trend-monitor/internal/metrics"
	"github.com/appigoo/stock-trend-monitor/internal/model"
	"github.com/appigoo/stock-trend-monitor/internal/monitor"
	"github.com/appigoo/stock-trend-monitor/internal/notification"
	redisstore "github.com/appigoo/stock-trend-monitor/internal/store/redis"
	sqlitestore "github.com/appigoo/stock-trend-monitor/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[monitor] %v", err)
	}
	if !marketdata.ValidInterval(cfg.Interval) {
		log.Fatalf("[monitor] unsupported interval %q", cfg.Interval)
	}
	slogger := logger.Init("monitor", logger.ParseLevel(cfg.LogLevel))

	notifier, err := buildNotifier(cfg)
	if err != nil {
		log.Fatalf("[monitor] notifier: %v", err)
	}

	// ---- Setup metrics & health ----
	prom := metrics.NewMetrics(nil)
	health := metrics.NewHealthStatus(3 * cfg.RefreshInterval)
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Setup context for graceful shutdown ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("[monitor] shutting down...")
		cancel()
	}()

	// ---- Market data ----
	provider := marketdata.NewCache(marketdata.NewYahooProvider(), cfg.CacheTTL)

	// ---- SQLite archive + journal (optional) ----
	var (
		archive  model.BarWriter
		journal  monitor.AlertJournal
		alertsDB gateway.AlertLister
		sqlDB    *sql.DB
	)
	if cfg.SQLitePath != "" {
		os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755)
		w, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath})
		if err != nil {
			log.Printf("[monitor] WARNING: sqlite unavailable, archive disabled: %v", err)
		} else {
			defer w.Close()
			w.OnCommit = func(d time.Duration) { prom.SQLiteCommitDur.Observe(d.Seconds()) }
			archive, journal, alertsDB, sqlDB = w, w, w, w.DB()
			health.EnableSQLite()
		}
	}

	// ---- Redis alert state + report fan-out (optional) ----
	hub := gateway.NewHub()
	hub.OnClientCount = func(n int) { prom.WSClients.Set(float64(n)) }
	sinks := []monitor.Sink{hub}

	var alertStore model.AlertStateStore = alert.NewMemoryStore()
	var rdb *goredis.Client
	if cfg.RedisAddr != "" {
		rdb, err = redisstore.Dial(ctx, redisstore.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err != nil {
			log.Printf("[monitor] WARNING: redis unavailable, using in-memory alert state: %v", err)
			rdb = nil
		} else {
			defer rdb.Close()
			health.EnableRedis()
			health.SetRedisConnected(true)

			cb := redisstore.NewCircuitBreaker(5, 10*time.Second)
			cb.OnStateChange = func(from, to redisstore.State) {
				log.Printf("[monitor] redis circuit breaker: %s -> %s", from, to)
				prom.RedisCircuitBreakerState.Set(float64(to))
				if to == redisstore.StateOpen {
					prom.RedisCircuitBreakerTrips.Inc()
				}
			}
			alertStore = redisstore.NewAlertStore(rdb, cb)
			pub := redisstore.NewPublisher(rdb, cb, cfg.ReportTTL)
			gateway.Seed(ctx, pub, hub, cfg.Tickers)
			sinks = append(sinks, &redisSink{pub: pub, hub: hub})
			hub.SetRelayed(true)
			go gateway.Relay(ctx, rdb, hub)
		}
	}

	health.StartLivenessChecker(ctx, rdb, sqlDB, 15*time.Second)

	// ---- Monitor service ----
	svc, err := monitor.NewService(cfg.MonitorConfig(), cfg.Tickers, monitor.Deps{
		Provider: provider,
		Decider:  alert.NewDecider(cfg.AlertConfig(), alertStore),
		Notifier: notifier,
		Archive:  archive,
		Journal:  journal,
		Sinks:    sinks,
		Metrics:  prom,
		Health:   health,
		Logger:   slogger,
	})
	if err != nil {
		log.Fatalf("[monitor] init failed: %v", err)
	}

	// ---- HTTP gateway ----
	mux := http.NewServeMux()
	gateway.Routes{Hub: hub, Alerts: alertsDB, Health: health}.Register(mux)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}
	go func() {
		log.Printf("[monitor] gateway listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[monitor] gateway: %v", err)
		}
	}()

	if err := svc.Run(ctx); err != nil {
		log.Printf("[monitor] run: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)
	log.Println("[monitor] stopped")
}

// buildNotifier creates the notifier(s) named by NOTIFIER, a comma-separated
// list of log, webhook, telegram and email.
func buildNotifier(cfg *config.Config) (notification.Notifier, error) {
	var out notification.Multi
	for _, name := range strings.Split(cfg.Notifier, ",") {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "", "log":
			out = append(out, notification.NewLogNotifier())
		case "webhook":
			if cfg.WebhookURL == "" {
				return nil, errors.New("WEBHOOK_URL is required for the webhook notifier")
			}
			out = append(out, notification.NewWebhookNotifier(cfg.WebhookURL))
		case "telegram":
			if cfg.TelegramBotToken == "" || cfg.TelegramChatID == "" {
				return nil, errors.New("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID are required for the telegram notifier")
			}
			out = append(out, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
		case "email":
			if cfg.SMTPHost == "" || len(cfg.SMTPTo) == 0 {
				return nil, errors.New("SMTP_HOST and SMTP_TO are required for the email notifier")
			}
			out = append(out, notification.NewEmailNotifier(notification.EmailConfig{
				Host:     cfg.SMTPHost,
				Port:     cfg.SMTPPort,
				User:     cfg.SMTPUser,
				Password: cfg.SMTPPassword,
				From:     cfg.SMTPFrom,
				To:       cfg.SMTPTo,
			}))
		default:
			return nil, fmt.Errorf("unknown notifier %q", name)
		}
	}
	if len(out) == 1 {
		return out[0], nil
	}
	return out, nil
}

// redisSink publishes reports through Redis for the gateway relay. When the
// publish fails the report is broadcast locally so clients are not starved.
type redisSink struct {
	pub *redisstore.Publisher
	hub *gateway.Hub
}

func (s *redisSink) Publish(ctx context.Context, r *monitor.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	if err := s.pub.PublishReport(ctx, r.Ticker, data); err != nil {
		s.hub.Broadcaster.Broadcast(gateway.Channel(r.Ticker), data)
		return err
	}
	return nil
}

// Package metrics exposes Prometheus metrics and a /healthz endpoint for the
// monitor.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics of the monitor.
type Metrics struct {
	CyclesTotal   prometheus.Counter
	CycleDuration prometheus.Histogram
	FetchDuration prometheus.Histogram

	TickersProcessed *prometheus.CounterVec // labels: ticker
	TickersSkipped   *prometheus.CounterVec // labels: reason
	AlertsTotal      *prometheus.CounterVec // labels: result=sent|suppressed|failed|state_error
	TagsFired        *prometheus.CounterVec // labels: tag

	LastClose      *prometheus.GaugeVec // labels: ticker
	BacktestEquity *prometheus.GaugeVec // labels: ticker
	BacktestReturn *prometheus.GaugeVec // labels: ticker

	SQLiteCommitDur prometheus.Histogram

	// Circuit breaker
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter

	WSClients prometheus.Gauge
}

// NewMetrics creates all metrics and registers them with reg. A nil reg
// uses the default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monitor_cycles_total",
			Help: "Refresh cycles completed",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "monitor_cycle_duration_seconds",
			Help:    "Wall time of one refresh cycle over all tickers",
			Buckets: prometheus.DefBuckets,
		}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "monitor_fetch_duration_seconds",
			Help:    "Market data fetch latency per ticker",
			Buckets: prometheus.DefBuckets,
		}),

		TickersProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_tickers_processed_total",
			Help: "Tickers analysed successfully",
		}, []string{"ticker"}),
		TickersSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_ticker_skipped_total",
			Help: "Tickers skipped for a cycle (no_data, fetch_error)",
		}, []string{"reason"}),
		AlertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_alerts_total",
			Help: "Alert decisions by result",
		}, []string{"result"}),
		TagsFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_tags_fired_total",
			Help: "Signal tags fired on the latest bar",
		}, []string{"tag"}),

		LastClose: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "monitor_last_close",
			Help: "Close of the most recent bar",
		}, []string{"ticker"}),
		BacktestEquity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "monitor_backtest_final_equity",
			Help: "Final equity of the latest backtest run",
		}, []string{"ticker"}),
		BacktestReturn: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "monitor_backtest_return_pct",
			Help: "Total return % of the latest backtest run",
		}, []string{"ticker"}),

		SQLiteCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "monitor_sqlite_commit_duration_seconds",
			Help:    "SQLite bar archive commit latency",
			Buckets: prometheus.DefBuckets,
		}),

		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "monitor_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monitor_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),

		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_ws_clients",
			Help: "Connected WebSocket clients",
		}),
	}

	reg.MustRegister(
		m.CyclesTotal,
		m.CycleDuration,
		m.FetchDuration,
		m.TickersProcessed,
		m.TickersSkipped,
		m.AlertsTotal,
		m.TagsFired,
		m.LastClose,
		m.BacktestEquity,
		m.BacktestReturn,
		m.SQLiteCommitDur,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.WSClients,
	)

	return m
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	RedisEnabled   bool `json:"redis_enabled"`
	RedisConnected bool `json:"redis_connected"`
	SQLiteEnabled  bool `json:"sqlite_enabled"`
	SQLiteOK       bool `json:"sqlite_ok"`

	LastCycleAt     time.Time     `json:"last_cycle_at"`
	LastCycleTicker int           `json:"last_cycle_tickers"`
	LastCycleFailed int           `json:"last_cycle_failed"`
	LastIdleAt      time.Time     `json:"last_idle_at,omitempty"`
	StaleAfter      time.Duration `json:"-"`

	// Liveness probe results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status. A cycle older than
// staleAfter marks the service degraded; zero disables the check.
func NewHealthStatus(staleAfter time.Duration) *HealthStatus {
	return &HealthStatus{
		StaleAfter: staleAfter,
		StartedAt:  time.Now(),
	}
}

// EnableRedis marks Redis as a configured dependency.
func (h *HealthStatus) EnableRedis() {
	h.mu.Lock()
	h.RedisEnabled = true
	h.mu.Unlock()
}

// EnableSQLite marks SQLite as a configured dependency.
func (h *HealthStatus) EnableSQLite() {
	h.mu.Lock()
	h.SQLiteEnabled = true
	h.SQLiteOK = true
	h.mu.Unlock()
}

// RecordCycle records the outcome of a refresh cycle.
func (h *HealthStatus) RecordCycle(at time.Time, tickers, failed int) {
	h.mu.Lock()
	h.LastCycleAt = at
	h.LastCycleTicker = tickers
	h.LastCycleFailed = failed
	h.mu.Unlock()
}

// RecordIdle notes a deliberately skipped cycle, e.g. outside market hours.
// It keeps the staleness check satisfied without touching cycle results.
func (h *HealthStatus) RecordIdle(at time.Time) {
	h.mu.Lock()
	h.LastIdleAt = at
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite runs a trivial query and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// Status computes the overall status string and HTTP code.
func (h *HealthStatus) Status(now time.Time) (string, int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status, code := "healthy", http.StatusOK
	degraded := (h.RedisEnabled && !h.RedisConnected) || (h.SQLiteEnabled && !h.SQLiteOK)
	if h.StaleAfter > 0 {
		ref := h.LastCycleAt
		if ref.IsZero() {
			ref = h.StartedAt
		}
		if h.LastIdleAt.After(ref) {
			ref = h.LastIdleAt
		}
		if now.Sub(ref) > h.StaleAfter {
			degraded = true
		}
	}
	if h.LastCycleTicker > 0 && h.LastCycleFailed == h.LastCycleTicker {
		degraded = true
	}
	if degraded {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	return status, code
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	overallStatus, httpCode := h.Status(now)

	h.mu.RLock()
	cycleAge := ""
	if !h.LastCycleAt.IsZero() {
		cycleAge = now.Sub(h.LastCycleAt).Round(time.Millisecond).String()
	}
	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		LastCycleAt     string  `json:"last_cycle_at"`
		CycleAge        string  `json:"cycle_age"`
		Tickers         int     `json:"tickers"`
		TickersFailed   int     `json:"tickers_failed"`
		RedisEnabled    bool    `json:"redis_enabled"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteEnabled   bool    `json:"sqlite_enabled"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          now.Sub(h.StartedAt).Round(time.Second).String(),
		LastCycleAt:     h.LastCycleAt.Format(time.RFC3339),
		CycleAge:        cycleAge,
		Tickers:         h.LastCycleTicker,
		TickersFailed:   h.LastCycleFailed,
		RedisEnabled:    h.RedisEnabled,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteEnabled:   h.SQLiteEnabled,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}
	h.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}

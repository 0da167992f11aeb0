package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewMetrics_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.AlertsTotal.WithLabelValues("sent").Inc()
	m.AlertsTotal.WithLabelValues("sent").Inc()
	m.TickersSkipped.WithLabelValues("no_data").Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	found := map[string]float64{}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				found[mf.GetName()] += c.GetValue()
			}
		}
	}
	if found["monitor_alerts_total"] != 2 {
		t.Errorf("alerts sent = %v", found["monitor_alerts_total"])
	}
	if found["monitor_ticker_skipped_total"] != 1 {
		t.Errorf("skipped = %v", found["monitor_ticker_skipped_total"])
	}
}

func TestHealthStatus(t *testing.T) {
	h := NewHealthStatus(10 * time.Minute)
	now := h.StartedAt.Add(time.Minute)

	if s, code := h.Status(now); s != "healthy" || code != http.StatusOK {
		t.Errorf("fresh status = %s %d", s, code)
	}

	h.EnableRedis()
	if s, _ := h.Status(now); s != "degraded" {
		t.Errorf("redis enabled but disconnected: %s", s)
	}
	h.SetRedisConnected(true)

	h.RecordCycle(now, 3, 3)
	if s, _ := h.Status(now); s != "degraded" {
		t.Errorf("all tickers failed: %s", s)
	}
	h.RecordCycle(now, 3, 1)
	if s, _ := h.Status(now); s != "healthy" {
		t.Errorf("partial failure: %s", s)
	}
	if s, _ := h.Status(now.Add(11 * time.Minute)); s != "degraded" {
		t.Errorf("stale cycle: %s", s)
	}
	h.RecordIdle(now.Add(10 * time.Minute))
	if s, _ := h.Status(now.Add(11 * time.Minute)); s != "healthy" {
		t.Errorf("idle outside market hours: %s", s)
	}
}

func TestHealthStatus_ServeHTTP(t *testing.T) {
	h := NewHealthStatus(0)
	h.RecordCycle(time.Now(), 2, 0)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "healthy" || body["tickers"] != float64(2) {
		t.Errorf("body = %v", body)
	}
}

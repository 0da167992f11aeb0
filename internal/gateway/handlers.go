package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/appigoo/stock-trend-monitor/internal/export"
	"github.com/appigoo/stock-trend-monitor/internal/monitor"
	"github.com/appigoo/stock-trend-monitor/internal/store/sqlite"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// AlertLister lists journaled alerts, newest first.
type AlertLister interface {
	GetAlerts(ctx context.Context, limit int) ([]sqlite.AlertRecord, error)
}

// Routes are the dependencies of the HTTP surface. Alerts and Health are
// optional.
type Routes struct {
	Hub    *Hub
	Alerts AlertLister
	Health http.Handler
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// Register registers all HTTP routes on the provided mux.
func (rt Routes) Register(mux *http.ServeMux) {
	hub := rt.Hub

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[gateway] ws upgrade error: %v", err)
			return
		}
		hub.Register(conn, r.URL.Query().Get("last_ts"))
	})

	// REST: latest report of every ticker
	mux.HandleFunc("/api/reports", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, hub.Reports())
	})

	// REST: latest report of one ticker
	mux.HandleFunc("/api/report", func(w http.ResponseWriter, r *http.Request) {
		rep, ok := lookup(w, r, hub)
		if !ok {
			return
		}
		writeJSON(w, rep)
	})

	// REST: full bar table as csv, json or parquet
	mux.HandleFunc("/api/export", func(w http.ResponseWriter, r *http.Request) {
		rep, ok := lookup(w, r, hub)
		if !ok {
			return
		}
		format := r.URL.Query().Get("format")
		if format == "" {
			format = "csv"
		}
		ew := export.New(format)
		if ew == nil {
			httpError(w, http.StatusBadRequest, "unsupported format "+strconv.Quote(format))
			return
		}
		SetCORS(w)
		w.Header().Set("Content-Type", ew.ContentType())
		w.Header().Set("Content-Disposition",
			fmt.Sprintf(`attachment; filename="%s_%s.%s"`, rep.Ticker, rep.Interval, ew.Extension()))
		if err := ew.Write(w, exportRows(rep)); err != nil {
			log.Printf("[gateway] export %s %s: %v", rep.Ticker, format, err)
		}
	})

	// REST: backtest trade ledger
	mux.HandleFunc("/api/trades.csv", func(w http.ResponseWriter, r *http.Request) {
		rep, ok := lookup(w, r, hub)
		if !ok {
			return
		}
		SetCORS(w)
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s_trades.csv"`, rep.Ticker))
		if err := export.WriteTradesCSV(w, rep.Backtest.Trades); err != nil {
			log.Printf("[gateway] trades %s: %v", rep.Ticker, err)
		}
	})

	// REST: envelopes a client missed on a channel
	mux.HandleFunc("/api/missed", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		channel := q.Get("channel")
		since, err := strconv.ParseInt(q.Get("since"), 10, 64)
		if channel == "" || err != nil {
			httpError(w, http.StatusBadRequest, "channel and since are required")
			return
		}
		envs := hub.GetReplayRange(channel, since+1, hub.GetChannelSeq(channel))
		out := make([]json.RawMessage, len(envs))
		for i, e := range envs {
			out[i] = e
		}
		writeJSON(w, out)
	})

	if rt.Alerts != nil {
		mux.HandleFunc("/api/alerts", func(w http.ResponseWriter, r *http.Request) {
			limit := 50
			if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 1000 {
				limit = l
			}
			recs, err := rt.Alerts.GetAlerts(r.Context(), limit)
			if err != nil {
				httpError(w, http.StatusInternalServerError, err.Error())
				return
			}
			writeJSON(w, recs)
		})
	}

	if rt.Health != nil {
		mux.Handle("/healthz", rt.Health)
	}
}

// exportRows is the full bar table, or the recent history for a report
// restored from a stored payload.
func exportRows(rep *monitor.Report) []export.Row {
	if rows := rep.Rows(); rows != nil {
		return rows
	}
	return rep.History
}

// lookup resolves the ?ticker= report, writing a 4xx when it can't.
func lookup(w http.ResponseWriter, r *http.Request, hub *Hub) (*monitor.Report, bool) {
	ticker := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("ticker")))
	if ticker == "" {
		httpError(w, http.StatusBadRequest, "ticker is required")
		return nil, false
	}
	rep, ok := hub.Report(ticker)
	if !ok {
		httpError(w, http.StatusNotFound, "no report for "+ticker)
		return nil, false
	}
	return rep, true
}

func writeJSON(w http.ResponseWriter, v any) {
	SetCORS(w)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[gateway] encode response: %v", err)
	}
}

func httpError(w http.ResponseWriter, code int, msg string) {
	SetCORS(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

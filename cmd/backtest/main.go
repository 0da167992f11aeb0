// cmd/backtest runs the signal pipeline once over a ticker's history and
// prints the backtest report and tag success rates. The trade ledger is
// written to <ticker>_trades.csv and journaled in SQLite.
//
// Usage:
//
//	go run ./cmd/backtest --ticker=TSLA --period=5d --interval=15m
//	go run ./cmd/backtest --ticker=TSLA --offline   # replay archived bars
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/appigoo/stock-trend-monitor/config"
	"github.com/appigoo/stock-trend-monitor/internal/export"
	"github.com/appigoo/stock-trend-monitor/internal/marketdata"
	"github.com/appigoo/stock-trend-monitor/internal/monitor"
	sqlitestore "github.com/appigoo/stock-trend-monitor/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[backtest] %v", err)
	}

	// Flags
	ticker := flag.String("ticker", cfg.Tickers[0], "Ticker symbol")
	period := flag.String("period", cfg.Period, "History window (e.g. 5d, 1mo, 1y, ytd, max)")
	interval := flag.String("interval", cfg.Interval, "Bar interval (e.g. 15m, 1h, 1d)")
	dbPath := flag.String("db", cfg.SQLitePath, "Path to SQLite database (empty disables archive and journal)")
	offline := flag.Bool("offline", false, "Read archived bars from SQLite instead of the provider")
	outDir := flag.String("out", ".", "Directory for the trade ledger and exports")
	format := flag.String("export", "", "Also export the bar table: csv, json or parquet")
	flag.Parse()

	sym := strings.ToUpper(strings.TrimSpace(*ticker))
	if !marketdata.ValidInterval(*interval) {
		log.Fatalf("[backtest] unsupported interval %q", *interval)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	// Open SQLite
	var writer *sqlitestore.Writer
	if *dbPath != "" {
		os.MkdirAll(filepath.Dir(*dbPath), 0o755)
		writer, err = sqlitestore.New(sqlitestore.WriterConfig{DBPath: *dbPath})
		if err != nil {
			log.Fatalf("[backtest] sqlite open failed: %v", err)
		}
		defer writer.Close()
	}

	var provider marketdata.Provider = marketdata.NewYahooProvider()
	if *offline {
		if *dbPath == "" {
			log.Fatal("[backtest] --offline needs --db")
		}
		reader, err := sqlitestore.NewReader(*dbPath)
		if err != nil {
			log.Fatalf("[backtest] sqlite open failed: %v", err)
		}
		defer reader.Close()
		provider = marketdata.NewArchiveProvider(reader)
	}

	series, err := provider.FetchBars(ctx, sym, *period, *interval)
	if err != nil {
		log.Fatalf("[backtest] fetch %s: %v", sym, err)
	}
	if writer != nil && !*offline {
		if err := writer.WriteBars(ctx, series); err != nil {
			log.Printf("[backtest] WARNING: archive failed: %v", err)
		}
	}

	mcfg := cfg.MonitorConfig()
	mcfg.Period, mcfg.Interval = *period, *interval
	rep, err := monitor.Analyze(series, mcfg, 0, false)
	if err != nil {
		log.Fatalf("[backtest] analyze %s: %v", sym, err)
	}

	// Trade ledger
	tradesPath := filepath.Join(*outDir, sym+"_trades.csv")
	if err := writeFile(tradesPath, func(f *os.File) error {
		return export.WriteTradesCSV(f, rep.Backtest.Trades)
	}); err != nil {
		log.Fatalf("[backtest] write %s: %v", tradesPath, err)
	}

	// Bar table
	if *format != "" {
		ew := export.New(*format)
		if ew == nil {
			log.Fatalf("[backtest] unsupported export format %q", *format)
		}
		path := filepath.Join(*outDir, fmt.Sprintf("%s_%s.%s", sym, *interval, ew.Extension()))
		if err := writeFile(path, func(f *os.File) error { return ew.Write(f, rep.Rows()) }); err != nil {
			log.Fatalf("[backtest] write %s: %v", path, err)
		}
		log.Printf("[backtest] wrote %s", path)
	}

	runID := uuid.NewString()
	if writer != nil {
		if err := writer.RecordTrades(ctx, runID, sym, rep.Backtest.Trades); err != nil {
			log.Printf("[backtest] WARNING: journal failed: %v", err)
		}
	}

	printReport(rep, runID, tradesPath)
}

func writeFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printReport(rep *monitor.Report, runID, tradesPath string) {
	bt := rep.Backtest
	r := bt.Report

	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════╗")
	fmt.Println("║            BACKTEST COMPLETE             ║")
	fmt.Println("╠══════════════════════════════════════════╣")
	fmt.Printf("║  Ticker:          %-22s ║\n", rep.Ticker+" "+rep.Interval)
	fmt.Printf("║  Bars:            %-22d ║\n", len(rep.Rows()))
	fmt.Printf("║  Total return:    %-22s ║\n", fmt.Sprintf("%.2f%%", r.TotalReturnPct))
	fmt.Printf("║  Win rate:        %-22s ║\n", fmt.Sprintf("%.2f%%", r.WinRatePct))
	fmt.Printf("║  Avg profit:      %-22.2f ║\n", r.AvgProfit)
	fmt.Printf("║  Round trips:     %-22d ║\n", r.RoundTrips)
	fmt.Printf("║  Trades:          %-22d ║\n", r.TradeCount)
	fmt.Printf("║  Final cash:      %-22.2f ║\n", r.FinalCash)
	fmt.Printf("║  Final equity:    %-22.2f ║\n", bt.FinalEquity)
	fmt.Println("╚══════════════════════════════════════════╝")

	fmt.Println()
	fmt.Println("Latest signals:", strings.Join(rep.LatestTags.Strings(), ", "))

	fmt.Println()
	fmt.Printf("%-30s %10s %8s\n", "Signal", "Success %", "Count")
	for _, s := range rep.SuccessRates {
		if s.Occurrences == 0 {
			continue
		}
		note := ""
		if s.LowSample {
			note = "  (low sample)"
		}
		fmt.Printf("%-30s %10.2f %8d%s\n", s.Tag, s.RatePct, s.Occurrences, note)
	}

	fmt.Println()
	fmt.Printf("Trades written to %s (run %s)\n", tradesPath, runID)
}

package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/appigoo/stock-trend-monitor/internal/backtest"
)

// Writer serialises the analysis table in one format.
type Writer interface {
	Write(w io.Writer, rows []Row) error
	Extension() string
	ContentType() string
}

// New returns the writer for format (csv, json, parquet), or nil when the
// format is not supported.
func New(format string) Writer {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "csv":
		return CSV{}
	case "json":
		return JSON{}
	case "parquet":
		return Parquet{}
	default:
		return nil
	}
}

// CSV writes the table with a header row. Absent values are empty cells.
type CSV struct{}

func (CSV) Extension() string   { return "csv" }
func (CSV) ContentType() string { return "text/csv" }

var csvHeader = []string{
	"Datetime", "Open", "High", "Low", "Close", "Volume",
	"Price Change %", "Volume Change %", "Price Change Avg", "Volume Change Avg", "Volume Avg",
	"MACD", "Signal", "Histogram", "EMA5", "EMA10", "RSI", "SMA50", "SMA200",
	"ADX", "CCI", "ROC", "StochK", "StochD",
	"Continuous_Up", "Continuous_Down", "Signals",
}

func (CSV) Write(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			time.UnixMilli(r.Timestamp).UTC().Format(time.RFC3339),
			ftoa(r.Open), ftoa(r.High), ftoa(r.Low), ftoa(r.Close),
			strconv.FormatInt(r.Volume, 10),
			opt(r.PriceChangePct), opt(r.VolumeChangePct), opt(r.PriceChangeAvg), opt(r.VolumeChangeAvg), opt(r.VolumeAvg),
			opt(r.MACD), opt(r.Signal), opt(r.Histogram), opt(r.EMA5), opt(r.EMA10), opt(r.RSI), opt(r.SMA50), opt(r.SMA200),
			opt(r.ADX), opt(r.CCI), opt(r.ROC), opt(r.StochK), opt(r.StochD),
			strconv.Itoa(int(r.ContinuousUp)), strconv.Itoa(int(r.ContinuousDown)),
			r.Tags,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// JSON writes the table as an indented array.
type JSON struct{}

func (JSON) Extension() string   { return "json" }
func (JSON) ContentType() string { return "application/json" }

func (JSON) Write(w io.Writer, rows []Row) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if rows == nil {
		rows = []Row{}
	}
	return enc.Encode(rows)
}

// Parquet writes the table as a single Parquet file.
type Parquet struct{}

func (Parquet) Extension() string   { return "parquet" }
func (Parquet) ContentType() string { return "application/vnd.apache.parquet" }

func (Parquet) Write(w io.Writer, rows []Row) error {
	if err := parquet.Write(w, rows); err != nil {
		return fmt.Errorf("parquet: %w", err)
	}
	return nil
}

// WriteTradesCSV writes a trade ledger in the Date,Type,Price,Shares,Cash,Equity
// layout.
func WriteTradesCSV(w io.Writer, trades []backtest.Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Date", "Type", "Price", "Shares", "Cash", "Equity"}); err != nil {
		return err
	}
	for _, t := range trades {
		rec := []string{
			t.TS.UTC().Format(time.RFC3339),
			string(t.Side),
			ftoa(t.Price),
			strconv.FormatInt(t.Shares, 10),
			ftoa(t.Cash),
			ftoa(t.Equity),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func opt(v *float64) string {
	if v == nil {
		return ""
	}
	return ftoa(*v)
}

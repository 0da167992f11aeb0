// Package redis keeps the monitor's cross-cycle alert state and publishes the
// latest per-ticker report. Every call goes through a CircuitBreaker so a
// Redis outage degrades to local state instead of failing a cycle.
package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// Key layout.
const (
	alertKeyPrefix   = "alert:last:"
	reportKeyPrefix  = "report:latest:"
	reportChanPrefix = "pub:report:"

	// ReportPattern matches every per-ticker report channel.
	ReportPattern = reportChanPrefix + "*"

	defaultReportTTL = 30 * time.Minute
)

// AlertKey is the key holding a ticker's last alert time (unix nanos).
func AlertKey(ticker string) string { return alertKeyPrefix + ticker }

// ReportKey is the key holding a ticker's latest report JSON.
func ReportKey(ticker string) string { return reportKeyPrefix + ticker }

// ReportChannel is the pub/sub channel a ticker's reports are published on.
func ReportChannel(ticker string) string { return reportChanPrefix + ticker }

// TickerFromChannel extracts the ticker from a report channel name.
func TickerFromChannel(channel string) (string, bool) {
	if len(channel) <= len(reportChanPrefix) || channel[:len(reportChanPrefix)] != reportChanPrefix {
		return "", false
	}
	return channel[len(reportChanPrefix):], true
}

// Config configures the Redis connection.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Dial creates a Redis client and pings the server.
func Dial(ctx context.Context, cfg Config) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return client, nil
}

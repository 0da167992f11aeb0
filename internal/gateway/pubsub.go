package gateway

import (
	"context"
	"encoding/json"
	"log"

	goredis "github.com/go-redis/redis/v8"

	"github.com/appigoo/stock-trend-monitor/internal/monitor"
	"github.com/appigoo/stock-trend-monitor/internal/store/redis"
)

// ReportSource returns the stored report payload of a ticker, nil if none.
type ReportSource interface {
	LatestReport(ctx context.Context, ticker string) ([]byte, error)
}

// Seed loads the stored report of each ticker into the hub so the REST
// endpoints answer before the first cycle finishes. Reports already in the
// hub are kept. It returns the number of reports loaded.
func Seed(ctx context.Context, src ReportSource, hub *Hub, tickers []string) int {
	n := 0
	for _, ticker := range tickers {
		payload, err := src.LatestReport(ctx, ticker)
		if err != nil {
			log.Printf("[gateway] seed %s: %v", ticker, err)
			continue
		}
		if payload == nil {
			continue
		}
		var rep monitor.Report
		if err := json.Unmarshal(payload, &rep); err != nil {
			log.Printf("[gateway] seed %s: bad payload: %v", ticker, err)
			continue
		}
		if hub.restore(&rep) {
			n++
		}
	}
	if n > 0 {
		log.Printf("[gateway] seeded %d stored reports", n)
	}
	return n
}

// Relay subscribes to the Redis report channels and broadcasts every
// message to the hub's clients. It marks the hub relayed and blocks until
// ctx is cancelled.
func Relay(ctx context.Context, rdb *goredis.Client, hub *Hub) {
	pubsub := rdb.PSubscribe(ctx, redis.ReportPattern)
	defer pubsub.Close()

	hub.SetRelayed(true)
	defer hub.SetRelayed(false)

	log.Printf("[gateway] relaying %s", redis.ReportPattern)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			ticker, ok := redis.TickerFromChannel(msg.Channel)
			if !ok {
				continue
			}
			hub.Broadcaster.Broadcast(Channel(ticker), []byte(msg.Payload))
		}
	}
}

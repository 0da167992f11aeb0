package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// Publisher stores the latest report of each ticker and publishes it on the
// ticker's report channel.
type Publisher struct {
	client *goredis.Client
	cb     *CircuitBreaker
	ttl    time.Duration
}

// NewPublisher creates a Publisher. A ttl of 0 uses 30 minutes.
func NewPublisher(client *goredis.Client, cb *CircuitBreaker, ttl time.Duration) *Publisher {
	if ttl <= 0 {
		ttl = defaultReportTTL
	}
	return &Publisher{client: client, cb: cb, ttl: ttl}
}

// PublishReport sets the latest-report key and publishes the payload in one
// pipeline.
func (p *Publisher) PublishReport(ctx context.Context, ticker string, payload []byte) error {
	err := p.cb.Execute(func() error {
		pipe := p.client.Pipeline()
		pipe.Set(ctx, ReportKey(ticker), payload, p.ttl)
		pipe.Publish(ctx, ReportChannel(ticker), payload)
		_, err := pipe.Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("redis publish report %s: %w", ticker, err)
	}
	return nil
}

// LatestReport returns the stored report for ticker, or nil if none.
func (p *Publisher) LatestReport(ctx context.Context, ticker string) ([]byte, error) {
	var b []byte
	err := p.cb.Execute(func() error {
		v, err := p.client.Get(ctx, ReportKey(ticker)).Bytes()
		if errors.Is(err, goredis.Nil) {
			return nil
		}
		b = v
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("redis latest report %s: %w", ticker, err)
	}
	return b, nil
}

package marketdata

import (
	"context"
	"sync"
	"time"

	"github.com/appigoo/stock-trend-monitor/internal/model"
)

// Cache memoises FetchBars and PreviousClose results of an underlying
// provider for a fixed TTL. A zero TTL disables caching. The cache is
// in-process state: it starts empty on every restart.
type Cache struct {
	next Provider
	ttl  time.Duration
	now  func() time.Time

	mu     sync.Mutex
	bars   map[string]cachedSeries
	closes map[string]cachedClose
}

type cachedSeries struct {
	s       model.Series
	expires time.Time
}

type cachedClose struct {
	price   float64
	ok      bool
	expires time.Time
}

// NewCache wraps next with a TTL cache.
func NewCache(next Provider, ttl time.Duration) *Cache {
	return &Cache{
		next:   next,
		ttl:    ttl,
		now:    time.Now,
		bars:   make(map[string]cachedSeries),
		closes: make(map[string]cachedClose),
	}
}

func (c *Cache) FetchBars(ctx context.Context, ticker, period, interval string) (model.Series, error) {
	if c.ttl <= 0 {
		return c.next.FetchBars(ctx, ticker, period, interval)
	}
	key := ticker + "|" + period + "|" + interval

	c.mu.Lock()
	e, ok := c.bars[key]
	c.mu.Unlock()
	if ok && c.now().Before(e.expires) {
		return e.s, nil
	}

	s, err := c.next.FetchBars(ctx, ticker, period, interval)
	if err != nil {
		return s, err
	}
	c.mu.Lock()
	c.bars[key] = cachedSeries{s: s, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return s, nil
}

func (c *Cache) PreviousClose(ctx context.Context, ticker string) (float64, bool, error) {
	if c.ttl <= 0 {
		return c.next.PreviousClose(ctx, ticker)
	}

	c.mu.Lock()
	e, hit := c.closes[ticker]
	c.mu.Unlock()
	if hit && c.now().Before(e.expires) {
		return e.price, e.ok, nil
	}

	price, ok, err := c.next.PreviousClose(ctx, ticker)
	if err != nil {
		return 0, false, err
	}
	c.mu.Lock()
	c.closes[ticker] = cachedClose{price: price, ok: ok, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return price, ok, nil
}

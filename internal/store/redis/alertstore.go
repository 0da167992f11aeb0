package redis

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// AlertStore keeps per-ticker last-alert times in Redis so debouncing
// survives restarts. A local mirror answers while Redis is unreachable,
// and writes made during an outage are flushed when the circuit closes.
type AlertStore struct {
	client *goredis.Client
	cb     *CircuitBreaker

	mu      sync.Mutex
	local   map[string]time.Time
	pending map[string]time.Time

	// OnFallback is called each time a call is answered locally (for metrics).
	OnFallback func()
}

// NewAlertStore creates an AlertStore over client guarded by cb.
func NewAlertStore(client *goredis.Client, cb *CircuitBreaker) *AlertStore {
	s := &AlertStore{
		client:  client,
		cb:      cb,
		local:   make(map[string]time.Time),
		pending: make(map[string]time.Time),
	}

	prev := cb.OnStateChange
	cb.OnStateChange = func(from, to State) {
		if prev != nil {
			prev(from, to)
		}
		if to == StateClosed {
			go s.flush(context.Background())
		}
	}
	return s
}

// LastAlert returns the later of the Redis and local timestamps for ticker.
// Redis failures are logged and answered from the local mirror.
func (s *AlertStore) LastAlert(ctx context.Context, ticker string) (time.Time, bool, error) {
	var remote time.Time
	var found bool
	err := s.cb.Execute(func() error {
		v, err := s.client.Get(ctx, AlertKey(ticker)).Int64()
		if errors.Is(err, goredis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		remote, found = time.Unix(0, v).UTC(), true
		return nil
	})
	if err != nil {
		s.fallback("get", ticker, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.local[ticker]; ok && (!found || t.After(remote)) {
		return t, true, nil
	}
	if found {
		s.local[ticker] = remote
	}
	return remote, found, nil
}

// SetLastAlert records t locally and in Redis. A failed Redis write is
// queued for the next flush rather than returned.
func (s *AlertStore) SetLastAlert(ctx context.Context, ticker string, t time.Time) error {
	s.mu.Lock()
	s.local[ticker] = t
	s.mu.Unlock()

	if err := s.cb.Execute(func() error {
		return s.client.Set(ctx, AlertKey(ticker), t.UnixNano(), 0).Err()
	}); err != nil {
		s.fallback("set", ticker, err)
		s.mu.Lock()
		s.pending[ticker] = t
		s.mu.Unlock()
	}
	return nil
}

// PendingCount returns the number of writes waiting to be flushed.
func (s *AlertStore) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *AlertStore) fallback(op, ticker string, err error) {
	log.Printf("[redis] alert %s %s: %v (using local state)", op, ticker, err)
	if s.OnFallback != nil {
		s.OnFallback()
	}
}

// flush replays queued writes. Entries that fail again stay queued.
func (s *AlertStore) flush(ctx context.Context) {
	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return
	}
	toFlush := s.pending
	s.pending = make(map[string]time.Time)
	s.mu.Unlock()

	flushed := 0
	for ticker, t := range toFlush {
		err := s.cb.Execute(func() error {
			return s.client.Set(ctx, AlertKey(ticker), t.UnixNano(), 0).Err()
		})
		if err != nil {
			s.mu.Lock()
			if _, newer := s.pending[ticker]; !newer {
				s.pending[ticker] = t
			}
			s.mu.Unlock()
			continue
		}
		flushed++
	}
	log.Printf("[redis] flushed %d buffered alert writes", flushed)
}

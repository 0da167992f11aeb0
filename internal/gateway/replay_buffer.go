package gateway

import (
	"sync"
	"time"
)

// ReplayEntry is one broadcast envelope kept for replay.
type ReplayEntry struct {
	Seq  int64
	TS   time.Time
	Data []byte // envelope JSON
}

// ReplayBuffer is a fixed-size ring of the most recent envelopes of one
// channel, so reconnecting clients can backfill the reports they missed.
type ReplayBuffer struct {
	mu   sync.RWMutex
	buf  []ReplayEntry
	cap  int
	pos  int // next write position
	full bool
}

// NewReplayBuffer creates a replay buffer with the given capacity.
func NewReplayBuffer(capacity int) *ReplayBuffer {
	if capacity <= 0 {
		capacity = 100
	}
	return &ReplayBuffer{
		buf: make([]ReplayEntry, capacity),
		cap: capacity,
	}
}

// Push appends an envelope, overwriting the oldest entry when full.
func (rb *ReplayBuffer) Push(seq int64, ts time.Time, data []byte) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	cp := make([]byte, len(data))
	copy(cp, data)

	rb.buf[rb.pos] = ReplayEntry{Seq: seq, TS: ts, Data: cp}
	rb.pos = (rb.pos + 1) % rb.cap
	if rb.pos == 0 {
		rb.full = true
	}
}

// Range returns entries with seq in [fromSeq, toSeq], oldest first.
func (rb *ReplayBuffer) Range(fromSeq, toSeq int64) []ReplayEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	var result []ReplayEntry
	for i := 0; i < rb.len(); i++ {
		e := rb.buf[rb.index(i)]
		if e.Seq >= fromSeq && e.Seq <= toSeq {
			result = append(result, e)
		}
	}
	return result
}

// Since returns entries newer than seq, oldest first.
func (rb *ReplayBuffer) Since(seq int64) []ReplayEntry {
	return rb.Range(seq+1, 1<<62)
}

// After returns entries broadcast strictly after ts, oldest first.
func (rb *ReplayBuffer) After(ts time.Time) []ReplayEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	var result []ReplayEntry
	for i := 0; i < rb.len(); i++ {
		e := rb.buf[rb.index(i)]
		if e.TS.After(ts) {
			result = append(result, e)
		}
	}
	return result
}

// Len returns the number of entries currently in the buffer.
func (rb *ReplayBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.len()
}

func (rb *ReplayBuffer) len() int {
	if rb.full {
		return rb.cap
	}
	return rb.pos
}

// index converts a logical index (0 = oldest) to a physical buffer index.
func (rb *ReplayBuffer) index(logical int) int {
	if rb.full {
		return (rb.pos + logical) % rb.cap
	}
	return logical
}

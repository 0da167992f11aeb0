// Package gateway is the presentation surface of the monitor: REST endpoints
// over the latest per-ticker reports and a WebSocket hub that pushes each new
// report to connected clients.
package gateway

import (
	"context"
	"encoding/json"
	"log"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/appigoo/stock-trend-monitor/internal/monitor"
)

const channelPrefix = "report:"

// Channel returns the WebSocket channel a ticker's reports are sent on.
func Channel(ticker string) string { return channelPrefix + ticker }

// channelPattern turns a subscription argument into a channel pattern:
// "TSLA" and "report:tsla" both become "report:TSLA", "*" becomes "report:*".
func channelPattern(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, channelPrefix)
	return channelPrefix + strings.ToUpper(s)
}

// matchChannel reports whether channel matches pattern ("*" matches any
// ticker).
func matchChannel(pattern, channel string) bool {
	ok, err := path.Match(pattern, channel)
	return err == nil && ok
}

// Hub keeps the latest report of every ticker and fans new reports out to
// WebSocket clients.
//
// When reports also travel through Redis (see Relay), the hub is marked
// relayed: Publish then only stores the report and the broadcast happens
// when it comes back from the pub/sub channel, so every gateway replica
// sees the same sequence numbers.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	reports map[string]*monitor.Report
	latest  map[string]latestEntry
	seq     int64
	relayed bool

	// Per-channel monotonic sequence numbers for gap detection
	channelSeqs map[string]int64

	// Per-channel replay buffers for gap backfill
	replayBufs map[string]*ReplayBuffer
	replaySize int

	Broadcaster *Broadcaster

	// OnClientCount is called with the client count after each connect
	// or disconnect (for metrics).
	OnClientCount func(n int)
}

type latestEntry struct {
	Data      json.RawMessage
	TS        time.Time
	Seq       int64 // per-channel seq
	GlobalSeq int64
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	h := &Hub{
		clients:     make(map[*Client]bool),
		reports:     make(map[string]*monitor.Report),
		latest:      make(map[string]latestEntry),
		channelSeqs: make(map[string]int64),
		replayBufs:  make(map[string]*ReplayBuffer),
		replaySize:  100,
	}
	h.Broadcaster = NewBroadcaster(h)
	return h
}

// SetRelayed switches broadcasting to the Redis relay path.
func (h *Hub) SetRelayed(v bool) {
	h.mu.Lock()
	h.relayed = v
	h.mu.Unlock()
}

// Publish stores the report and broadcasts it unless relayed.
// It implements monitor.Sink.
func (h *Hub) Publish(_ context.Context, r *monitor.Report) error {
	h.mu.Lock()
	h.reports[r.Ticker] = r
	relayed := h.relayed
	h.mu.Unlock()

	if relayed {
		return nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	h.Broadcaster.Broadcast(Channel(r.Ticker), data)
	return nil
}

// restore stores r without broadcasting unless a report for its ticker is
// already present.
func (h *Hub) restore(r *monitor.Report) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r.Ticker == "" {
		return false
	}
	if _, ok := h.reports[r.Ticker]; ok {
		return false
	}
	h.reports[r.Ticker] = r
	return true
}

// Report returns the latest report of ticker.
func (h *Hub) Report(ticker string) (*monitor.Report, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.reports[ticker]
	return r, ok
}

// Reports returns the latest report of every ticker, ordered by ticker.
func (h *Hub) Reports() []*monitor.Report {
	h.mu.RLock()
	out := make([]*monitor.Report, 0, len(h.reports))
	for _, r := range h.reports {
		out = append(out, r)
	}
	h.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

// Register attaches an upgraded connection and starts its pumps. Latest
// channel payloads newer than lastTS (RFC3339Nano, optional) are sent first.
func (h *Hub) Register(conn *websocket.Conn, lastTS string) *Client {
	client := &Client{
		conn: conn,
		send: make(chan []byte, 64),
		hub:  h,
		subs: make(map[string]bool),
	}

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	log.Printf("[gateway] ws client connected (%d total)", count)
	if h.OnClientCount != nil {
		h.OnClientCount(count)
	}

	client.sendInitialState(lastTS)
	go client.writePump()
	go client.readPump()
	return client
}

// RemoveClient removes a client from the hub.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	count := len(h.clients)
	h.mu.Unlock()

	if h.OnClientCount != nil {
		h.OnClientCount(count)
	}
}

// GetReplayRange returns buffered envelopes for a channel in [fromSeq, toSeq].
func (h *Hub) GetReplayRange(channel string, fromSeq, toSeq int64) [][]byte {
	h.mu.RLock()
	rb, exists := h.replayBufs[channel]
	h.mu.RUnlock()
	if !exists {
		return nil
	}
	entries := rb.Range(fromSeq, toSeq)
	result := make([][]byte, len(entries))
	for i, e := range entries {
		result[i] = e.Data
	}
	return result
}

// GetReplayAfter returns buffered envelopes broadcast after ts on every
// channel matching pattern, grouped by channel and oldest first within one.
func (h *Hub) GetReplayAfter(pattern string, ts time.Time) [][]byte {
	h.mu.RLock()
	channels := make([]string, 0, len(h.replayBufs))
	for ch := range h.replayBufs {
		if matchChannel(pattern, ch) {
			channels = append(channels, ch)
		}
	}
	bufs := make([]*ReplayBuffer, len(channels))
	sort.Strings(channels)
	for i, ch := range channels {
		bufs[i] = h.replayBufs[ch]
	}
	h.mu.RUnlock()

	var result [][]byte
	for _, rb := range bufs {
		for _, e := range rb.After(ts) {
			result = append(result, e.Data)
		}
	}
	return result
}

// GetChannelSeq returns the current sequence number for a channel.
func (h *Hub) GetChannelSeq(channel string) int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.channelSeqs[channel]
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

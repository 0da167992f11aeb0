package gateway

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Client represents a single WebSocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	// Subscribed channel patterns. Empty means every channel. Guarded by hub.mu.
	subs map[string]bool
}

// clientMsg is any message a client sends.
//
//	{"type":"SUBSCRIBE","channels":["report:TSLA","report:*"]}
//	{"type":"UNSUBSCRIBE","channels":["report:TSLA"]}
//	{"type":"REPLAY","channel":"report:TSLA","since":"2026-03-02T15:04:05Z"}
//	{"type":"REPLAY","channel":"report:TSLA","from":3,"to":7}
//	{"ping":1712345678901}
//
// Bare tickers ("TSLA") are accepted wherever a channel is.
type clientMsg struct {
	Type     string   `json:"type"`
	Channels []string `json:"channels"`
	Channel  string   `json:"channel"`
	Since    string   `json:"since"`
	From     int64    `json:"from"`
	To       int64    `json:"to"`
	Ping     int64    `json:"ping"`
}

func (c *Client) sendInitialState(lastTS string) {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()

	var cutoff time.Time
	if lastTS != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, lastTS); err == nil {
			cutoff = parsed
		}
	}

	for channel, entry := range c.hub.latest {
		if !cutoff.IsZero() && !entry.TS.After(cutoff) {
			continue
		}
		c.trySend(envelope(channel, entry.Data, entry.TS, entry.GlobalSeq, entry.Seq, true))
	}
}

// trySend queues msg without blocking; a full buffer drops it.
func (c *Client) trySend(msg []byte) {
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
		log.Println("[gateway] ws client disconnected")
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		var msg clientMsg
		if json.Unmarshal(raw, &msg) != nil {
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg clientMsg) {
	switch msg.Type {
	case "SUBSCRIBE":
		c.hub.mu.Lock()
		for _, ch := range msg.Channels {
			c.subs[channelPattern(ch)] = true
		}
		c.hub.mu.Unlock()
		log.Printf("[gateway] client subscribed: %v", msg.Channels)

	case "UNSUBSCRIBE":
		c.hub.mu.Lock()
		for _, ch := range msg.Channels {
			delete(c.subs, channelPattern(ch))
		}
		c.hub.mu.Unlock()

	case "REPLAY":
		c.replay(msg)

	default:
		if msg.Ping > 0 {
			pong, _ := json.Marshal(map[string]interface{}{
				"type":      "pong",
				"ping":      msg.Ping,
				"server_ts": time.Now().UnixMilli(),
			})
			c.reply(pong)
		}
	}
}

// replay resends buffered envelopes, by timestamp when since is set and by
// channel sequence range otherwise.
func (c *Client) replay(msg clientMsg) {
	if msg.Channel == "" {
		c.replyError("REPLAY needs a channel")
		return
	}
	channel := channelPattern(msg.Channel)

	var envs [][]byte
	switch {
	case msg.Since != "":
		since, err := time.Parse(time.RFC3339Nano, msg.Since)
		if err != nil {
			c.replyError("REPLAY since must be RFC3339")
			return
		}
		envs = c.hub.GetReplayAfter(channel, since)
	default:
		to := msg.To
		if to <= 0 {
			to = c.hub.GetChannelSeq(channel)
		}
		envs = c.hub.GetReplayRange(channel, msg.From, to)
	}
	for _, env := range envs {
		c.reply(env)
	}
}

func (c *Client) replyError(text string) {
	b, _ := json.Marshal(map[string]string{"type": "error", "error": text})
	c.reply(b)
}

// reply queues msg under the hub read lock so it never races RemoveClient
// closing the send channel.
func (c *Client) reply(msg []byte) {
	c.hub.mu.RLock()
	if c.hub.clients[c] {
		c.trySend(msg)
	}
	c.hub.mu.RUnlock()
}

// matchesChannel reports whether the client wants messages of channel.
// Callers hold hub.mu.
func (c *Client) matchesChannel(channel string) bool {
	if len(c.subs) == 0 {
		return true
	}
	for pattern := range c.subs {
		if matchChannel(pattern, channel) {
			return true
		}
	}
	return false
}

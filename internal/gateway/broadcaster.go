package gateway

import (
	"log"
	"strconv"
	"time"
)

// Broadcaster builds envelopes and sends them to subscribed clients.
type Broadcaster struct {
	hub *Hub
	now func() time.Time
}

// NewBroadcaster creates a Broadcaster backed by the given Hub.
func NewBroadcaster(hub *Hub) *Broadcaster {
	return &Broadcaster{hub: hub, now: time.Now}
}

// Broadcast records data as the latest payload of channel and sends its
// envelope to every client whose subscriptions match the channel.
func (b *Broadcaster) Broadcast(channel string, data []byte) {
	now := b.now().UTC()

	b.hub.mu.Lock()
	b.hub.channelSeqs[channel]++
	channelSeq := b.hub.channelSeqs[channel]
	b.hub.seq++
	seq := b.hub.seq
	b.hub.latest[channel] = latestEntry{Data: data, TS: now, Seq: channelSeq, GlobalSeq: seq}

	rb, exists := b.hub.replayBufs[channel]
	if !exists {
		rb = NewReplayBuffer(b.hub.replaySize)
		b.hub.replayBufs[channel] = rb
	}
	b.hub.mu.Unlock()

	buf := envelope(channel, data, now, seq, channelSeq, false)
	rb.Push(channelSeq, now, buf)

	b.hub.mu.RLock()
	defer b.hub.mu.RUnlock()
	for client := range b.hub.clients {
		if !client.matchesChannel(channel) {
			continue
		}
		select {
		case client.send <- buf:
		default:
			log.Printf("[gateway] client send buffer full, dropped %s seq %d", channel, channelSeq)
		}
	}
}

// envelope hand-crafts {"channel":..,"data":..,"ts":..,"seq":N,"channel_seq":N}.
// data must already be valid JSON.
func envelope(channel string, data []byte, ts time.Time, seq, channelSeq int64, initial bool) []byte {
	buf := make([]byte, 0, len(channel)+len(data)+160)
	buf = append(buf, `{"channel":"`...)
	buf = append(buf, channel...)
	buf = append(buf, `","data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = ts.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, `,"channel_seq":`...)
	buf = strconv.AppendInt(buf, channelSeq, 10)
	if initial {
		buf = append(buf, `,"initial":true`...)
	}
	buf = append(buf, '}')
	return buf
}

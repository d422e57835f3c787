package ws

import (
	"encoding/json"
	"sort"
	"sync"

	"oraclecraft.ai/internal/protocol"
)

// client holds one session's outbound queue. Until activated it buffers live
// events so the catch-up replay and the live stream join without gaps.
type client struct {
	id  string
	out chan []byte

	mu      sync.Mutex
	ready   bool
	pending []protocol.Event
	lastSeq uint64
}

func newClient(id string) *client {
	return &client{id: id, out: make(chan []byte, outQueue)}
}

func (c *client) deliver(ev protocol.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ready {
		c.pending = append(c.pending, ev)
		return
	}
	c.sendEventLocked(ev)
}

func (c *client) activate(replay []protocol.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	all := append(replay, c.pending...)
	sort.SliceStable(all, func(i, j int) bool { return all[i].Seq < all[j].Seq })
	for _, ev := range all {
		c.sendEventLocked(ev)
	}
	c.pending = nil
	c.ready = true
}

func (c *client) sendEventLocked(ev protocol.Event) {
	if ev.Seq <= c.lastSeq {
		return
	}
	c.lastSeq = ev.Seq
	c.sendJSON(protocol.EventMsg{Type: protocol.TypeEvent, ProtocolVersion: protocol.Version, Event: ev})
}

func (c *client) sendJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	sendLatest(c.out, b)
}

// sendLatest never blocks: when the queue is full the oldest message is
// dropped.
func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}

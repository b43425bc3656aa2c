// Package realtime broadcasts named messages to connected websocket clients.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

const sendBuffer = 32

// Message is the frame pushed to subscribers.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type conn interface {
	ID() int64
	Chan() chan<- []byte
}

// Hub keeps the set of connected subscribers. Subscribers that are not
// connected at broadcast time miss the message; there is no replay.
type Hub struct {
	mu     sync.Mutex
	conns  map[int64]conn
	nextID atomic.Int64
	log    logrus.FieldLogger
}

func NewHub(log logrus.FieldLogger) *Hub {
	if log == nil {
		log = logrus.New()
	}
	return &Hub{
		conns: make(map[int64]conn, 64),
		log:   log,
	}
}

// Broadcast encodes the message once and enqueues it on every connection.
// A connection whose send buffer is full drops the message.
func (h *Hub) Broadcast(_ context.Context, name string, payload any) error {
	data, err := json.Marshal(Message{Type: name, Payload: payload})
	if err != nil {
		return fmt.Errorf("encode %s message: %w", name, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.conns {
		select {
		case c.Chan() <- data:
		default:
			h.log.WithField("conn", id).Warnf("dropping %s message, send buffer full", name)
		}
	}
	return nil
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.conns {
		close(c.Chan())
		delete(h.conns, id)
	}
}

func (h *Hub) signon(c conn) {
	h.mu.Lock()
	h.conns[c.ID()] = c
	h.mu.Unlock()
}

// signoff removes c and closes its send channel, unless Close already did.
func (h *Hub) signoff(c conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[c.ID()]; !ok {
		return
	}
	delete(h.conns, c.ID())
	close(c.Chan())
}

func (h *Hub) newID() int64 { return h.nextID.Add(1) }

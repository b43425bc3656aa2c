package realtime

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 50 * time.Second
	pongWait     = 60 * time.Second
)

type wsConn struct {
	id   int64
	wc   *websocket.Conn
	send chan []byte
}

func (c *wsConn) ID() int64           { return c.id }
func (c *wsConn) Chan() chan<- []byte { return c.send }

// ServeWS upgrades the request to a websocket and keeps the client
// subscribed until it disconnects. Client frames are read and discarded.
func (h *Hub) ServeWS(checkOrigin func(*http.Request) bool) http.HandlerFunc {
	upgr := &websocket.Upgrader{CheckOrigin: checkOrigin}
	return func(w http.ResponseWriter, r *http.Request) {
		wc, err := upgr.Upgrade(w, r, nil)
		if err != nil {
			h.log.Warnf("websocket upgrade failed: %v", err)
			return
		}
		c := &wsConn{id: h.newID(), wc: wc, send: make(chan []byte, sendBuffer)}
		log := h.log.WithField("conn", c.id)

		h.signon(c)
		log.Debug("subscriber connected")
		done := make(chan struct{})
		go func() {
			defer close(done)
			c.writeAll()
		}()

		c.readAll()
		h.signoff(c)
		<-done
		log.Debug("subscriber disconnected")
	}
}

func (c *wsConn) readAll() {
	c.wc.SetReadLimit(4096)
	_ = c.wc.SetReadDeadline(time.Now().Add(pongWait))
	c.wc.SetPongHandler(func(string) error {
		return c.wc.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.wc.NextReader(); err != nil {
			return
		}
	}
}

func (c *wsConn) writeAll() {
	t := time.NewTicker(pingInterval)
	defer t.Stop()
	defer c.wc.Close()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.wc.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.wc.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.wc.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-t.C:
			_ = c.wc.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.wc.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

package gateway

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"arcana-reading-server/internal/infra/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Browser clients connect from the app's own origin; auth is out of scope.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConn adapts one gorilla websocket to the Conn interface. Writes go
// through a buffered queue drained by a single write pump so job goroutines
// never block on a slow client.
type wsConn struct {
	ws   *websocket.Conn
	out  chan Envelope
	done chan struct{}
	once sync.Once
}

var _ Conn = (*wsConn)(nil)

func newWSConn(ws *websocket.Conn, buffer int) *wsConn {
	return &wsConn{
		ws:   ws,
		out:  make(chan Envelope, buffer),
		done: make(chan struct{}),
	}
}

func (c *wsConn) Send(env Envelope) bool {
	select {
	case <-c.done:
		return false
	case c.out <- env:
		return true
	default:
		// Queue full: drop rather than stall the producing job.
		return false
	}
}

func (c *wsConn) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case <-c.done:
			return
		case env := <-c.out:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWS upgrades an HTTP request and runs the connection until it drops.
func (g *Gateway) ServeWS(sendBuffer int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			g.log.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}
		c := newWSConn(ws, sendBuffer)
		metrics.IncConnections()
		go c.writePump()
		g.readLoop(c)
	}
}

func (g *Gateway) readLoop(c *wsConn) {
	defer func() {
		g.Disconnect(c)
		c.Close()
		metrics.DecConnections()
	}()

	c.ws.SetReadLimit(maxMsgSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.log.Debug().Err(err).Msg("websocket closed unexpectedly")
			}
			return
		}
		g.HandleMessage(c, raw)
	}
}

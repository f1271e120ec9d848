package push

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	// writeWait bounds a single websocket write.
	writeWait = 10 * time.Second
	// pongWait bounds the wait for the next pong from the peer.
	pongWait = 60 * time.Second
	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// sendBuffer is the per-channel outbound queue size.
	sendBuffer = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSChannel adapts a websocket connection to the Channel interface. Outbound
// messages go through a buffered queue; a full queue drops the message
// instead of blocking the publisher.
type WSChannel struct {
	bus        *Bus
	resellerID uint64
	conn       *websocket.Conn
	send       chan []byte
}

// ServeWS upgrades the request, registers the channel on the bus, and runs
// the read/write pumps until the connection closes.
func ServeWS(bus *Bus, resellerID uint64, w http.ResponseWriter, r *http.Request) error {
	conn, errUpgrade := upgrader.Upgrade(w, r, nil)
	if errUpgrade != nil {
		return errUpgrade
	}
	ch := &WSChannel{
		bus:        bus,
		resellerID: resellerID,
		conn:       conn,
		send:       make(chan []byte, sendBuffer),
	}
	bus.Register(resellerID, ch)
	go ch.writePump()
	go ch.readPump()
	return nil
}

// Send queues a message without blocking. Returns false when the queue is full.
func (c *WSChannel) Send(message []byte) bool {
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

// readPump discards inbound frames and detects disconnects.
func (c *WSChannel) readPump() {
	defer func() {
		c.bus.Unregister(c.resellerID, c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, errRead := c.conn.ReadMessage(); errRead != nil {
			if websocket.IsUnexpectedCloseError(errRead, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(errRead).Debug("push: websocket closed")
			}
			return
		}
	}
}

// writePump drains the send queue and keeps the connection alive with pings.
func (c *WSChannel) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if errWrite := c.conn.WriteMessage(websocket.TextMessage, message); errWrite != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if errPing := c.conn.WriteMessage(websocket.PingMessage, nil); errPing != nil {
				return
			}
		}
	}
}

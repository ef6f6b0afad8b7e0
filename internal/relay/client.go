package relay

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// https://github.com/gorilla/websocket/blob/main/examples/chat/client.go
var (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. A full stroke is re-sent on
	// every extension, so this bounds the longest stroke.
	maxMessageSize int64 = 1 << 20

	sendBuffer = 256
)

// Client is one websocket connection to the relay.
type Client struct {
	connection *websocket.Conn
	manager    *Manager
	send       chan []byte
	logger     *slog.Logger

	// Set once the client has joined; guarded by the manager lock.
	roomID   string
	username string

	closeOnce sync.Once
	done      chan struct{}
}

func newClient(conn *websocket.Conn, m *Manager) *Client {
	return &Client{
		connection: conn,
		manager:    m,
		send:       make(chan []byte, sendBuffer),
		logger:     m.logger.With("remote", conn.RemoteAddr().String()),
		done:       make(chan struct{}),
	}
}

func (c *Client) joined() bool { return c.roomID != "" }

// enqueue hands data to the write pump without blocking. A member that
// cannot keep up misses the frame.
func (c *Client) enqueue(data []byte) {
	select {
	case c.send <- data:
	case <-c.done:
	default:
		c.logger.Warn("send buffer full, dropping frame", "room", c.roomID, "user", c.username)
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.connection.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		c.connection.Close()
	})
}

func (c *Client) writeMsgs() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case data := <-c.send:
			c.connection.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.connection.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug("could not write message to client", "error", err)
				return
			}
		case <-ticker.C:
			c.connection.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("could not ping client", "error", err)
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Client) readMsgs() {
	defer func() {
		c.manager.removeClient(c)
		c.close()
	}()

	c.connection.SetReadLimit(maxMessageSize)
	c.connection.SetReadDeadline(time.Now().Add(pongWait))
	c.connection.SetPongHandler(func(string) error {
		return c.connection.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.connection.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info("connection closed unexpectedly", "error", err)
			}
			return
		}
		c.manager.routeEvent(c, payload)
	}
}

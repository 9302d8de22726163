package server

import (
	"encoding/json"
	"sync"
	"time"

	"market-relay/src/helpers"
	"market-relay/src/models"
	"market-relay/src/relay"

	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	writeWait      = 2 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// -----------------------------------------------------------------------------
// Client Structure
// -----------------------------------------------------------------------------

type Client struct {
	server   *RelayServer
	endpoint *feedEndpoint
	conn     *websocket.Conn
	session  *relay.ClientSession
	events   <-chan models.MTickEvent

	done      chan struct{}
	closeOnce sync.Once
}

func newClient(s *RelayServer, f *feedEndpoint, conn *websocket.Conn, session *relay.ClientSession, events <-chan models.MTickEvent) *Client {
	return &Client{
		server:   s,
		endpoint: f,
		conn:     conn,
		session:  session,
		events:   events,
		done:     make(chan struct{}),
	}
}

// -----------------------------------------------------------------------------

// close detaches from the relay and drops the connection. Safe from both pumps.
func (c *Client) close(reason error) {
	c.closeOnce.Do(func() {
		close(c.done)
		c.session.Close()
		c.conn.Close()
		c.server.clientGone(c.endpoint)

		if reason != nil {
			c.server.Logger.Info("Client on %s closed: %v", c.endpoint.name, reason)
		} else {
			c.server.Logger.Info("WebSocket connection closed for %s feed", c.endpoint.name)
		}
	})
}

// -----------------------------------------------------------------------------
// readPump - consumes client messages and watches the connection
// -----------------------------------------------------------------------------

func (c *Client) readPump() {
	defer c.close(nil)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.server.Logger.Info("WebSocket error: %v", err)
			}
			return
		}

		var msg models.MClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.server.Logger.Debug("Ignoring malformed client message on %s: %v", c.endpoint.name, err)
			continue
		}
		c.server.Logger.Info("Received message from WebSocket client: %s", msg.Message)
	}
}

// -----------------------------------------------------------------------------
// writePump - pushes ticks to the client in upstream order
// -----------------------------------------------------------------------------

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return

		case ev, ok := <-c.events:
			if !ok {
				c.close(nil)
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(c.endpoint.render(ev)); err != nil {
				c.close(helpers.NewClientTransportError("write failed", err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close(helpers.NewClientTransportError("ping failed", err))
				return
			}
		}
	}
}

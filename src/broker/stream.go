package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"market-relay/src/helpers"
	"market-relay/src/interfaces"
	"market-relay/src/logger"
	"market-relay/src/models"

	"github.com/gorilla/websocket"
)

const (
	pingMessage  = "ping"
	pongMessage  = "pong"
	writeTimeout = 5 * time.Second
)

// streamError is the text frame the feed sends when a request is rejected.
type streamError struct {
	CorrelationID string `json:"correlationID"`
	ErrorCode     string `json:"errorCode"`
	ErrorMessage  string `json:"errorMessage"`
}

// -----------------------------------------------------------------------------

// StreamDialer opens SmartAPI streaming connections.
type StreamDialer struct {
	URL        string
	APIKey     string
	ClientCode string
	Heartbeat  time.Duration

	dialer *websocket.Dialer
	logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewStreamDialer(cfg models.MBrokerConfig, heartbeat time.Duration, log *logger.Logger) *StreamDialer {
	if heartbeat <= 0 {
		heartbeat = 10 * time.Second
	}
	return &StreamDialer{
		URL:        cfg.StreamURL,
		APIKey:     cfg.APIKey,
		ClientCode: cfg.ClientCode,
		Heartbeat:  heartbeat,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		logger: log,
	}
}

// -----------------------------------------------------------------------------

// Dial performs the authenticated handshake. A 401 or 403 response is an
// AuthError so the caller can drop the cached session.
func (d *StreamDialer) Dial(ctx context.Context, session models.MBrokerSession) (interfaces.IFeedConn, error) {
	header := http.Header{}
	header.Set("Authorization", session.AuthToken)
	header.Set("x-api-key", d.APIKey)
	header.Set("x-client-code", d.ClientCode)
	header.Set("x-feed-token", session.FeedToken)

	conn, resp, err := d.dialer.DialContext(ctx, d.URL, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, helpers.NewAuthError(fmt.Sprintf("stream handshake rejected (%d)", resp.StatusCode), err)
		}
		return nil, helpers.NewTransportError("stream dial failed", err)
	}

	sc := &streamConn{
		conn:      conn,
		heartbeat: d.Heartbeat,
		done:      make(chan struct{}),
		logger:    d.logger,
	}
	sc.touch()
	go sc.keepAlive()

	return sc, nil
}

// -----------------------------------------------------------------------------
// streamConn
// -----------------------------------------------------------------------------

type streamConn struct {
	conn      *websocket.Conn
	heartbeat time.Duration
	logger    *logger.Logger

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

// -----------------------------------------------------------------------------

func (c *streamConn) Send(req models.MStreamRequest) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(req); err != nil {
		return helpers.NewTransportError("failed to send stream request", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// ReadFrame returns the next binary frame. Heartbeat replies and error notices
// arrive as text and are consumed here.
func (c *streamConn) ReadFrame() ([]byte, error) {
	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, helpers.NewTransportError("stream read failed", err)
		}
		c.touch()

		switch mt {
		case websocket.BinaryMessage:
			return data, nil
		case websocket.TextMessage:
			if string(data) == pongMessage {
				continue
			}
			var se streamError
			if err := json.Unmarshal(data, &se); err == nil && se.ErrorCode != "" {
				c.logger.Warning("Stream rejected request %s: %s %s", se.CorrelationID, se.ErrorCode, se.ErrorMessage)
				continue
			}
			c.logger.Debug("Ignoring text frame: %s", string(data))
		}
	}
}

// -----------------------------------------------------------------------------

func (c *streamConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)

		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()

		err = c.conn.Close()
	})
	return err
}

// -----------------------------------------------------------------------------

// touch extends the read deadline. Three missed heartbeats end the connection.
func (c *streamConn) touch() {
	_ = c.conn.SetReadDeadline(time.Now().Add(3 * c.heartbeat))
}

// -----------------------------------------------------------------------------

func (c *streamConn) keepAlive() {
	ticker := time.NewTicker(c.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := c.conn.WriteMessage(websocket.TextMessage, []byte(pingMessage))
			c.writeMu.Unlock()
			if err != nil {
				c.logger.Debug("Heartbeat failed: %v", err)
				return
			}
		}
	}
}

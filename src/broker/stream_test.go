package broker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"market-relay/src/helpers"
	"market-relay/src/logger"
	"market-relay/src/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func testDialer(url string) *StreamDialer {
	cfg := models.MBrokerConfig{APIKey: "key", ClientCode: "A123", StreamURL: url}
	return NewStreamDialer(cfg, 50*time.Millisecond, logger.NewNop())
}

var session = models.MBrokerSession{AuthToken: "Bearer jwt", FeedToken: "feed"}

func TestStreamDialSendsHeadersAndRelaysBinaryFrames(t *testing.T) {
	frame := quoteFrame(quoteFields{mode: models.ModeQuote, exchange: 1, token: "2885", ltp: 100})
	gotRequest := make(chan models.MStreamRequest, 1)
	gotPing := make(chan struct{}, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer jwt", r.Header.Get("Authorization"))
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		assert.Equal(t, "A123", r.Header.Get("x-client-code"))
		assert.Equal(t, "feed", r.Header.Get("x-feed-token"))

		c, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer c.Close()

		var req models.MStreamRequest
		if !assert.NoError(t, c.ReadJSON(&req)) {
			return
		}
		gotRequest <- req

		c.WriteMessage(websocket.TextMessage, []byte(`{"correlationID":"x","errorCode":"E1002","errorMessage":"Invalid Request"}`))
		c.WriteMessage(websocket.BinaryMessage, frame)

		for {
			mt, data, err := c.ReadMessage()
			if err != nil {
				return
			}
			if mt == websocket.TextMessage && string(data) == pingMessage {
				select {
				case gotPing <- struct{}{}:
				default:
				}
				c.WriteMessage(websocket.TextMessage, []byte(pongMessage))
			}
		}
	}))
	defer srv.Close()

	conn, err := testDialer(wsURL(srv)).Dial(context.Background(), session)
	require.NoError(t, err)
	defer conn.Close()

	spec := models.MSubscriptionSpec{CorrelationID: "abc", Mode: models.ModeQuote,
		Segments: []models.MTokenGroup{{ExchangeType: 1, Tokens: []string{"2885"}}}}
	require.NoError(t, conn.Send(spec.SubscribeRequest(models.ActionSubscribe)))

	req := <-gotRequest
	assert.Equal(t, "abc", req.CorrelationID)
	assert.Equal(t, models.ActionSubscribe, req.Action)

	data, err := conn.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, frame, data)

	select {
	case <-gotPing:
	case <-time.After(2 * time.Second):
		t.Fatal("no heartbeat sent")
	}
}

func TestStreamDialMapsRejectedHandshakeToAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid feed token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := testDialer(wsURL(srv)).Dial(context.Background(), session)
	require.Error(t, err)
	assert.True(t, helpers.IsAuthError(err))
}

func TestStreamDialUnreachableIsTransportError(t *testing.T) {
	_, err := testDialer("ws://127.0.0.1:1/smart-stream").Dial(context.Background(), session)
	require.Error(t, err)
	assert.False(t, helpers.IsAuthError(err))
}

func TestStreamReadFailsAfterServerCloses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err == nil {
			c.Close()
		}
	}))
	defer srv.Close()

	conn, err := testDialer(wsURL(srv)).Dial(context.Background(), session)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.ReadFrame()
	require.Error(t, err)

	// Close after a failed read is still safe, twice.
	assert.NotPanics(t, func() {
		conn.Close()
		conn.Close()
	})
}

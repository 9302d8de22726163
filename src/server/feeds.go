package server

import (
	"net/http"

	"market-relay/src/metrics"
	"market-relay/src/models"
	"market-relay/src/reference"
	"market-relay/src/relay"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Websocket feed paths.
const (
	IndicesFeedPath  = "/ws/indices-feed/"
	UniverseFeedPath = "/ws/nifty50-feed/"
	RawFeedPath      = "/ws/nifty50-raw-feed/"
)

// feedEndpoint binds a path to a subscription and the payload shape it serves.
// Endpoints with equal specs share one upstream session.
type feedEndpoint struct {
	name   string
	path   string
	spec   models.MSubscriptionSpec
	render func(models.MTickEvent) interface{}
}

// -----------------------------------------------------------------------------

func (s *RelayServer) buildFeeds() []*feedEndpoint {
	corr := s.Config.Relay.CorrelationID
	mode := s.Config.Relay.Mode

	feeds := []*feedEndpoint{{
		name:   "indices",
		path:   IndicesFeedPath,
		spec:   reference.IndicesSpec(corr, mode),
		render: func(ev models.MTickEvent) interface{} { return relay.IndexView(ev.Normalized) },
	}}

	if s.deps.Refs == nil {
		return feeds
	}

	universe := s.deps.Refs.UniverseSpec(corr, mode)
	return append(feeds,
		&feedEndpoint{
			name:   "universe",
			path:   UniverseFeedPath,
			spec:   universe,
			render: func(ev models.MTickEvent) interface{} { return ev.Normalized },
		},
		&feedEndpoint{
			name:   "raw",
			path:   RawFeedPath,
			spec:   universe,
			render: func(ev models.MTickEvent) interface{} { return relay.RawView(ev) },
		},
	)
}

// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *RelayServer) handleFeed(f *feedEndpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			s.Logger.Info("Failed to upgrade websocket: %v", err)
			return
		}

		session := relay.NewClientSession(s.deps.Registry)
		events, _, err := session.Subscribe(f.spec)
		if err != nil {
			s.Logger.Warning("Rejecting %s client: %v", f.name, err)
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "relay unavailable"),
				s.now().Add(writeWait))
			conn.Close()
			return
		}

		client := newClient(s, f, conn, session, events)
		s.clients.Add(1)
		metrics.ClientSessions.WithLabelValues(f.name).Inc()
		s.Logger.Info("WebSocket connection established for %s feed (%s)", f.name, c.ClientIP())

		go client.writePump()
		go client.readPump()
	}
}

// -----------------------------------------------------------------------------

func (s *RelayServer) clientGone(f *feedEndpoint) {
	s.clients.Add(-1)
	metrics.ClientSessions.WithLabelValues(f.name).Dec()
}

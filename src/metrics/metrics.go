// Package metrics exposes Prometheus metrics for the relay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "market_relay"

// Drop reasons for TicksDropped.
const (
	DropDecode      = "decode"
	DropOutsideSpec = "outside_spec"
	DropNormalize   = "normalize"
	DropSlowClient  = "slow_client"
)

var (
	TicksReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ticks_received_total",
		Help:      "Binary frames read from upstream feed sessions.",
	}, []string{"session"})

	TicksDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ticks_delivered_total",
		Help:      "Normalized ticks queued to subscribers.",
	}, []string{"session"})

	TicksDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ticks_dropped_total",
		Help:      "Ticks dropped, by reason.",
	}, []string{"reason"})

	Reconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_reconnects_total",
		Help:      "Upstream reconnect attempts.",
	}, []string{"session"})

	FeedSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "feed_sessions",
		Help:      "Live upstream feed sessions.",
	})

	FeedSessionState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "feed_session_state",
		Help:      "Current state of each feed session (numeric state code).",
	}, []string{"session"})

	ClientSessions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "client_sessions",
		Help:      "Connected websocket clients per endpoint.",
	}, []string{"endpoint"})

	RESTRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rest_requests_total",
		Help:      "REST requests by route and status code.",
	}, []string{"route", "code"})
)

// -----------------------------------------------------------------------------

func RecordDrop(reason string) {
	TicksDropped.WithLabelValues(reason).Inc()
}

func RecordReconnect(session string) {
	Reconnects.WithLabelValues(session).Inc()
}

func SetFeedState(session string, state int) {
	FeedSessionState.WithLabelValues(session).Set(float64(state))
}

// ForgetFeed removes the per-session series once a session is gone.
func ForgetFeed(session string) {
	FeedSessionState.DeleteLabelValues(session)
	TicksReceived.DeleteLabelValues(session)
	TicksDelivered.DeleteLabelValues(session)
	Reconnects.DeleteLabelValues(session)
}

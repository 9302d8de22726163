package relay

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"market-relay/src/helpers"
	"market-relay/src/interfaces"
	"market-relay/src/logger"
	"market-relay/src/metrics"
	"market-relay/src/models"

	"github.com/cenkalti/backoff/v4"
)

// -----------------------------------------------------------------------------
// Options
// -----------------------------------------------------------------------------

type Options struct {
	// MaxRetryAttempts is the number of consecutive failed connection attempts
	// tolerated before the session closes. A streaming phase resets it.
	MaxRetryAttempts int
	ConnectTimeout   time.Duration
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
	SubscriberBuffer int
}

func DefaultOptions() Options {
	return Options{
		MaxRetryAttempts: 5,
		ConnectTimeout:   10 * time.Second,
		InitialBackoff:   time.Second,
		MaxBackoff:       30 * time.Second,
		SubscriberBuffer: 256,
	}
}

// -----------------------------------------------------------------------------
// FeedSession
// -----------------------------------------------------------------------------

// FeedSession owns one upstream streaming connection for one subscription
// spec and fans decoded ticks out to its subscribers.
type FeedSession struct {
	spec     models.MSubscriptionSpec
	key      string
	sessions interfaces.ISessionProvider
	dialer   interfaces.IFeedDialer
	decoder  interfaces.ITickDecoder
	refs     interfaces.IInstrumentLookup
	opts     Options
	logger   *logger.Logger
	observer StateObserver

	state atomic.Int32

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	connMu sync.Mutex
	conn   interfaces.IFeedConn

	subMu       sync.RWMutex
	subscribers map[uint64]*subscriber
	nextID      uint64

	startOnce sync.Once
	onClosed  func(*FeedSession)
}

// -----------------------------------------------------------------------------

func NewFeedSession(
	spec models.MSubscriptionSpec,
	sessions interfaces.ISessionProvider,
	dialer interfaces.IFeedDialer,
	decoder interfaces.ITickDecoder,
	refs interfaces.IInstrumentLookup,
	opts Options,
	log *logger.Logger,
) *FeedSession {
	if opts.SubscriberBuffer <= 0 {
		opts.SubscriberBuffer = DefaultOptions().SubscriberBuffer
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultOptions().ConnectTimeout
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = DefaultOptions().InitialBackoff
	}
	if opts.MaxBackoff < opts.InitialBackoff {
		opts.MaxBackoff = opts.InitialBackoff
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &FeedSession{
		spec:        spec,
		key:         spec.Key(),
		sessions:    sessions,
		dialer:      dialer,
		decoder:     decoder,
		refs:        refs,
		opts:        opts,
		logger:      log,
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
		subscribers: make(map[uint64]*subscriber),
	}
}

// -----------------------------------------------------------------------------
// Accessors
// -----------------------------------------------------------------------------

func (s *FeedSession) Key() string                    { return s.key }
func (s *FeedSession) Spec() models.MSubscriptionSpec { return s.spec }
func (s *FeedSession) State() State                   { return State(s.state.Load()) }

// Done is closed once the session has reached Closed and released its transport.
func (s *FeedSession) Done() <-chan struct{} { return s.done }

func (s *FeedSession) SubscriberCount() int {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	return len(s.subscribers)
}

// -----------------------------------------------------------------------------

func (s *FeedSession) setState(next State) {
	var prev State
	for {
		prev = State(s.state.Load())
		// Closed is terminal.
		if prev == next || prev == StateClosed {
			return
		}
		if s.state.CompareAndSwap(int32(prev), int32(next)) {
			break
		}
	}
	s.logger.Debug("Feed session %s: %s -> %s", s.key, prev, next)
	if s.observer != nil {
		s.observer(s.key, next)
	}
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Start launches the connection loop. Calling it more than once has no effect.
func (s *FeedSession) Start() {
	s.startOnce.Do(func() {
		go s.run()
	})
}

// -----------------------------------------------------------------------------

// Close stops the session. No events are delivered after it returns.
// Subscriber channels are left open; Unsubscribe closes them.
func (s *FeedSession) Close() {
	s.cancel()
	s.closeConn()
	s.startOnce.Do(func() {
		// Never started: finish inline.
		go s.finish()
	})
	<-s.done
}

// -----------------------------------------------------------------------------

func (s *FeedSession) finish() {
	s.closeConn()
	s.setState(StateClosed)
	close(s.done)
	if s.onClosed != nil {
		s.onClosed(s)
	}
}

// -----------------------------------------------------------------------------

func (s *FeedSession) run() {
	defer s.finish()

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = s.opts.InitialBackoff
	exp.MaxInterval = s.opts.MaxBackoff
	exp.MaxElapsedTime = 0
	budget := backoff.WithMaxRetries(exp, uint64(max(s.opts.MaxRetryAttempts, 0)))
	budget.Reset()

	for {
		session, err := s.sessions.Session(s.ctx)
		if s.ctx.Err() != nil {
			return
		}
		if err != nil {
			s.logger.Error("Feed session %s: authentication failed, closing: %v", s.key, err)
			return
		}
		if s.State() == StateUnauthenticated {
			s.setState(StateAuthenticated)
		}

		streamed, err := s.connectAndStream(session)
		if s.ctx.Err() != nil {
			return
		}
		if streamed {
			budget.Reset()
		}
		if helpers.IsAuthError(err) {
			s.sessions.Invalidate()
		}

		wait := budget.NextBackOff()
		if wait == backoff.Stop {
			s.logger.Error("Feed session %s: retry budget of %d exhausted, closing: %v", s.key, s.opts.MaxRetryAttempts, err)
			return
		}

		s.setState(StateReconnecting)
		metrics.RecordReconnect(s.key)
		s.logger.Warning("Feed session %s: upstream lost (%v), reconnecting in %v", s.key, err, wait)

		timer := time.NewTimer(wait)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// -----------------------------------------------------------------------------

// connectAndStream runs one connection attempt. streamed reports whether at
// least one data frame arrived.
func (s *FeedSession) connectAndStream(session models.MBrokerSession) (streamed bool, err error) {
	s.setState(StateConnecting)

	dialCtx, cancel := context.WithTimeout(s.ctx, s.opts.ConnectTimeout)
	conn, err := s.dialer.Dial(dialCtx, session)
	cancel()
	if err != nil {
		return false, err
	}
	if !s.setConn(conn) {
		return false, s.ctx.Err()
	}
	defer s.closeConn()

	if err := conn.Send(s.spec.SubscribeRequest(models.ActionSubscribe)); err != nil {
		return false, helpers.NewTransportError("subscribe request failed", err)
	}
	s.setState(StateSubscribed)
	s.logger.Info("Feed session %s: subscribed to %d tokens", s.key, s.spec.TokenCount())

	for {
		frame, err := conn.ReadFrame()
		if err != nil {
			return streamed, helpers.NewTransportError("feed read failed", err)
		}
		if !streamed {
			streamed = true
			s.setState(StateStreaming)
		}
		s.handleFrame(frame)
	}
}

// -----------------------------------------------------------------------------

func (s *FeedSession) setConn(conn interfaces.IFeedConn) bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.ctx.Err() != nil {
		conn.Close()
		return false
	}
	s.conn = conn
	return true
}

func (s *FeedSession) closeConn() {
	s.connMu.Lock()
	conn := s.conn
	s.conn = nil
	s.connMu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// -----------------------------------------------------------------------------
// Frame handling
// -----------------------------------------------------------------------------

// handleFrame decodes, filters, normalizes and fans out one frame. Any failure
// drops the frame only.
func (s *FeedSession) handleFrame(frame []byte) {
	metrics.TicksReceived.WithLabelValues(s.key).Inc()

	raw, err := s.decoder.Decode(frame)
	if err != nil {
		metrics.RecordDrop(metrics.DropDecode)
		s.logger.Warning("Feed session %s: dropping undecodable frame (%d bytes): %v", s.key, len(frame), err)
		return
	}

	if !s.spec.Contains(raw.ExchangeType, raw.Token) {
		metrics.RecordDrop(metrics.DropOutsideSpec)
		s.logger.Debug("Feed session %s: dropping token %s on segment %d outside subscription", s.key, raw.Token, raw.ExchangeType)
		return
	}

	tick, err := Normalize(raw, s.refs.Lookup(raw.Token))
	if err != nil {
		metrics.RecordDrop(metrics.DropNormalize)
		s.logger.Warning("Feed session %s: dropping tick: %v", s.key, err)
		return
	}

	s.broadcast(models.MTickEvent{Raw: raw, Normalized: tick})
}

// -----------------------------------------------------------------------------

func (s *FeedSession) broadcast(ev models.MTickEvent) {
	if s.ctx.Err() != nil {
		return
	}

	s.subMu.RLock()
	targets := make([]*subscriber, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		targets = append(targets, sub)
	}
	s.subMu.RUnlock()

	for _, sub := range targets {
		if sub.offer(ev) {
			metrics.TicksDelivered.WithLabelValues(s.key).Inc()
			continue
		}
		metrics.RecordDrop(metrics.DropSlowClient)
		s.logger.Debug("Feed session %s: subscriber %d queue full or gone, tick dropped", s.key, sub.id)
	}
}

// -----------------------------------------------------------------------------
// Subscribers
// -----------------------------------------------------------------------------

// Subscribe registers a buffered receiver of tick events.
func (s *FeedSession) Subscribe() (uint64, <-chan models.MTickEvent) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.nextID++
	sub := &subscriber{id: s.nextID, ch: make(chan models.MTickEvent, s.opts.SubscriberBuffer)}
	s.subscribers[sub.id] = sub
	return sub.id, sub.ch
}

// -----------------------------------------------------------------------------

// Unsubscribe removes and closes the receiver. It returns how many remain.
func (s *FeedSession) Unsubscribe(id uint64) int {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if sub, ok := s.subscribers[id]; ok {
		delete(s.subscribers, id)
		sub.close()
	}
	return len(s.subscribers)
}

// -----------------------------------------------------------------------------

// subscriber is one receiver queue. Its own mutex orders a send against close,
// so a broadcast working from a stale snapshot never sends on a closed channel.
type subscriber struct {
	id     uint64
	mu     sync.Mutex
	ch     chan models.MTickEvent
	closed bool
}

// offer queues ev without blocking. It reports false when the queue is full
// or the subscriber has left.
func (sub *subscriber) offer(ev models.MTickEvent) bool {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	if sub.closed {
		return false
	}
	select {
	case sub.ch <- ev:
		return true
	default:
		return false
	}
}

func (sub *subscriber) close() {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
}

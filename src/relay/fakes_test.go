package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"market-relay/src/helpers"
	"market-relay/src/interfaces"
	"market-relay/src/models"
)

// fakeSessions hands out a fixed broker session.
type fakeSessions struct {
	err         error
	calls       atomic.Int32
	invalidated atomic.Int32
}

func (f *fakeSessions) Session(ctx context.Context) (models.MBrokerSession, error) {
	f.calls.Add(1)
	if f.err != nil {
		return models.MBrokerSession{}, f.err
	}
	return models.MBrokerSession{AuthToken: "jwt", FeedToken: "feed"}, nil
}

func (f *fakeSessions) Invalidate() { f.invalidated.Add(1) }

// fakeConn replays frames pushed on its channel. Closing the channel simulates
// an upstream disconnect.
type fakeConn struct {
	frames    chan []byte
	sent      chan models.MStreamRequest
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan []byte, 64),
		sent:   make(chan models.MStreamRequest, 4),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) Send(req models.MStreamRequest) error {
	select {
	case c.sent <- req:
	default:
	}
	return nil
}

func (c *fakeConn) ReadFrame() ([]byte, error) {
	select {
	case f, ok := <-c.frames:
		if !ok {
			return nil, errors.New("upstream closed")
		}
		return f, nil
	case <-c.closed:
		return nil, errors.New("connection closed")
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// fakeDialer returns connections from a script indexed by attempt number.
type fakeDialer struct {
	mu    sync.Mutex
	dials int
	next  func(attempt int) (interfaces.IFeedConn, error)
}

func (d *fakeDialer) Dial(ctx context.Context, session models.MBrokerSession) (interfaces.IFeedConn, error) {
	d.mu.Lock()
	d.dials++
	n := d.dials
	d.mu.Unlock()
	return d.next(n)
}

func (d *fakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// jsonDecoder treats frames as JSON encoded raw ticks.
type jsonDecoder struct{}

func (jsonDecoder) Decode(frame []byte) (models.MRawTick, error) {
	var raw models.MRawTick
	if err := json.Unmarshal(frame, &raw); err != nil {
		return raw, helpers.NewDecodeError("bad frame", err)
	}
	return raw, nil
}

func tickFrame(segment int, token string, ltp, closePrice int64) []byte {
	b, _ := json.Marshal(models.MRawTick{
		Mode:                 models.ModeQuote,
		ExchangeType:         segment,
		Token:                token,
		LastTradedPricePaise: ltp,
		ClosedPricePaise:     closePrice,
	})
	return b
}

// stateLog records observed transitions.
type stateLog struct {
	mu     sync.Mutex
	states []State
}

func (l *stateLog) observe(_ string, s State) {
	l.mu.Lock()
	l.states = append(l.states, s)
	l.mu.Unlock()
}

func (l *stateLog) snapshot() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]State(nil), l.states...)
}

package relay

import (
	"errors"
	"testing"
	"time"

	"market-relay/src/helpers"
	"market-relay/src/interfaces"
	"market-relay/src/logger"
	"market-relay/src/models"
	"market-relay/src/reference"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSpec = models.MSubscriptionSpec{
	CorrelationID: "test",
	Mode:          models.ModeQuote,
	Segments: []models.MTokenGroup{
		{ExchangeType: models.ExchangeNSECM, Tokens: []string{"2885", "99926000"}},
	},
}

func testOptions(retries int) Options {
	return Options{
		MaxRetryAttempts: retries,
		ConnectTimeout:   time.Second,
		InitialBackoff:   time.Millisecond,
		MaxBackoff:       5 * time.Millisecond,
		SubscriberBuffer: 16,
	}
}

func testRefs() interfaces.IInstrumentLookup {
	return reference.NewCache([]models.MInstrumentRef{reliance})
}

func newTestSession(dialer *fakeDialer, sessions *fakeSessions, retries int) (*FeedSession, *stateLog) {
	log := &stateLog{}
	s := NewFeedSession(testSpec, sessions, dialer, jsonDecoder{}, testRefs(), testOptions(retries), logger.NewNop())
	s.observer = log.observe
	return s, log
}

func recv(t *testing.T, ch <-chan models.MTickEvent) models.MTickEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "subscriber channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tick")
	}
	return models.MTickEvent{}
}

func TestFeedSessionStreamsAndSubscribes(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{next: func(int) (interfaces.IFeedConn, error) { return conn, nil }}
	s, states := newTestSession(dialer, &fakeSessions{}, 5)

	_, events := s.Subscribe()
	s.Start()
	defer s.Close()

	conn.frames <- tickFrame(models.ExchangeNSECM, "2885", 285050, 280000)
	ev := recv(t, events)
	assert.Equal(t, "RELIANCE", ev.Normalized.Symbol)
	assert.Equal(t, "1.80%", ev.Normalized.ChangePct)

	req := <-conn.sent
	assert.Equal(t, models.ActionSubscribe, req.Action)
	assert.Equal(t, models.ModeQuote, req.Params.Mode)
	assert.Equal(t, "test", req.CorrelationID)

	assert.Equal(t, StateStreaming, s.State())
	assert.Equal(t, []State{StateAuthenticated, StateConnecting, StateSubscribed, StateStreaming}, states.snapshot())
}

func TestFeedSessionDropsBadFramesAndContinues(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{next: func(int) (interfaces.IFeedConn, error) { return conn, nil }}
	s, _ := newTestSession(dialer, &fakeSessions{}, 5)

	_, events := s.Subscribe()
	s.Start()
	defer s.Close()

	conn.frames <- []byte{0x01, 0x02}
	conn.frames <- tickFrame(models.ExchangeNSECM, "3045", 100, 100)     // not subscribed
	conn.frames <- tickFrame(models.ExchangeBSECM, "2885", 100, 100)     // wrong segment
	conn.frames <- tickFrame(models.ExchangeNSECM, "2885", -5, 100)      // negative price
	conn.frames <- tickFrame(models.ExchangeNSECM, "99926000", 100, 100) // delivered

	ev := recv(t, events)
	assert.Equal(t, "99926000", ev.Raw.Token)
	assert.Equal(t, models.ClassIndex, ev.Normalized.Type)
	assert.Equal(t, StateStreaming, s.State())
}

func TestFeedSessionReconnectsWithoutDroppingSubscribers(t *testing.T) {
	first, second := newFakeConn(), newFakeConn()
	dialer := &fakeDialer{next: func(n int) (interfaces.IFeedConn, error) {
		if n == 1 {
			return first, nil
		}
		return second, nil
	}}
	s, states := newTestSession(dialer, &fakeSessions{}, 2)

	_, events := s.Subscribe()
	s.Start()
	defer s.Close()

	first.frames <- tickFrame(models.ExchangeNSECM, "2885", 100, 100)
	recv(t, events)

	close(first.frames)

	second.frames <- tickFrame(models.ExchangeNSECM, "2885", 200, 100)
	ev := recv(t, events)
	assert.Equal(t, "2.00", ev.Normalized.LTP)

	assert.Equal(t, 2, dialer.Dials())
	assert.True(t, first.isClosed())
	assert.Contains(t, states.snapshot(), StateReconnecting)
	assert.Equal(t, 1, s.SubscriberCount())
}

func TestFeedSessionBudgetExhaustedClosesButKeepsSubscribers(t *testing.T) {
	dialer := &fakeDialer{next: func(int) (interfaces.IFeedConn, error) {
		return nil, helpers.NewTransportError("dial failed", errors.New("connection refused"))
	}}
	s, states := newTestSession(dialer, &fakeSessions{}, 2)

	_, events := s.Subscribe()
	s.Start()

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not close")
	}

	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, 3, dialer.Dials())
	assert.Equal(t, StateClosed, states.snapshot()[len(states.snapshot())-1])

	select {
	case _, ok := <-events:
		assert.True(t, ok, "subscriber channel must stay open")
	default:
	}
	assert.Equal(t, 1, s.SubscriberCount())
}

func TestFeedSessionBudgetResetsAfterStreaming(t *testing.T) {
	dialer := &fakeDialer{next: func(n int) (interfaces.IFeedConn, error) {
		// Every attempt streams one frame then drops.
		c := newFakeConn()
		c.frames <- tickFrame(models.ExchangeNSECM, "2885", int64(n), 100)
		close(c.frames)
		return c, nil
	}}
	s, _ := newTestSession(dialer, &fakeSessions{}, 1)

	_, events := s.Subscribe()
	s.Start()
	defer s.Close()

	for i := 0; i < 4; i++ {
		recv(t, events)
	}
	assert.True(t, s.State().Live())
}

func TestFeedSessionAuthFailureCloses(t *testing.T) {
	dialer := &fakeDialer{next: func(int) (interfaces.IFeedConn, error) { return newFakeConn(), nil }}
	s, _ := newTestSession(dialer, &fakeSessions{err: helpers.NewAuthError("bad totp", nil)}, 5)

	s.Start()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not close")
	}
	assert.Equal(t, 0, dialer.Dials())
	assert.Equal(t, StateClosed, s.State())
}

func TestFeedSessionRejectedHandshakeInvalidatesSession(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{next: func(n int) (interfaces.IFeedConn, error) {
		if n == 1 {
			return nil, helpers.NewAuthError("handshake rejected", errors.New("401"))
		}
		return conn, nil
	}}
	sessions := &fakeSessions{}
	s, _ := newTestSession(dialer, sessions, 3)

	_, events := s.Subscribe()
	s.Start()
	defer s.Close()

	conn.frames <- tickFrame(models.ExchangeNSECM, "2885", 100, 100)
	recv(t, events)
	assert.Equal(t, int32(1), sessions.invalidated.Load())
	assert.GreaterOrEqual(t, sessions.calls.Load(), int32(2))
}

func TestFeedSessionCloseIsTerminal(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{next: func(int) (interfaces.IFeedConn, error) { return conn, nil }}
	s, _ := newTestSession(dialer, &fakeSessions{}, 5)

	_, events := s.Subscribe()
	s.Start()

	conn.frames <- tickFrame(models.ExchangeNSECM, "2885", 100, 100)
	recv(t, events)

	s.Close()
	assert.Equal(t, StateClosed, s.State())
	assert.True(t, conn.isClosed())

	conn.frames <- tickFrame(models.ExchangeNSECM, "2885", 100, 100)
	select {
	case <-events:
		t.Fatal("event delivered after Close")
	case <-time.After(50 * time.Millisecond):
	}

	// Closing twice is harmless.
	s.Close()
}

func TestFeedSessionSlowSubscriberDoesNotBlockOthers(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{next: func(int) (interfaces.IFeedConn, error) { return conn, nil }}
	s, _ := newTestSession(dialer, &fakeSessions{}, 5)

	_, slow := s.Subscribe()
	_, fast := s.Subscribe()
	s.Start()
	defer s.Close()

	total := testOptions(0).SubscriberBuffer + 10
	for i := 0; i < total; i++ {
		conn.frames <- tickFrame(models.ExchangeNSECM, "2885", int64(i), 100)
		recv(t, fast)
	}
	assert.Len(t, slow, testOptions(0).SubscriberBuffer)
}

func TestSubscriberOfferAfterCloseIsDropped(t *testing.T) {
	sub := &subscriber{id: 1, ch: make(chan models.MTickEvent, 1)}
	assert.True(t, sub.offer(models.MTickEvent{}))
	assert.False(t, sub.offer(models.MTickEvent{}), "queue full")

	sub.close()
	sub.close()
	assert.NotPanics(t, func() { assert.False(t, sub.offer(models.MTickEvent{})) })
}

func TestFeedSessionBroadcastSurvivesSubscriberChurn(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{next: func(int) (interfaces.IFeedConn, error) { return conn, nil }}
	s, _ := newTestSession(dialer, &fakeSessions{}, 5)

	_, stable := s.Subscribe()
	s.Start()
	defer s.Close()

	stop := make(chan struct{})
	churned := make(chan struct{})
	go func() {
		defer close(churned)
		for {
			select {
			case <-stop:
				return
			default:
			}
			id, _ := s.Subscribe()
			s.Unsubscribe(id)
		}
	}()

	for i := 0; i < 50; i++ {
		conn.frames <- tickFrame(models.ExchangeNSECM, "2885", int64(100+i), 100)
		recv(t, stable)
	}
	close(stop)
	<-churned

	assert.Equal(t, 1, s.SubscriberCount())
}

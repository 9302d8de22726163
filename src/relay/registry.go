package relay

import (
	"sort"
	"sync"

	"market-relay/src/helpers"
	"market-relay/src/interfaces"
	"market-relay/src/logger"
	"market-relay/src/metrics"
	"market-relay/src/models"
)

// -----------------------------------------------------------------------------

// Registry keeps at most one live FeedSession per subscription key and
// reference counts its subscribers. The last Detach closes the session.
type Registry struct {
	sessions interfaces.ISessionProvider
	dialer   interfaces.IFeedDialer
	decoder  interfaces.ITickDecoder
	refs     interfaces.IInstrumentLookup
	opts     Options
	logger   *logger.Logger
	observer StateObserver

	mu     sync.Mutex
	feeds  map[string]*FeedSession
	closed bool
}

// -----------------------------------------------------------------------------

func NewRegistry(
	sessions interfaces.ISessionProvider,
	dialer interfaces.IFeedDialer,
	decoder interfaces.ITickDecoder,
	refs interfaces.IInstrumentLookup,
	opts Options,
	log *logger.Logger,
) *Registry {
	return &Registry{
		sessions: sessions,
		dialer:   dialer,
		decoder:  decoder,
		refs:     refs,
		opts:     opts,
		logger:   log,
		feeds:    make(map[string]*FeedSession),
	}
}

// OnStateChange registers an extra observer. Must be called before the first Attach.
func (r *Registry) OnStateChange(obs StateObserver) {
	r.observer = obs
}

// -----------------------------------------------------------------------------

// Subscription is one subscriber's handle on a shared feed session.
type Subscription struct {
	registry *Registry
	feed     *FeedSession
	id       uint64
	events   <-chan models.MTickEvent
	once     sync.Once
}

func (s *Subscription) Key() string                     { return s.feed.Key() }
func (s *Subscription) Events() <-chan models.MTickEvent { return s.events }
func (s *Subscription) State() State                    { return s.feed.State() }

// Detach releases the subscription. Safe to call more than once.
func (s *Subscription) Detach() {
	s.once.Do(func() {
		s.registry.detach(s.feed, s.id)
	})
}

// -----------------------------------------------------------------------------

// Attach joins the live session for spec, creating and starting one if needed.
func (r *Registry) Attach(spec models.MSubscriptionSpec) (*Subscription, error) {
	key := spec.Key()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, helpers.NewValidationError("registry is closed", nil)
	}

	feed, ok := r.feeds[key]
	if !ok || !feed.State().Live() {
		feed = NewFeedSession(spec, r.sessions, r.dialer, r.decoder, r.refs, r.opts, r.logger)
		feed.observer = r.notify
		feed.onClosed = r.forget
		r.feeds[key] = feed
		metrics.FeedSessions.Inc()
		r.logger.Info("Created feed session %s", key)
		feed.Start()
	}

	id, ch := feed.Subscribe()
	return &Subscription{registry: r, feed: feed, id: id, events: ch}, nil
}

// -----------------------------------------------------------------------------

func (r *Registry) detach(feed *FeedSession, id uint64) {
	r.mu.Lock()
	remaining := feed.Unsubscribe(id)
	last := remaining == 0
	if last && r.feeds[feed.Key()] == feed {
		delete(r.feeds, feed.Key())
	}
	r.mu.Unlock()

	if last {
		r.logger.Info("Last subscriber left feed session %s, closing", feed.Key())
		feed.Close()
	}
}

// -----------------------------------------------------------------------------

// forget runs once per session after it reached Closed.
func (r *Registry) forget(feed *FeedSession) {
	r.mu.Lock()
	if r.feeds[feed.Key()] == feed {
		delete(r.feeds, feed.Key())
	}
	_, replaced := r.feeds[feed.Key()]
	r.mu.Unlock()

	metrics.FeedSessions.Dec()
	if !replaced {
		metrics.ForgetFeed(feed.Key())
	}
}

// -----------------------------------------------------------------------------

func (r *Registry) notify(key string, state State) {
	metrics.SetFeedState(key, int(state))
	if r.observer != nil {
		r.observer(key, state)
	}
}

// -----------------------------------------------------------------------------

// SessionInfo is a point-in-time view of one live feed session.
type SessionInfo struct {
	Key         string `json:"key"`
	State       string `json:"state"`
	Subscribers int    `json:"subscribers"`
	Tokens      int    `json:"tokens"`
}

func (r *Registry) Sessions() []SessionInfo {
	r.mu.Lock()
	feeds := make([]*FeedSession, 0, len(r.feeds))
	for _, f := range r.feeds {
		feeds = append(feeds, f)
	}
	r.mu.Unlock()

	out := make([]SessionInfo, 0, len(feeds))
	for _, f := range feeds {
		out = append(out, SessionInfo{
			Key:         f.Key(),
			State:       f.State().String(),
			Subscribers: f.SubscriberCount(),
			Tokens:      f.Spec().TokenCount(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.feeds)
}

// -----------------------------------------------------------------------------

// Close shuts every session down and rejects further Attach calls.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	feeds := make([]*FeedSession, 0, len(r.feeds))
	for key, f := range r.feeds {
		feeds = append(feeds, f)
		delete(r.feeds, key)
	}
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, f := range feeds {
		wg.Add(1)
		go func(f *FeedSession) {
			defer wg.Done()
			f.Close()
		}(f)
	}
	wg.Wait()
}

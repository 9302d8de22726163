package relay

import (
	"sync"

	"market-relay/src/helpers"
	"market-relay/src/models"
)

// -----------------------------------------------------------------------------

// ClientSession tracks one downstream connection's attachment to the registry.
type ClientSession struct {
	registry *Registry

	mu     sync.Mutex
	sub    *Subscription
	closed bool
}

func NewClientSession(r *Registry) *ClientSession {
	return &ClientSession{registry: r}
}

// -----------------------------------------------------------------------------

// Subscribe attaches to the feed for spec. Subscribing again with an equal
// spec returns the existing channel; a different spec replaces the old one.
func (c *ClientSession) Subscribe(spec models.MSubscriptionSpec) (<-chan models.MTickEvent, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, false, helpers.NewClientTransportError("client session is closed", nil)
	}
	if c.sub != nil && c.sub.Key() == spec.Key() {
		return c.sub.Events(), false, nil
	}

	sub, err := c.registry.Attach(spec)
	if err != nil {
		return nil, false, err
	}
	if c.sub != nil {
		c.sub.Detach()
	}
	c.sub = sub
	return sub.Events(), true, nil
}

// -----------------------------------------------------------------------------

// subscription returns the active subscription, or nil.
func (c *ClientSession) subscription() *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sub
}

// -----------------------------------------------------------------------------

// Close detaches from the feed. The feed and other clients are unaffected
// unless this was the last subscriber.
func (c *ClientSession) Close() {
	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	c.closed = true
	c.mu.Unlock()

	if sub != nil {
		sub.Detach()
	}
}

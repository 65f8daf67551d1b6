package cdp

// subscriptionBuffer is the event queue capacity for each subscription.
// A subscriber that falls this far behind starts losing events.
const subscriptionBuffer = 2048

// Subscription is a bounded, ordered queue of events. Delivery is lossy
// under backpressure: when the queue is full, new events are dropped for
// this subscriber only. The read loop never blocks on a slow consumer,
// and other subscriptions are unaffected.
type Subscription struct {
	client *Client
	ch     chan Event
}

// Events returns the channel events are delivered on. The channel is
// closed when the subscription is closed or the client shuts down.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Close unregisters the subscription and closes its channel.
// Safe to call more than once.
func (s *Subscription) Close() {
	if s.client.removeSub(s) {
		close(s.ch)
	}
}

// Subscribe registers a new event queue. The subscription only sees
// events published after it is created; there is no history.
func (c *Client) Subscribe() *Subscription {
	s := &Subscription{
		client: c,
		ch:     make(chan Event, subscriptionBuffer),
	}
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if c.closed.Load() {
		// Client already shut down; hand back a closed subscription so
		// readers observe it as a terminated stream.
		close(s.ch)
		return s
	}
	c.subs[s] = struct{}{}
	return s
}

// publish offers an event to every registered subscription without
// blocking. Invoked only by the read loop, so per-subscription order
// matches arrival order.
func (c *Client) publish(evt *Event) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for s := range c.subs {
		select {
		case s.ch <- *evt:
		default:
			// Queue full, event dropped for this subscriber
		}
	}
}

// removeSub unregisters a subscription. Returns false if it was already
// removed, so the channel is closed exactly once.
func (c *Client) removeSub(s *Subscription) bool {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if _, ok := c.subs[s]; !ok {
		return false
	}
	delete(c.subs, s)
	return true
}

// closeSubscriptions closes every remaining subscription channel so
// readers blocked on a queue unblock when the read loop exits.
func (c *Client) closeSubscriptions() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for s := range c.subs {
		delete(c.subs, s)
		close(s.ch)
	}
}

package docstore

import (
	"context"
	"sync"
)

// Event is one delivery of a subscription. Document subscriptions fill Doc, query
// subscriptions fill Docs. A non-nil Err is terminal unless the backend says otherwise.
type Event struct {
	Doc  *Snapshot
	Docs []*Snapshot
	Err  error
}

// Subscription is a live snapshot listener. Stop must be called to release it.
type Subscription struct {
	events chan Event
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func newSubscription(parent context.Context) *Subscription {
	ctx, cancel := context.WithCancel(parent)
	return &Subscription{
		events: make(chan Event),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Events returns the delivery channel. It is closed after Stop or a terminal error.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Stop cancels the listener and waits for it to exit. It is safe to call repeatedly.
func (s *Subscription) Stop() {
	s.once.Do(func() {
		s.cancel()
	})
	<-s.done
}

// run executes the backend listener loop on its own goroutine.
func (s *Subscription) run(loop func(ctx context.Context, send func(Event) bool)) {
	go func() {
		defer close(s.done)
		defer close(s.events)
		defer s.cancel()
		loop(s.ctx, s.send)
	}()
}

// send delivers ev unless the subscription is stopped. It reports whether the
// listener should keep going.
func (s *Subscription) send(ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.ctx.Done():
		return false
	}
}

package pubsub

import "context"

// Listener is a pull-style subscription: callers ask for the next event
// instead of ranging over a channel.
type Listener[T any] struct {
	ctx context.Context
	ch  <-chan Event[T]
}

// NewListener subscribes to broker for the lifetime of ctx.
func NewListener[T any](ctx context.Context, broker Subscriber[T]) *Listener[T] {
	return &Listener[T]{ctx: ctx, ch: broker.Subscribe(ctx)}
}

// Next blocks until an event arrives. It returns false once the context is
// cancelled or the subscription is closed.
func (l *Listener[T]) Next() (Event[T], bool) {
	select {
	case <-l.ctx.Done():
		return Event[T]{}, false
	case ev, ok := <-l.ch:
		return ev, ok
	}
}

// Each calls fn for every event until the subscription ends or fn returns
// false.
func (l *Listener[T]) Each(fn func(Event[T]) bool) {
	for {
		ev, ok := l.Next()
		if !ok || !fn(ev) {
			return
		}
	}
}

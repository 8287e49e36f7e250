// Package observe provides ordered, synchronous fan-out of values to
// subscribers. It is the notification backbone for the query and mutation
// packages: every state transition is delivered to all subscribers in
// subscription order before the publishing call returns.
package observe

import (
	"sync"
)

// subscriber pairs a callback with a stable identity so cancellation can
// remove exactly one registration even when the same func is subscribed twice.
type subscriber[T any] struct {
	id uint64
	fn func(T)
}

// Notifier delivers published values to subscribers synchronously and in
// subscription order. The zero value is not usable; create one with
// NewNotifier.
type Notifier[T any] struct {
	mu     sync.Mutex
	subs   []subscriber[T]
	nextID uint64
	closed bool
}

// NewNotifier creates an empty notifier.
func NewNotifier[T any]() *Notifier[T] {
	return &Notifier[T]{}
}

// Subscribe registers fn and returns a cancel function that removes the
// registration. Cancel is idempotent and safe to call concurrently.
//
// Subscribing on a closed notifier is a no-op: fn will never be invoked and
// the returned cancel does nothing.
func (n *Notifier[T]) Subscribe(fn func(T)) (cancel func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return func() {}
	}

	n.nextID++
	id := n.nextID
	n.subs = append(n.subs, subscriber[T]{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			n.remove(id)
		})
	}
}

func (n *Notifier[T]) remove(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for i, s := range n.subs {
		if s.id == id {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			return
		}
	}
}

// Publish invokes every current subscriber with v, in subscription order, on
// the calling goroutine. Subscribers registered while a publish is in flight
// do not receive the in-flight value; subscribers cancelled while a publish
// is in flight may still receive it.
//
// Publish on a closed notifier is a no-op.
func (n *Notifier[T]) Publish(v T) {
	n.mu.Lock()
	if n.closed || len(n.subs) == 0 {
		n.mu.Unlock()
		return
	}
	// Snapshot under the lock so subscribers may subscribe, cancel or
	// publish from inside their callback without deadlocking.
	current := make([]subscriber[T], len(n.subs))
	copy(current, n.subs)
	n.mu.Unlock()

	for _, s := range current {
		s.fn(v)
	}
}

// Len reports the number of active subscribers.
func (n *Notifier[T]) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}

// Close drops all subscribers and rejects future subscriptions. Close is
// idempotent. An in-flight Publish on another goroutine may still complete
// delivery to the subscribers it snapshotted.
func (n *Notifier[T]) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.closed = true
	n.subs = nil
}

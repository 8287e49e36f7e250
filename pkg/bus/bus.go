// Package bus provides a small in-process pub/sub bus for wiring
// fetch lifecycle events between components without coupling them.
package bus

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	busPublishesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zensuite_bus_publishes_total",
		Help: "Total events published per topic",
	}, []string{"topic"})

	busSubscribers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "zensuite_bus_subscribers",
		Help: "Current number of subscribers per topic",
	}, []string{"topic"})
)

// Handler receives a published payload. Handlers run on their own
// goroutine per event; slow handlers delay nothing but themselves.
type Handler func(payload any)

type subscriber struct {
	id      uint64
	handler Handler
}

// Bus routes payloads from publishers to topic subscribers.
type Bus struct {
	logger zerolog.Logger

	mu          sync.RWMutex
	subscribers map[string][]subscriber
	nextID      uint64
	closed      bool
}

// New creates an event bus.
func New(logger zerolog.Logger) *Bus {
	return &Bus{
		logger:      logger.With().Str("component", "bus").Logger(),
		subscribers: make(map[string][]subscriber),
	}
}

// Subscribe adds a handler for a topic. The returned cancel function
// removes the subscription; calling it more than once is harmless.
func (b *Bus) Subscribe(topic string, handler Handler) (cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	b.nextID++
	id := b.nextID
	b.subscribers[topic] = append(b.subscribers[topic], subscriber{id: id, handler: handler})
	busSubscribers.WithLabelValues(topic).Inc()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.unsubscribe(topic, id)
		})
	}
}

func (b *Bus) unsubscribe(topic string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[topic]
	for i, sub := range subs {
		if sub.id == id {
			b.subscribers[topic] = append(subs[:i:i], subs[i+1:]...)
			busSubscribers.WithLabelValues(topic).Dec()
			break
		}
	}
	if len(b.subscribers[topic]) == 0 {
		delete(b.subscribers, topic)
	}
}

// Publish sends a payload to all subscribers of a topic. Dispatch is
// asynchronous; Publish never blocks on handlers.
func (b *Bus) Publish(topic string, payload any) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	busPublishesTotal.WithLabelValues(topic).Inc()
	handlers, ok := b.subscribers[topic]
	if !ok {
		return
	}

	b.logger.Debug().
		Str("topic", topic).
		Int("subscribers", len(handlers)).
		Msg("Publishing event")

	for _, sub := range handlers {
		go sub.handler(payload)
	}
}

// Close drops all subscriptions. Publish and Subscribe become no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for topic, subs := range b.subscribers {
		busSubscribers.WithLabelValues(topic).Sub(float64(len(subs)))
	}
	b.subscribers = nil
}

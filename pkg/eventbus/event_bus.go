package eventbus

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/planora/planora/pkg/metrics"
)

// Event is one change notification addressed to a topic. Payload is opaque to
// the bus; producers and consumers agree on its encoding.
type Event struct {
	Topic   string
	Payload []byte
}

type Handler func(Event)

// EventBus fans events out to all handlers subscribed to the event's topic.
// Publishing to a topic with no subscribers is a silent no-op. Delivery is
// at-least-once and best-effort: a transport failure is logged, never
// returned to the publisher.
type EventBus interface {
	Publish(ctx context.Context, event Event)
	Subscribe(topic string, handler Handler) *Subscription
	SubscribersCount(topic string) int
	Close() error
}

// Subscription is one registered handler on one topic. Each subscription owns
// a bounded delivery queue drained by its own goroutine, so one slow handler
// never stalls the publisher or other subscribers. Events on the queue are
// delivered to the handler in publish order.
type Subscription struct {
	topic     string
	queue     chan Event
	done      chan struct{}
	closeOnce sync.Once
	detach    func(*Subscription)
}

func newSubscription(topic string, queueSize int, handler Handler, detach func(*Subscription)) *Subscription {
	s := &Subscription{
		topic:  topic,
		queue:  make(chan Event, queueSize),
		done:   make(chan struct{}),
		detach: detach,
	}
	go s.run(handler)
	return s
}

func (s *Subscription) run(handler Handler) {
	for {
		select {
		case <-s.done:
			return
		case e := <-s.queue:
			// Close may race with a non-empty queue; done wins so a closed
			// subscription never hands out another event. Matters when the
			// handler itself closed the subscription mid-delivery.
			select {
			case <-s.done:
				return
			default:
			}
			handler(e)
		}
	}
}

func (s *Subscription) Topic() string {
	return s.topic
}

// Close removes the subscription from the bus and stops its delivery
// goroutine. Safe to call multiple times.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.detach(s)
		close(s.done)
	})
}

type memoryBus struct {
	log       *logrus.Logger
	queueSize int

	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
}

// NewMemoryBus returns an in-process EventBus. Suitable for tests and
// single-process deployments; multi-process deployments use NewRedisBus so
// all server instances share one logical bus.
func NewMemoryBus(log *logrus.Logger, queueSize int) EventBus {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &memoryBus{
		log:       log,
		queueSize: queueSize,
		topics:    make(map[string]map[*Subscription]struct{}),
	}
}

func (b *memoryBus) Publish(_ context.Context, event Event) {
	b.mu.RLock()
	subs := make([]*Subscription, 0, len(b.topics[event.Topic]))
	for s := range b.topics[event.Topic] {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	metrics.BusPublishes.Inc()
	for _, s := range subs {
		select {
		case s.queue <- event:
		default:
			// The subscriber's queue is full. Dropping is acceptable: a
			// missed notification is recovered by the client's next refetch.
			metrics.BusDrops.Inc()
			if b.log != nil {
				b.log.WithField("topic", event.Topic).
					Warn("eventbus: subscriber queue full, dropping event")
			}
		}
	}
}

func (b *memoryBus) Subscribe(topic string, handler Handler) *Subscription {
	sub := newSubscription(topic, b.queueSize, handler, b.remove)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.topics[topic] == nil {
		b.topics[topic] = make(map[*Subscription]struct{})
	}
	b.topics[topic][sub] = struct{}{}
	return sub
}

func (b *memoryBus) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.topics[sub.topic]
	if !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(b.topics, sub.topic)
	}
}

func (b *memoryBus) SubscribersCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

func (b *memoryBus) Close() error {
	b.mu.Lock()
	topics := b.topics
	b.topics = make(map[string]map[*Subscription]struct{})
	b.mu.Unlock()

	for _, subs := range topics {
		for s := range subs {
			s.closeOnce.Do(func() { close(s.done) })
		}
	}
	return nil
}

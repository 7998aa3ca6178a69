package eventbus

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// redisBus is a distributed EventBus over Redis pub/sub. Local fan-out is
// delegated to a memoryBus; the Redis channel per topic carries events
// between processes, so a mutation committed on one server reaches
// connections held open on another. Publish never returns an error: if Redis
// is unreachable the event is logged and dropped, and clients recover on
// their next refetch.
type redisBus struct {
	log    *logrus.Logger
	client *redis.Client
	local  *memoryBus
	pubsub *redis.PubSub
	cancel context.CancelFunc

	mu       sync.Mutex
	refcount map[string]int
}

func NewRedisBus(log *logrus.Logger, client *redis.Client, queueSize int) EventBus {
	ctx, cancel := context.WithCancel(context.Background())
	b := &redisBus{
		log:      log,
		client:   client,
		local:    NewMemoryBus(log, queueSize).(*memoryBus),
		pubsub:   client.Subscribe(ctx),
		cancel:   cancel,
		refcount: make(map[string]int),
	}
	go b.receive(ctx)
	return b
}

func (b *redisBus) receive(ctx context.Context) {
	ch := b.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.local.Publish(ctx, Event{Topic: msg.Channel, Payload: []byte(msg.Payload)})
		}
	}
}

func (b *redisBus) Publish(ctx context.Context, event Event) {
	if err := b.client.Publish(ctx, event.Topic, event.Payload).Err(); err != nil {
		if b.log != nil {
			b.log.WithError(err).
				WithField("topic", event.Topic).
				Error("eventbus: redis publish failed, dropping event")
		}
	}
}

func (b *redisBus) Subscribe(topic string, handler Handler) *Subscription {
	b.mu.Lock()
	b.refcount[topic]++
	first := b.refcount[topic] == 1
	b.mu.Unlock()

	if first {
		if err := b.pubsub.Subscribe(context.Background(), topic); err != nil && b.log != nil {
			b.log.WithError(err).WithField("topic", topic).
				Error("eventbus: redis subscribe failed")
		}
	}

	inner := b.local.Subscribe(topic, handler)
	return &Subscription{
		topic: topic,
		queue: inner.queue,
		done:  make(chan struct{}),
		detach: func(*Subscription) {
			inner.Close()
			b.release(topic)
		},
	}
}

func (b *redisBus) release(topic string) {
	b.mu.Lock()
	b.refcount[topic]--
	last := b.refcount[topic] <= 0
	if last {
		delete(b.refcount, topic)
	}
	b.mu.Unlock()

	if last {
		if err := b.pubsub.Unsubscribe(context.Background(), topic); err != nil && b.log != nil {
			b.log.WithError(err).WithField("topic", topic).
				Error("eventbus: redis unsubscribe failed")
		}
	}
}

func (b *redisBus) SubscribersCount(topic string) int {
	return b.local.SubscribersCount(topic)
}

func (b *redisBus) Close() error {
	b.cancel()
	if err := b.pubsub.Close(); err != nil {
		return err
	}
	return b.local.Close()
}

package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func collectInto(ch chan Event) Handler {
	return func(e Event) {
		ch <- e
	}
}

func receiveOne(t *testing.T, ch chan Event) Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestMemoryBus_DeliversInPublishOrder(t *testing.T) {
	t.Parallel()

	bus := NewMemoryBus(nil, 16)
	defer func() { _ = bus.Close() }()

	received := make(chan Event, 16)
	sub := bus.Subscribe("task/1", collectInto(received))
	defer sub.Close()

	payloads := []string{"a", "b", "c", "d", "e"}
	for _, p := range payloads {
		bus.Publish(context.Background(), Event{Topic: "task/1", Payload: []byte(p)})
	}

	for _, want := range payloads {
		got := receiveOne(t, received)
		require.Equal(t, "task/1", got.Topic)
		require.Equal(t, want, string(got.Payload))
	}
}

func TestMemoryBus_PublishWithoutSubscribersIsNoop(t *testing.T) {
	t.Parallel()

	bus := NewMemoryBus(nil, 4)
	defer func() { _ = bus.Close() }()

	require.Equal(t, 0, bus.SubscribersCount("project/1"))
	// Must neither block nor panic.
	bus.Publish(context.Background(), Event{Topic: "project/1", Payload: []byte("x")})
}

func TestMemoryBus_FansOutToAllTopicSubscribers(t *testing.T) {
	t.Parallel()

	bus := NewMemoryBus(nil, 4)
	defer func() { _ = bus.Close() }()

	first := make(chan Event, 1)
	second := make(chan Event, 1)
	other := make(chan Event, 1)
	defer bus.Subscribe("task/1", collectInto(first)).Close()
	defer bus.Subscribe("task/1", collectInto(second)).Close()
	defer bus.Subscribe("task/2", collectInto(other)).Close()

	require.Equal(t, 2, bus.SubscribersCount("task/1"))
	bus.Publish(context.Background(), Event{Topic: "task/1", Payload: []byte("x")})

	require.Equal(t, "x", string(receiveOne(t, first).Payload))
	require.Equal(t, "x", string(receiveOne(t, second).Payload))
	select {
	case <-other:
		t.Fatal("subscriber of another topic received the event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBus_ClosedSubscriptionStopsReceiving(t *testing.T) {
	t.Parallel()

	bus := NewMemoryBus(nil, 4)
	defer func() { _ = bus.Close() }()

	received := make(chan Event, 4)
	sub := bus.Subscribe("workspace/1", collectInto(received))
	require.Equal(t, 1, bus.SubscribersCount("workspace/1"))

	sub.Close()
	sub.Close() // idempotent
	require.Equal(t, 0, bus.SubscribersCount("workspace/1"))

	bus.Publish(context.Background(), Event{Topic: "workspace/1", Payload: []byte("x")})
	select {
	case <-received:
		t.Fatal("closed subscription received an event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBus_DropsWhenSubscriberQueueIsFull(t *testing.T) {
	t.Parallel()

	bus := NewMemoryBus(nil, 1)
	defer func() { _ = bus.Close() }()

	entered := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	var handled []string
	sub := bus.Subscribe("task/1", func(e Event) {
		entered <- struct{}{}
		<-release
		mu.Lock()
		handled = append(handled, string(e.Payload))
		mu.Unlock()
	})
	defer sub.Close()

	ctx := context.Background()
	// First event is picked up by the delivery goroutine and stalls in the
	// handler, leaving the queue empty.
	bus.Publish(ctx, Event{Topic: "task/1", Payload: []byte("a")})
	<-entered
	// Second fills the queue of one; third has nowhere to go and is dropped.
	bus.Publish(ctx, Event{Topic: "task/1", Payload: []byte("b")})
	bus.Publish(ctx, Event{Topic: "task/1", Payload: []byte("c")})

	release <- struct{}{}
	<-entered
	release <- struct{}{}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(handled) == 2
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"a", "b"}, handled)
}

// A handler that closes its own subscription must never be invoked again,
// even for events that were already queued behind the one being handled.
func TestMemoryBus_CloseFromHandlerStopsQueuedDelivery(t *testing.T) {
	t.Parallel()

	bus := NewMemoryBus(nil, 4)
	defer func() { _ = bus.Close() }()

	var mu sync.Mutex
	calls := 0
	first := make(chan struct{})
	var sub *Subscription
	sub = bus.Subscribe("task/1", func(Event) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		sub.Close()
		if n == 1 {
			close(first)
		}
	})

	ctx := context.Background()
	bus.Publish(ctx, Event{Topic: "task/1", Payload: []byte("a")})
	bus.Publish(ctx, Event{Topic: "task/1", Payload: []byte("b")})

	select {
	case <-first:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first delivery")
	}
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, calls)
}

func TestMemoryBus_CloseDetachesEverySubscription(t *testing.T) {
	t.Parallel()

	bus := NewMemoryBus(nil, 4)
	received := make(chan Event, 4)
	bus.Subscribe("task/1", collectInto(received))
	bus.Subscribe("task/2", collectInto(received))

	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close()) // idempotent
	require.Equal(t, 0, bus.SubscribersCount("task/1"))
	require.Equal(t, 0, bus.SubscribersCount("task/2"))

	bus.Publish(context.Background(), Event{Topic: "task/1", Payload: []byte("x")})
	select {
	case <-received:
		t.Fatal("subscription on a closed bus received an event")
	case <-time.After(50 * time.Millisecond):
	}
}

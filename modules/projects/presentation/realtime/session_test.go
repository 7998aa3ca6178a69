package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/planora/planora/modules/projects/domain/aggregates/member"
	"github.com/planora/planora/modules/projects/domain/events"
	"github.com/planora/planora/pkg/eventbus"
)

type stubAccess struct {
	mu      sync.Mutex
	allowed map[events.Resource]bool
	err     error
}

func (a *stubAccess) CanView(_ context.Context, _ uuid.UUID, res events.Resource) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return false, a.err
	}
	return a.allowed[res], nil
}

func (a *stubAccess) set(res events.Resource, allowed bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.allowed[res] = allowed
}

type stubSnapshots struct {
	mu   sync.Mutex
	data map[events.Resource]json.RawMessage
}

func (s *stubSnapshots) Snapshot(_ context.Context, res events.Resource) (json.RawMessage, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.data[res]
	return content, ok, nil
}

func (s *stubSnapshots) set(res events.Resource, content json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[res] = content
}

func (s *stubSnapshots) remove(res events.Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, res)
}

type sendRecorder struct {
	mu     sync.Mutex
	failed bool
	ch     chan ServerMessage
}

func newSendRecorder() *sendRecorder {
	return &sendRecorder{ch: make(chan ServerMessage, 16)}
}

func (r *sendRecorder) send(msg ServerMessage) error {
	r.mu.Lock()
	failed := r.failed
	r.mu.Unlock()
	if failed {
		return errors.New("transport gone")
	}
	r.ch <- msg
	return nil
}

func (r *sendRecorder) failFromNowOn() {
	r.mu.Lock()
	r.failed = true
	r.mu.Unlock()
}

func (r *sendRecorder) next(t *testing.T) ServerMessage {
	t.Helper()
	select {
	case msg := <-r.ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server message")
		return ServerMessage{}
	}
}

func (r *sendRecorder) expectNone(t *testing.T) {
	t.Helper()
	select {
	case msg := <-r.ch:
		t.Fatalf("unexpected server message: %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

type sessionFixture struct {
	bus    eventbus.EventBus
	access *stubAccess
	snaps  *stubSnapshots
	rec    *sendRecorder
	sess   *Session
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	f := &sessionFixture{
		bus:    eventbus.NewMemoryBus(nil, 8),
		access: &stubAccess{allowed: make(map[events.Resource]bool)},
		snaps:  &stubSnapshots{data: make(map[events.Resource]json.RawMessage)},
		rec:    newSendRecorder(),
	}
	t.Cleanup(func() { _ = f.bus.Close() })
	f.sess = NewSession(SessionOptions{
		Member:    member.New("ada@example.com", "Ada"),
		Bus:       f.bus,
		Access:    f.access,
		Snapshots: f.snaps,
		Send:      f.rec.send,
	})
	t.Cleanup(f.sess.Close)
	return f
}

// visibleResource registers a task resource the session's member may view.
func (f *sessionFixture) visibleResource(content string) events.Resource {
	res := events.NewResource(events.KindTask, uuid.New())
	f.access.set(res, true)
	f.snaps.set(res, json.RawMessage(content))
	return res
}

func (f *sessionFixture) handle(t *testing.T, action ClientAction, res events.Resource) {
	t.Helper()
	raw, err := json.Marshal(ClientMessage{Action: action, Resource: res.Kind, ID: res.ID})
	require.NoError(t, err)
	f.sess.HandleMessage(raw)
}

func (f *sessionFixture) publish(t *testing.T, res events.Resource, kind events.ChangeKind) {
	t.Helper()
	payload, err := events.ChangeEvent{Resource: res, Kind: kind, OccurredAt: time.Now()}.Encode()
	require.NoError(t, err)
	f.bus.Publish(context.Background(), eventbus.Event{Topic: res.Topic(), Payload: payload})
}

func TestSession_SubscribeAcks(t *testing.T) {
	t.Parallel()

	f := newSessionFixture(t)
	f.sess.Open()
	res := f.visibleResource(`{"title":"ship it"}`)

	f.handle(t, ActionSubscribe, res)

	msg := f.rec.next(t)
	require.Equal(t, KindSubscribed, msg.Kind)
	require.Equal(t, res.Kind, msg.Resource)
	require.Equal(t, res.ID, msg.ID)
	// Content travels only on changed frames.
	require.Empty(t, msg.Content)
	require.Equal(t, 1, f.sess.SubscriptionCount())
	require.Equal(t, 1, f.bus.SubscribersCount(res.Topic()))
}

func TestSession_SubscribeRejections(t *testing.T) {
	t.Parallel()

	t.Run("invisible resource", func(t *testing.T) {
		f := newSessionFixture(t)
		f.sess.Open()
		res := events.NewResource(events.KindTask, uuid.New())
		f.snaps.set(res, json.RawMessage(`{}`))

		f.handle(t, ActionSubscribe, res)
		require.Equal(t, KindNotFound, f.rec.next(t).Kind)
		require.Equal(t, 0, f.sess.SubscriptionCount())
	})

	t.Run("resource without a snapshot", func(t *testing.T) {
		f := newSessionFixture(t)
		f.sess.Open()
		res := events.NewResource(events.KindTask, uuid.New())
		f.access.set(res, true)

		f.handle(t, ActionSubscribe, res)
		require.Equal(t, KindNotFound, f.rec.next(t).Kind)
		require.Equal(t, 0, f.sess.SubscriptionCount())
	})

	t.Run("access check failure", func(t *testing.T) {
		f := newSessionFixture(t)
		f.sess.Open()
		f.access.err = errors.New("backend down")

		f.handle(t, ActionSubscribe, events.NewResource(events.KindTask, uuid.New()))
		require.Equal(t, KindNotFound, f.rec.next(t).Kind)
	})
}

func TestSession_MessagesBeforeOpenAreDropped(t *testing.T) {
	t.Parallel()

	f := newSessionFixture(t)
	res := f.visibleResource(`{}`)

	f.handle(t, ActionSubscribe, res)
	f.rec.expectNone(t)
	require.Equal(t, StateConnecting, f.sess.State())
}

func TestSession_MalformedMessagesAreDropped(t *testing.T) {
	t.Parallel()

	f := newSessionFixture(t)
	f.sess.Open()

	f.sess.HandleMessage([]byte("not json"))
	f.sess.HandleMessage([]byte(`{"action":"explode","resource":"task","id":"` + uuid.NewString() + `"}`))
	f.sess.HandleMessage([]byte(`{"action":"subscribe","resource":"comet","id":"` + uuid.NewString() + `"}`))

	f.rec.expectNone(t)
	require.Equal(t, StateOpen, f.sess.State())
}

func TestSession_ChangedEventCarriesFreshSnapshot(t *testing.T) {
	t.Parallel()

	f := newSessionFixture(t)
	f.sess.Open()
	res := f.visibleResource(`{"rev":1}`)
	f.handle(t, ActionSubscribe, res)
	require.Equal(t, KindSubscribed, f.rec.next(t).Kind)

	// The delivered content is the state at delivery time, not publish time.
	f.snaps.set(res, json.RawMessage(`{"rev":2}`))
	f.publish(t, res, events.Changed)

	msg := f.rec.next(t)
	require.Equal(t, KindChanged, msg.Kind)
	require.Equal(t, res.ID, msg.ID)
	require.JSONEq(t, `{"rev":2}`, string(msg.Content))
}

func TestSession_LostVisibilityTurnsIntoGone(t *testing.T) {
	t.Parallel()

	f := newSessionFixture(t)
	f.sess.Open()
	res := f.visibleResource(`{}`)
	f.handle(t, ActionSubscribe, res)
	require.Equal(t, KindSubscribed, f.rec.next(t).Kind)

	f.access.set(res, false)
	f.publish(t, res, events.Changed)

	msg := f.rec.next(t)
	require.Equal(t, KindGone, msg.Kind)
	require.Empty(t, msg.Content)
	require.Equal(t, 0, f.sess.SubscriptionCount())
	require.Equal(t, 0, f.bus.SubscribersCount(res.Topic()))
}

func TestSession_VanishedSnapshotTurnsIntoGone(t *testing.T) {
	t.Parallel()

	f := newSessionFixture(t)
	f.sess.Open()
	res := f.visibleResource(`{}`)
	f.handle(t, ActionSubscribe, res)
	require.Equal(t, KindSubscribed, f.rec.next(t).Kind)

	f.snaps.remove(res)
	f.publish(t, res, events.Changed)

	require.Equal(t, KindGone, f.rec.next(t).Kind)
	require.Equal(t, 0, f.sess.SubscriptionCount())
}

func TestSession_GoneEventForwardsAndUnsubscribes(t *testing.T) {
	t.Parallel()

	f := newSessionFixture(t)
	f.sess.Open()
	res := f.visibleResource(`{}`)
	f.handle(t, ActionSubscribe, res)
	require.Equal(t, KindSubscribed, f.rec.next(t).Kind)

	f.publish(t, res, events.Gone)

	require.Equal(t, KindGone, f.rec.next(t).Kind)
	require.Equal(t, 0, f.sess.SubscriptionCount())
	require.Equal(t, 0, f.bus.SubscribersCount(res.Topic()))
}

// A gone must reach the client exactly once even when further events for the
// same resource are already queued behind it.
func TestSession_GoneIsDeliveredExactlyOnce(t *testing.T) {
	t.Parallel()

	f := newSessionFixture(t)
	f.sess.Open()
	res := f.visibleResource(`{}`)
	f.handle(t, ActionSubscribe, res)
	require.Equal(t, KindSubscribed, f.rec.next(t).Kind)

	f.publish(t, res, events.Gone)
	f.publish(t, res, events.Gone)
	f.publish(t, res, events.Changed)

	require.Equal(t, KindGone, f.rec.next(t).Kind)
	f.rec.expectNone(t)
	require.Equal(t, 0, f.sess.SubscriptionCount())
}

func TestSession_UnsubscribeAlwaysAcks(t *testing.T) {
	t.Parallel()

	f := newSessionFixture(t)
	f.sess.Open()
	res := f.visibleResource(`{}`)

	// Never subscribed: same acknowledgement as a real unsubscribe.
	f.handle(t, ActionUnsubscribe, res)
	require.Equal(t, KindNotSubscribed, f.rec.next(t).Kind)

	f.handle(t, ActionSubscribe, res)
	require.Equal(t, KindSubscribed, f.rec.next(t).Kind)
	f.handle(t, ActionUnsubscribe, res)
	require.Equal(t, KindNotSubscribed, f.rec.next(t).Kind)
	require.Equal(t, 0, f.sess.SubscriptionCount())
	require.Equal(t, 0, f.bus.SubscribersCount(res.Topic()))
}

func TestSession_ResubscribeKeepsExistingSubscription(t *testing.T) {
	t.Parallel()

	f := newSessionFixture(t)
	f.sess.Open()
	res := f.visibleResource(`{}`)

	f.handle(t, ActionSubscribe, res)
	require.Equal(t, KindSubscribed, f.rec.next(t).Kind)
	f.handle(t, ActionSubscribe, res)
	require.Equal(t, KindSubscribed, f.rec.next(t).Kind)

	require.Equal(t, 1, f.sess.SubscriptionCount())
	require.Equal(t, 1, f.bus.SubscribersCount(res.Topic()))
}

func TestSession_FailedSendClosesSession(t *testing.T) {
	t.Parallel()

	f := newSessionFixture(t)
	f.sess.Open()
	res := f.visibleResource(`{}`)
	f.handle(t, ActionSubscribe, res)
	require.Equal(t, KindSubscribed, f.rec.next(t).Kind)

	f.rec.failFromNowOn()
	f.handle(t, ActionUnsubscribe, res)

	require.Equal(t, StateClosed, f.sess.State())
	require.Equal(t, 0, f.sess.SubscriptionCount())
}

func TestSession_CloseIsTerminalAndIdempotent(t *testing.T) {
	t.Parallel()

	f := newSessionFixture(t)
	f.sess.Open()
	res := f.visibleResource(`{}`)
	f.handle(t, ActionSubscribe, res)
	require.Equal(t, KindSubscribed, f.rec.next(t).Kind)

	f.sess.Close()
	f.sess.Close()
	require.Equal(t, StateClosed, f.sess.State())
	require.Equal(t, 0, f.bus.SubscribersCount(res.Topic()))

	// A closed session ignores further client messages.
	f.handle(t, ActionSubscribe, res)
	f.rec.expectNone(t)
}

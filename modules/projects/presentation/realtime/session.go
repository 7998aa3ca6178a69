package realtime

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/planora/planora/modules/projects/domain/aggregates/member"
	"github.com/planora/planora/modules/projects/domain/events"
	"github.com/planora/planora/pkg/eventbus"
	"github.com/planora/planora/pkg/metrics"
)

// AccessChecker answers whether a member may view a resource. Implemented by
// the projects module's access service.
type AccessChecker interface {
	CanView(ctx context.Context, memberID uuid.UUID, res events.Resource) (bool, error)
}

type State string

const (
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateClosed     State = "closed"
)

type SessionOptions struct {
	Member    member.Member
	Bus       eventbus.EventBus
	Access    AccessChecker
	Snapshots SnapshotSource
	Logger    *logrus.Logger

	// Send delivers one message to the client. A failed send means the
	// transport is gone and the session closes itself.
	Send func(ServerMessage) error

	// BaseContext supplies the context for delivery-time refetches and
	// access checks. It must carry the database pool.
	BaseContext func() context.Context
}

// Session holds one client's subscriptions. It starts in Connecting, accepts
// messages only while Open, and is terminal once Closed; Close is safe to
// call any number of times from any goroutine.
//
// Every event delivery re-checks access and re-reads the resource under the
// session's member: what the client receives is the state and visibility at
// delivery time, not at publish time. A resource that became invisible or
// vanished turns into a gone message and the subscription is dropped.
type Session struct {
	member    member.Member
	bus       eventbus.EventBus
	access    AccessChecker
	snapshots SnapshotSource
	send      func(ServerMessage) error
	log       *logrus.Logger
	baseCtx   func() context.Context

	mu    sync.Mutex
	state State
	subs  map[events.Resource]*eventbus.Subscription
}

func NewSession(opts SessionOptions) *Session {
	baseCtx := opts.BaseContext
	if baseCtx == nil {
		baseCtx = context.Background
	}
	return &Session{
		member:    opts.Member,
		bus:       opts.Bus,
		access:    opts.Access,
		snapshots: opts.Snapshots,
		send:      opts.Send,
		log:       opts.Logger,
		baseCtx:   baseCtx,
		state:     StateConnecting,
		subs:      make(map[events.Resource]*eventbus.Subscription),
	}
}

// Open moves the session out of the handshake. Messages arriving before Open
// are dropped.
func (s *Session) Open() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateConnecting {
		s.state = StateOpen
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) SubscriptionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// HandleMessage processes one raw client frame. Malformed frames are logged
// and dropped; the session stays up.
func (s *Session) HandleMessage(raw []byte) {
	if s.State() != StateOpen {
		return
	}
	msg, err := ParseClientMessage(raw)
	if err != nil {
		s.logWarn(err, "realtime: dropping malformed client message")
		return
	}

	res := events.NewResource(msg.Resource, msg.ID)
	switch msg.Action {
	case ActionSubscribe:
		s.subscribe(res)
	case ActionUnsubscribe:
		s.unsubscribe(res)
	}
}

// subscribe registers interest in the resource. A resource the member cannot
// view is answered with notFound, exactly as a resource that does not exist.
func (s *Session) subscribe(res events.Resource) {
	ctx := s.baseCtx()
	canView, err := s.access.CanView(ctx, s.member.ID(), res)
	if err != nil {
		s.logWarn(err, "realtime: access check failed")
		s.reply(newServerMessage(KindNotFound, res, nil))
		return
	}
	if !canView {
		s.reply(newServerMessage(KindNotFound, res, nil))
		return
	}

	// Visible but without a snapshot means the row vanished between the
	// access check and the read; answer as if it never existed.
	if _, ok, err := s.snapshots.Snapshot(ctx, res); err != nil || !ok {
		if err != nil {
			s.logWarn(err, "realtime: snapshot failed")
		}
		s.reply(newServerMessage(KindNotFound, res, nil))
		return
	}

	s.mu.Lock()
	if s.state != StateOpen {
		s.mu.Unlock()
		return
	}
	if _, exists := s.subs[res]; !exists {
		s.subs[res] = s.bus.Subscribe(res.Topic(), func(e eventbus.Event) {
			s.onBusEvent(res, e)
		})
		metrics.WSSubscriptions.Inc()
	}
	s.mu.Unlock()

	s.reply(newServerMessage(KindSubscribed, res, nil))
}

// unsubscribe acknowledges with notSubscribed whether or not a subscription
// existed.
func (s *Session) unsubscribe(res events.Resource) {
	s.dropSubscription(res)
	s.reply(newServerMessage(KindNotSubscribed, res, nil))
}

func (s *Session) dropSubscription(res events.Resource) {
	s.mu.Lock()
	sub, ok := s.subs[res]
	if ok {
		delete(s.subs, res)
	}
	s.mu.Unlock()
	if ok {
		sub.Close()
		metrics.WSSubscriptions.Dec()
	}
}

// onBusEvent runs on the subscription's delivery goroutine.
func (s *Session) onBusEvent(res events.Resource, e eventbus.Event) {
	// An event can still be queued when the subscription is dropped (a gone
	// already forwarded, an unsubscribe, a close). Once the resource is no
	// longer subscribed, no further frames for it may reach the client.
	s.mu.Lock()
	_, subscribed := s.subs[res]
	open := s.state == StateOpen
	s.mu.Unlock()
	if !open || !subscribed {
		return
	}
	event, err := events.Decode(e.Topic, e.Payload)
	if err != nil {
		s.logWarn(err, "realtime: dropping undecodable event")
		return
	}

	if event.Kind == events.Gone {
		s.reply(newServerMessage(KindGone, res, nil))
		s.dropSubscription(res)
		return
	}

	ctx := s.baseCtx()
	canView, err := s.access.CanView(ctx, s.member.ID(), res)
	if err != nil {
		s.logWarn(err, "realtime: delivery access check failed")
		return
	}
	if !canView {
		// The member lost sight of the resource since subscribing; from
		// their side that is the same as deletion.
		s.reply(newServerMessage(KindGone, res, nil))
		s.dropSubscription(res)
		return
	}

	content, ok, err := s.snapshots.Snapshot(ctx, res)
	if err != nil {
		s.logWarn(err, "realtime: delivery snapshot failed")
		return
	}
	if !ok {
		s.reply(newServerMessage(KindGone, res, nil))
		s.dropSubscription(res)
		return
	}
	s.reply(newServerMessage(KindChanged, res, content))
}

func (s *Session) reply(msg ServerMessage) {
	if err := s.send(msg); err != nil {
		s.Close()
	}
}

// Close tears down every subscription and makes the session terminal.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	subs := s.subs
	s.subs = make(map[events.Resource]*eventbus.Subscription)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
		metrics.WSSubscriptions.Dec()
	}
}

func (s *Session) logWarn(err error, msg string) {
	if s.log != nil {
		s.log.WithError(err).Warn(msg)
	}
}

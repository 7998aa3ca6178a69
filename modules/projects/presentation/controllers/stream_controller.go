package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/planora/planora/modules/projects/domain/aggregates/member"
	"github.com/planora/planora/modules/projects/presentation/realtime"
	"github.com/planora/planora/pkg/composables"
	"github.com/planora/planora/pkg/eventbus"
	"github.com/planora/planora/pkg/ws"
)

var errUnauthenticated = errors.New("unauthenticated")

// StreamController serves the websocket endpoint. The client authenticates
// with an X-Member-ID header on the upgrade request; an unknown or missing
// member is rejected with a policy-violation close.
type StreamController struct {
	pool      *pgxpool.Pool
	bus       eventbus.EventBus
	members   member.Repository
	access    realtime.AccessChecker
	snapshots realtime.SnapshotSource
	log       *logrus.Logger

	hub *ws.Hub

	mu       sync.Mutex
	sessions map[*ws.Connection]*realtime.Session
}

func NewStreamController(
	pool *pgxpool.Pool,
	bus eventbus.EventBus,
	members member.Repository,
	access realtime.AccessChecker,
	snapshots realtime.SnapshotSource,
	log *logrus.Logger,
) *StreamController {
	c := &StreamController{
		pool:      pool,
		bus:       bus,
		members:   members,
		access:    access,
		snapshots: snapshots,
		log:       log,
		sessions:  make(map[*ws.Connection]*realtime.Session),
	}
	c.hub = ws.NewHub(&ws.HubOptions{
		Logger:       log,
		OnConnect:    c.onConnect,
		OnMessage:    c.onMessage,
		OnDisconnect: c.onDisconnect,
	})
	return c
}

func (c *StreamController) Key() string {
	return "/stream"
}

func (c *StreamController) Register(r *mux.Router) {
	r.Handle("/stream", c.hub).Methods(http.MethodGet)
}

func (c *StreamController) onConnect(r *http.Request, _ *ws.Hub, conn *ws.Connection) error {
	memberID, err := uuid.Parse(r.Header.Get("X-Member-ID"))
	if err != nil {
		return errUnauthenticated
	}
	ctx := composables.WithPool(r.Context(), c.pool)
	m, err := c.members.GetByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, member.ErrMemberNotFound) {
			return errUnauthenticated
		}
		return err
	}

	session := realtime.NewSession(realtime.SessionOptions{
		Member:    m,
		Bus:       c.bus,
		Access:    c.access,
		Snapshots: c.snapshots,
		Logger:    c.log,
		Send: func(msg realtime.ServerMessage) error {
			raw, err := json.Marshal(msg)
			if err != nil {
				return err
			}
			return conn.SendMessage(raw)
		},
		// The request context dies with the upgrade handler; deliveries run
		// on a fresh context carrying the pool and the session's member.
		BaseContext: func() context.Context {
			ctx := composables.WithPool(context.Background(), c.pool)
			return composables.WithMember(ctx, m)
		},
	})
	session.Open()

	c.mu.Lock()
	c.sessions[conn] = session
	c.mu.Unlock()
	return nil
}

func (c *StreamController) onMessage(conn *ws.Connection, raw []byte) {
	c.mu.Lock()
	session := c.sessions[conn]
	c.mu.Unlock()
	if session != nil {
		session.HandleMessage(raw)
	}
}

func (c *StreamController) onDisconnect(conn *ws.Connection) {
	c.mu.Lock()
	session := c.sessions[conn]
	delete(c.sessions, conn)
	c.mu.Unlock()
	if session != nil {
		session.Close()
	}
}

package ws

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/planora/planora/pkg/metrics"
)

type HubOptions struct {
	Logger      *logrus.Logger
	CheckOrigin func(r *http.Request) bool

	// OnConnect runs after the upgrade. Returning an error closes the
	// connection with a policy-violation close code.
	OnConnect    func(r *http.Request, hub *Hub, conn *Connection) error
	OnMessage    func(conn *Connection, message []byte)
	OnDisconnect func(conn *Connection)
}

// Hub upgrades HTTP requests to websocket connections and tracks the live
// connection set. Each connection runs its own read and write pumps; the hub
// itself never blocks on any single connection.
type Hub struct {
	logger   *logrus.Logger
	upgrader websocket.Upgrader
	opts     *HubOptions

	mu          sync.RWMutex
	connections map[*Connection]struct{}
}

func NewHub(opts *HubOptions) *Hub {
	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &Hub{
		logger: opts.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		opts:        opts,
		connections: make(map[*Connection]struct{}),
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.logger != nil {
			h.logger.WithError(err).Error("ws: upgrade failed")
		}
		return
	}

	conn := newConnection(h, wsConn)
	h.addConnection(conn)

	if h.opts.OnConnect != nil {
		if err := h.opts.OnConnect(r, h, conn); err != nil {
			conn.CloseWithCode(websocket.ClosePolicyViolation, err.Error())
			return
		}
	}

	go conn.writePump()
	go conn.readPump()
}

func (h *Hub) addConnection(conn *Connection) {
	h.mu.Lock()
	h.connections[conn] = struct{}{}
	h.mu.Unlock()
	metrics.WSConnections.Inc()
}

func (h *Hub) removeConnection(conn *Connection) {
	h.mu.Lock()
	_, present := h.connections[conn]
	delete(h.connections, conn)
	h.mu.Unlock()
	if !present {
		return
	}
	metrics.WSConnections.Dec()
	if h.opts.OnDisconnect != nil {
		h.opts.OnDisconnect(conn)
	}
}

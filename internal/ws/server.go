package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"
	"github.com/sirupsen/logrus"
)

const namespace = "/"

// snapshotTimeout bounds a request:<topic> query
const snapshotTimeout = 5 * time.Second

// SnapshotFunc returns the full current state of a topic
type SnapshotFunc func(ctx context.Context) (interface{}, error)

type broadcaster interface {
	BroadcastToNamespace(namespace string, event string, args ...interface{}) bool
}

// Hub is the Socket.IO event feed for operator dashboards.
// Gateways never use it; they discover work by polling.
type Hub struct {
	server    *socketio.Server
	broadcast broadcaster
	logger    *logrus.Entry

	mu        sync.RWMutex
	snapshots map[string]SnapshotFunc
}

// NewHub creates the Socket.IO server
func NewHub(logger *logrus.Entry) *Hub {
	allowAll := func(r *http.Request) bool { return true }
	server := socketio.NewServer(&engineio.Options{
		Transports: []transport.Transport{
			&polling.Transport{CheckOrigin: allowAll},
			&websocket.Transport{CheckOrigin: allowAll},
		},
	})

	h := &Hub{
		server:    server,
		broadcast: server,
		logger:    logger.WithField("component", "ws"),
		snapshots: make(map[string]SnapshotFunc),
	}

	server.OnConnect(namespace, func(s socketio.Conn) error {
		h.logger.WithField("client", s.ID()).Debug("Client connected")
		s.Emit("connected", map[string]interface{}{
			"ok": true,
		})
		return nil
	})
	server.OnDisconnect(namespace, func(s socketio.Conn, reason string) {
		h.logger.WithFields(logrus.Fields{"client": s.ID(), "reason": reason}).Debug("Client disconnected")
	})
	server.OnError(namespace, func(s socketio.Conn, e error) {
		entry := h.logger.WithError(e)
		if s != nil {
			entry = entry.WithField("client", s.ID())
		}
		entry.Warn("Socket.IO error")
	})

	return h
}

// Start runs the Socket.IO event loop in the background
func (h *Hub) Start() {
	go func() {
		if err := h.server.Serve(); err != nil {
			h.logger.WithError(err).Error("Socket.IO server stopped")
		}
	}()
	h.logger.Info("✓ Socket.IO event feed started")
}

// Close disconnects all clients
func (h *Hub) Close() error {
	if h == nil || h.server == nil {
		return nil
	}
	return h.server.Close()
}

// Handler serves the Socket.IO endpoint
func (h *Hub) Handler() http.Handler {
	return h.server
}

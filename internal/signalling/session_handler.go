package signalling

import (
	"log/slog"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"github.com/irdkwmnsb/remotecam/internal/metrics"
	"github.com/irdkwmnsb/remotecam/internal/sockets"
)

// Session is one accepted websocket. Cleanup releases the socket and must
// run exactly once when the handler returns.
type Session struct {
	Socket   sockets.Socket
	SocketID sockets.SocketID
	Cleanup  func()
}

type SessionHandler struct {
	endpointSockets *sockets.SocketPool
	adminSockets    *sockets.SocketPool
}

func NewSessionHandler(endpointSockets, adminSockets *sockets.SocketPool) *SessionHandler {
	return &SessionHandler{
		endpointSockets: endpointSockets,
		adminSockets:    adminSockets,
	}
}

// RegisterEndpointSession assigns the connection a fresh endpoint id. The id
// lives exactly as long as the connection.
func (h *SessionHandler) RegisterEndpointSession(conn *websocket.Conn) *Session {
	id := sockets.SocketID(uuid.NewString())
	return open(h.endpointSockets, id, sockets.NewSocket(conn), "endpoint")
}

// RegisterAdminSession keys admin sockets by remote address; a second
// dashboard from the same address replaces the first.
func (h *SessionHandler) RegisterAdminSession(socket sockets.Socket) *Session {
	return open(h.adminSockets, sockets.SocketID(socket.RemoteAddr()), socket, "admin")
}

func open(pool *sockets.SocketPool, id sockets.SocketID, socket sockets.Socket, role string) *Session {
	socket = pool.Add(id, socket)
	metrics.ActiveWebSocketConnections.Inc()
	metrics.WebSocketConnectionsTotal.Inc()
	slog.Info("session started", "role", role, "socketID", id, "remote", socket.RemoteAddr())

	return &Session{
		Socket:   socket,
		SocketID: id,
		Cleanup: func() {
			metrics.ActiveWebSocketConnections.Dec()
			metrics.WebSocketDisconnectionsTotal.Inc()
			pool.Release(id, socket)
			slog.Info("session ended", "role", role, "socketID", id)
		},
	}
}

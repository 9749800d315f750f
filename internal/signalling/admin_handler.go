package signalling

import (
	"log/slog"

	"github.com/gofiber/contrib/websocket"
	"github.com/irdkwmnsb/remotecam/internal/api"
	"github.com/irdkwmnsb/remotecam/internal/config"
	"github.com/irdkwmnsb/remotecam/internal/service"
	"github.com/irdkwmnsb/remotecam/internal/sockets"
	"github.com/irdkwmnsb/remotecam/internal/utils"
)

// AdminHandler pushes registry snapshots to authenticated admin sockets.
type AdminHandler struct {
	config         func() *config.AppConfig
	pairingService *service.PairingService
	sessionHandler *SessionHandler
	authHandler    *AuthHandler
}

func NewAdminHandler(
	cfg func() *config.AppConfig,
	pairingService *service.PairingService,
	sessionHandler *SessionHandler,
	authHandler *AuthHandler,
) *AdminHandler {
	return &AdminHandler{
		config:         cfg,
		pairingService: pairingService,
		sessionHandler: sessionHandler,
		authHandler:    authHandler,
	}
}

func (h *AdminHandler) HandleSocket(c *websocket.Conn) {
	socket := sockets.NewSocket(c)
	if !h.authHandler.AuthenticateAdmin(socket) {
		return
	}

	session := h.sessionHandler.RegisterAdminSession(socket)
	defer session.Cleanup()

	sendStatus := func() {
		_ = session.Socket.WriteJSON(h.Status())
	}

	sendStatus()
	timer := utils.SetIntervalTimer(h.config().Signalling.StatusPushEvery(), sendStatus)
	defer timer.Stop()

	for {
		if _, err := session.Socket.ReadMessage(); err != nil {
			slog.Debug("admin disconnected", "socketID", session.SocketID)
			break
		}
	}
}

func (h *AdminHandler) Status() api.AdminMessage {
	all, _ := h.pairingService.Endpoints()
	return api.AdminMessage{
		Event:     api.AdminMessageEventStatus,
		Endpoints: api.ToApiEndpointStatuses(all),
		Pairs:     api.CountPairs(all),
	}
}

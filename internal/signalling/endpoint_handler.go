package signalling

import (
	"encoding/json"
	"log/slog"

	"github.com/gofiber/contrib/websocket"
	"github.com/irdkwmnsb/remotecam/internal/api"
	"github.com/irdkwmnsb/remotecam/internal/config"
	"github.com/irdkwmnsb/remotecam/internal/domain"
	"github.com/irdkwmnsb/remotecam/internal/metrics"
	"github.com/irdkwmnsb/remotecam/internal/service"
)

type EndpointHandler struct {
	config         func() *config.AppConfig
	pairingService *service.PairingService
	relayService   *service.RelayService
	sessionHandler *SessionHandler
	outboxes       *Outboxes
}

func NewEndpointHandler(
	cfg func() *config.AppConfig,
	pairingService *service.PairingService,
	relayService *service.RelayService,
	sessionHandler *SessionHandler,
	outboxes *Outboxes,
) *EndpointHandler {
	return &EndpointHandler{
		config:         cfg,
		pairingService: pairingService,
		relayService:   relayService,
		sessionHandler: sessionHandler,
		outboxes:       outboxes,
	}
}

// HandleSocket serves one endpoint connection until it closes. Broker
// errors never close the connection; only a failed read does.
func (h *EndpointHandler) HandleSocket(c *websocket.Conn) {
	session := h.sessionHandler.RegisterEndpointSession(c)
	defer session.Cleanup()

	cfg := h.config()
	id := string(session.SocketID)

	loop := NewEndpointConnectionLoop(session.Socket, session.SocketID, cfg.Signalling.OutboxSize, cfg.Server.PingEvery())
	loop.Start()
	h.outboxes.Attach(id, loop)
	defer func() {
		h.pairingService.Disconnect(id)
		h.outboxes.Detach(id, loop)
		loop.Stop()
	}()

	loop.SendMessage(api.EndpointMessage{
		Event: api.EndpointMessageEventInitPeer,
		InitPeer: &api.InitPeerMessage{
			ID:           id,
			PcConfig:     cfg.WebRTC.PeerConnectionConfig,
			PingInterval: cfg.Server.PingInterval,
		},
	})

	registered := false
	for {
		data, err := session.Socket.ReadMessage()
		if err != nil {
			slog.Debug("endpoint disconnected", "socketID", session.SocketID, "error", err)
			break
		}

		var message api.EndpointMessage
		if err := json.Unmarshal(data, &message); err != nil {
			metrics.MalformedMessagesTotal.WithLabelValues("endpoint").Inc()
			slog.Debug("dropping malformed message", "socketID", session.SocketID, "error", err)
			continue
		}

		h.processMessage(loop, id, &registered, message)
	}
}

func (h *EndpointHandler) processMessage(loop *EndpointConnectionLoop, id string, registered *bool, m api.EndpointMessage) {
	if !m.Event.IsInbound() {
		metrics.SignallingMessagesTotal.WithLabelValues("unknown", "in").Inc()
		slog.Debug("unknown event", "socketID", id, "event", m.Event)
		return
	}
	metrics.SignallingMessagesTotal.WithLabelValues(string(m.Event), "in").Inc()

	switch m.Event {
	case api.EndpointMessageEventPong:
		return
	case api.EndpointMessageEventPing:
		loop.SendMessage(api.EndpointMessage{Event: api.EndpointMessageEventPong, Ping: m.Ping})
		return
	case api.EndpointMessageEventRegister:
		h.handleRegister(id, registered, m)
		return
	}

	if !*registered {
		slog.Debug("dropping message from unregistered endpoint", "socketID", id, "event", m.Event)
		return
	}

	var err error
	switch m.Event {
	case api.EndpointMessageEventDiscoverDevices:
		err = h.pairingService.DiscoverDevices(id)

	case api.EndpointMessageEventRequestConnection:
		err = h.pairingService.RequestConnection(id, m.TargetID)

	case api.EndpointMessageEventAcceptConnection:
		err = h.pairingService.Accept(id, m.PeerID)

	case api.EndpointMessageEventRejectConnection:
		err = h.pairingService.Reject(id, m.PeerID)

	case api.EndpointMessageEventSessionOffer,
		api.EndpointMessageEventSessionAnswer,
		api.EndpointMessageEventIceCandidate:
		err = h.relayService.Relay(id, m.Target, domain.SignalKind(m.Event), m.Payload)

	case api.EndpointMessageEventControlCommand:
		err = h.relayService.ControlCommand(id, m.Command, m.Params)

	case api.EndpointMessageEventStopStreaming:
		h.pairingService.StopStreaming(id)
	}

	if err != nil {
		slog.Debug("message dropped", "socketID", id, "event", m.Event, "error", err)
	}
}

func (h *EndpointHandler) handleRegister(id string, registered *bool, m api.EndpointMessage) {
	if m.Register == nil {
		slog.Debug("register without payload", "socketID", id)
		return
	}
	kind, err := domain.ParseKind(m.Register.Kind)
	if err != nil {
		slog.Debug("register with invalid kind", "socketID", id, "kind", m.Register.Kind)
		return
	}
	if _, err := h.pairingService.Register(id, kind, m.Register.Name); err != nil {
		slog.Debug("register failed", "socketID", id, "error", err)
		return
	}
	*registered = true
}

package signalling

import (
	"log/slog"
	"sync/atomic"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/irdkwmnsb/remotecam/internal/config"
	"github.com/irdkwmnsb/remotecam/internal/repository/memory"
	"github.com/irdkwmnsb/remotecam/internal/service"
	"github.com/irdkwmnsb/remotecam/internal/sockets"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the signalling broker. It accepts endpoint connections on
// /ws/endpoint, keeps the connection registry and relays pairing and
// negotiation messages between endpoints.
//
// Routes:
//   - GET /ws/endpoint: endpoint signalling channel
//   - GET /ws/admin: registry status push (IP whitelist + credential)
//   - /api/admin/*: basic-auth admin API
//   - GET /metrics, GET /healthz
type Server struct {
	app    *fiber.App
	config atomic.Pointer[config.AppConfig]

	endpointSockets *sockets.SocketPool
	adminSockets    *sockets.SocketPool
	outboxes        *Outboxes

	repo           *memory.EndpointRepository
	pairingService *service.PairingService
	relayService   *service.RelayService

	endpointHandler *EndpointHandler
	adminHandler    *AdminHandler
	authHandler     *AuthHandler
}

// NewServer wires the broker onto app. Routes are mounted by
// SetupWebSocketsAndApi; Close must be called on shutdown.
func NewServer(cfg *config.AppConfig, app *fiber.App) (*Server, error) {
	s := &Server{
		app:             app,
		endpointSockets: sockets.NewSocketPool(),
		adminSockets:    sockets.NewSocketPool(),
		outboxes:        NewOutboxes(),
		repo:            memory.NewEndpointRepository(),
	}
	s.config.Store(cfg)

	sender := NewWebSocketEventSender(s.outboxes)
	s.pairingService = service.NewPairingService(s.repo, sender)
	s.pairingService.SetNotifyUnavailableTarget(cfg.Signalling.NotifyUnavailableTarget)
	s.relayService = service.NewRelayService(s.repo, sender)

	sessionHandler := NewSessionHandler(s.endpointSockets, s.adminSockets)
	s.authHandler = NewAuthHandler(s.Config)
	s.endpointHandler = NewEndpointHandler(s.Config, s.pairingService, s.relayService, sessionHandler, s.outboxes)
	s.adminHandler = NewAdminHandler(s.Config, s.pairingService, sessionHandler, s.authHandler)

	return s, nil
}

func (s *Server) Config() *config.AppConfig {
	return s.config.Load()
}

// ApplyConfig swaps in a reloaded configuration. New connections pick up
// ping and outbox settings; the unavailable-target flag applies at once.
func (s *Server) ApplyConfig(cfg *config.AppConfig) {
	s.config.Store(cfg)
	s.pairingService.SetNotifyUnavailableTarget(cfg.Signalling.NotifyUnavailableTarget)
	slog.Info("signalling config applied", "notifyUnavailableTarget", cfg.Signalling.NotifyUnavailableTarget)
}

func (s *Server) PairingService() *service.PairingService {
	return s.pairingService
}

func (s *Server) Close() {
	s.endpointSockets.Close()
	s.adminSockets.Close()
}

func (s *Server) SetupWebSocketsAndApi() {
	s.app.Use(fiberrecover.New())

	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	s.app.Get("/ws/endpoint", websocket.New(func(c *websocket.Conn) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("panic in /ws/endpoint", "error", err)
			}
		}()
		s.endpointHandler.HandleSocket(c)
	}))

	s.app.Get("/ws/admin", websocket.New(func(c *websocket.Conn) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("panic in /ws/admin", "error", err)
			}
		}()
		s.adminHandler.HandleSocket(c)
	}))

	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":      "ok",
			"endpoints":   s.repo.Len(),
			"connections": s.outboxes.Len(),
		})
	})

	s.setupAdminApi()
}

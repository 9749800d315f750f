package signalling

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/irdkwmnsb/remotecam/internal/api"
	"github.com/irdkwmnsb/remotecam/internal/domain"
)

func (s *Server) setupAdminApi() {
	s.app.Route("/api/admin", func(router fiber.Router) {
		router.Use(basicauth.New(basicauth.Config{
			Realm: "Forbidden",
			Authorizer: func(user, pass string) bool {
				return user == "admin" && s.authHandler.CheckAdminCredential(pass)
			},
		}))

		router.Get("/endpoints", func(c *fiber.Ctx) error {
			all, err := s.pairingService.Endpoints()
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).SendString("Failed to list endpoints")
			}
			return c.JSON(api.ToApiEndpointStatuses(all))
		})

		router.Get("/status", func(c *fiber.Ctx) error {
			return c.JSON(s.adminHandler.Status())
		})

		router.Post("/endpoints/:id/stop", func(c *fiber.Ctx) error {
			stopped, err := s.pairingService.ForceStop(c.Params("id"))
			if errors.Is(err, domain.ErrEndpointNotFound) {
				return c.Status(fiber.StatusNotFound).SendString("Endpoint not found")
			}
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).SendString("Failed to stop streaming")
			}
			return c.JSON(stopResponse{Stopped: stopped})
		})
	})
}

type stopResponse struct {
	Stopped bool `json:"stopped"`
}

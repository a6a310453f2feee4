package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/relaykit/relaykit/internal/core/app"
	"github.com/relaykit/relaykit/internal/core/models"
)

// GetOverview reports the current mode, endpoints, queue depth, and session
// state.
func GetOverview(c *fiber.Ctx, a *app.App) error {
	depth, err := a.Outbox.Depth()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error: "failed to read queue depth: " + err.Error(),
		})
	}

	endpoints := a.Modes.Endpoints()
	return c.Status(fiber.StatusOK).JSON(models.OverviewResponse{
		Version:       a.Config.Version,
		Mode:          string(a.Modes.Mode()),
		APIBaseURL:    endpoints.APIBaseURL,
		StreamBaseURL: endpoints.StreamBaseURL,
		QueueDepth:    depth,
		LoggedIn:      a.Sessions.Authenticated(),
		Username:      a.Sessions.Profile().Username(),
	})
}
